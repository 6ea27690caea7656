package claims

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
)

// MinRefundAmount is the smallest deposit a refund claim may cover.
const MinRefundAmount int64 = 2_000_000

const (
	maxNameRunes    = 20
	maxDetailsRunes = 200
	maxTextRunes    = 50
	timeLayout      = "15:04:05"
)

// Fields are claim fields as submitted, before normalization.
type Fields struct {
	RequestDate            string
	DepositDate            string
	DepositTime            string
	DepositAmount          string
	BankName               string
	BeneficiaryAccount     string
	BeneficiaryAccountName string
	ContractorCode         string
	MerchantCode           string
	ApplicantName          string
	ApplicantPhone         string
	Details                string
	TermsAgreed            bool
}

// Column names accepted by update, mapped to their error labels.
var fieldLabels = map[string]string{
	"request_date":             "Request date",
	"deposit_date":             "Deposit date",
	"deposit_time":             "Deposit time",
	"deposit_amount":           "Deposit amount",
	"bank_name":                "Bank name",
	"beneficiary_account":      "Beneficiary account",
	"beneficiary_account_name": "Beneficiary account name",
	"contractor_code":          "Contractor code",
	"merchant_code":            "Merchant code",
	"applicant_name":           "Applicant name",
	"applicant_phone":          "Applicant phone",
	"details":                  "Details",
	"status":                   "Status",
}

// columnOrder is the form order, which decides which error is reported first.
var columnOrder = []string{
	"request_date", "deposit_date", "deposit_time", "deposit_amount", "bank_name",
	"beneficiary_account", "beneficiary_account_name", "contractor_code",
	"merchant_code", "applicant_name", "applicant_phone", "details", "status",
}

// optionalFields may be blank; every other updatable field may not.
var optionalFields = map[string]bool{"deposit_time": true, "details": true}

func (f Fields) byColumn() map[string]string {
	return map[string]string{
		"request_date":             f.RequestDate,
		"deposit_date":             f.DepositDate,
		"deposit_time":             f.DepositTime,
		"deposit_amount":           f.DepositAmount,
		"bank_name":                f.BankName,
		"beneficiary_account":      f.BeneficiaryAccount,
		"beneficiary_account_name": f.BeneficiaryAccountName,
		"contractor_code":          f.ContractorCode,
		"merchant_code":            f.MerchantCode,
		"applicant_name":           f.ApplicantName,
		"applicant_phone":          f.ApplicantPhone,
		"details":                  f.Details,
	}
}

// requiredFor lists the columns a new claim of type t must carry, in form order.
func requiredFor(t models.RequestType) []string {
	cols := []string{
		"deposit_date", "deposit_amount", "bank_name", "beneficiary_account",
		"beneficiary_account_name", "contractor_code", "merchant_code",
		"applicant_name", "applicant_phone",
	}
	if t == models.RequestTypeRefund {
		cols = append([]string{"request_date"}, cols...)
	}
	return cols
}

// buildRequest validates f for a new claim of type t and returns the row to
// insert. Misdeposit claims default request_date to today.
func buildRequest(t models.RequestType, f Fields, requireConsent bool, today time.Time) (*models.Request, error) {
	if !t.Valid() {
		return nil, apperr.Validation("Request type", "unknown request type %q", t)
	}

	values := f.byColumn()
	for col, v := range values {
		values[col] = strings.TrimSpace(v)
	}
	if t == models.RequestTypeMisdeposit && values["request_date"] == "" {
		values["request_date"] = today.Format(models.DateLayout)
	}
	for _, col := range requiredFor(t) {
		if values[col] == "" {
			return nil, apperr.Validation(fieldLabels[col], "is required")
		}
	}

	r := &models.Request{RequestType: t, Status: models.StatusPending}
	for _, col := range columnOrder {
		v, ok := values[col]
		if !ok || (v == "" && optionalFields[col]) {
			continue
		}
		if err := applyField(r, col, v); err != nil {
			return nil, err
		}
	}

	if err := checkDates(r.DepositDate, r.RequestDate); err != nil {
		return nil, err
	}
	if err := checkAmount(t, r.DepositAmount); err != nil {
		return nil, err
	}
	if requireConsent && !f.TermsAgreed {
		return nil, apperr.Validation("Terms", "you must agree to the terms to submit a claim")
	}
	r.TermsAgreed = f.TermsAgreed
	return r, nil
}

// applyField normalizes v and stores it in r. It is shared by creation and
// update so both enforce the same formats.
func applyField(r *models.Request, col, v string) error {
	label := fieldLabels[col]
	switch col {
	case "request_date", "deposit_date":
		d, err := parseDate(label, v)
		if err != nil {
			return err
		}
		if col == "request_date" {
			r.RequestDate = d
		} else {
			r.DepositDate = d
		}
	case "deposit_time":
		if v == "" {
			r.DepositTime = nil
			return nil
		}
		tm, err := parseTime(label, v)
		if err != nil {
			return err
		}
		r.DepositTime = &tm
	case "deposit_amount":
		n, err := parseAmount(label, v)
		if err != nil {
			return err
		}
		r.DepositAmount = n
	case "applicant_name":
		if utf8.RuneCountInString(v) > maxNameRunes {
			return apperr.Validation(label, "must be at most %d characters", maxNameRunes)
		}
		r.ApplicantName = v
	case "applicant_phone":
		p, err := normalizePhone(label, v)
		if err != nil {
			return err
		}
		r.ApplicantPhone = p
	case "details":
		if utf8.RuneCountInString(v) > maxDetailsRunes {
			return apperr.Validation(label, "must be at most %d characters", maxDetailsRunes)
		}
		r.Details = v
	case "bank_name", "beneficiary_account", "beneficiary_account_name", "contractor_code", "merchant_code":
		if utf8.RuneCountInString(v) > maxTextRunes {
			return apperr.Validation(label, "must be at most %d characters", maxTextRunes)
		}
		switch col {
		case "bank_name":
			r.BankName = v
		case "beneficiary_account":
			r.BeneficiaryAccount = v
		case "beneficiary_account_name":
			r.BeneficiaryAccountName = v
		case "contractor_code":
			r.ContractorCode = v
		case "merchant_code":
			r.MerchantCode = v
		}
	case "status":
		s := models.RequestStatus(v)
		if !s.Valid() {
			return apperr.Validation(label, "unknown status %q", v)
		}
		r.Status = s
	default:
		return apperr.Validation(col, "field cannot be set")
	}
	return nil
}

func parseDate(label, v string) (string, error) {
	d, err := time.Parse(models.DateLayout, v)
	if err != nil {
		return "", apperr.Validation(label, "must be a date in YYYY-MM-DD format")
	}
	return d.Format(models.DateLayout), nil
}

// parseTime accepts HH:MM:SS or HH:MM and returns HH:MM:SS.
func parseTime(label, v string) (string, error) {
	for _, layout := range []string{timeLayout, "15:04"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(timeLayout), nil
		}
	}
	return "", apperr.Validation(label, "must be a time in HH:MM:SS format")
}

// parseAmount strips grouping characters and requires what is left to be digits.
func parseAmount(label, v string) (int64, error) {
	digits := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '_', '\'':
			return -1
		}
		return r
	}, v)
	if digits == "" {
		return 0, apperr.Validation(label, "is required")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, apperr.Validation(label, "must contain digits only")
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, apperr.Validation(label, "is too large")
	}
	return n, nil
}

// normalizePhone drops every non-digit and requires 10 or 11 digits.
func normalizePhone(label, v string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, v)
	if len(digits) < 10 || len(digits) > 11 {
		return "", apperr.Validation(label, "must be 10 or 11 digits")
	}
	return digits, nil
}

// checkDates enforces deposit_date <= request_date when both are set.
// Both are YYYY-MM-DD, so string order is date order.
func checkDates(depositDate, requestDate string) error {
	if depositDate == "" || requestDate == "" {
		return nil
	}
	if depositDate > requestDate {
		return apperr.Validation(fieldLabels["deposit_date"], "cannot be later than the request date")
	}
	return nil
}

func checkAmount(t models.RequestType, amount int64) error {
	if t == models.RequestTypeRefund && amount < MinRefundAmount {
		return apperr.Validation(fieldLabels["deposit_amount"], "refund claims require a deposit of at least %d", MinRefundAmount)
	}
	return nil
}
