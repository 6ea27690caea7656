// Package handlers exposes the claim service over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/pkg/claims"
	"p9e.in/reasonsform/pkg/filestore"
	"p9e.in/reasonsform/pkg/logger"
	"p9e.in/reasonsform/pkg/throttle"
)

// Multipart field names for attachments. Both the bracketed and plain forms
// are accepted.
var categoryFields = map[models.AttachmentCategory][]string{
	models.CategoryDepositEvidence:  {"deposit_files[]", "deposit_files"},
	models.CategoryIdentityDocument: {"identity_files[]", "identity_files"},
}

// Handler holds the dependencies of every endpoint.
type Handler struct {
	claims    *claims.Service
	db        *gorm.DB
	limiter   *throttle.Limiter
	maxUpload int64
}

// New wires a Handler. maxUpload caps a whole request body.
func New(svc *claims.Service, db *gorm.DB, limiter *throttle.Limiter, maxUpload int64) *Handler {
	if limiter == nil {
		limiter = throttle.NewDefault()
	}
	return &Handler{claims: svc, db: db, limiter: limiter, maxUpload: maxUpload}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("⚠️  Failed to write response: %v", err)
	}
}

// writeError sends err as the JSON envelope. Unexpected errors are logged
// with their cause, which the client never sees.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.As(err)
	if e.Kind == apperr.KindInternal || e.Kind == apperr.KindUnavailable {
		logger.Error("❌ %s %s: %v", r.Method, r.URL.Path, err)
	}
	apperr.WriteError(w, e)
}

func pathID(r *http.Request, name string) (uint, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return uint(id), nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("", "invalid JSON body")
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parseMultipart reads the whole form, bounded by maxUpload.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("Files", "upload is larger than %d MB", h.maxUpload>>20)
		}
		return apperr.Validation("", "invalid multipart form")
	}
	return nil
}

func readFileHeaders(headers []*multipart.FileHeader) ([]filestore.Upload, error) {
	out := make([]filestore.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %q: %w", fh.Filename, err)
		}
		out = append(out, filestore.Upload{Name: fh.Filename, Data: data})
	}
	return out, nil
}

// formUploads collects attachments per category from a parsed multipart form.
func formUploads(form *multipart.Form) (claims.Uploads, error) {
	out := claims.Uploads{}
	if form == nil {
		return out, nil
	}
	for category, names := range categoryFields {
		for _, name := range names {
			files, err := readFileHeaders(form.File[name])
			if err != nil {
				return nil, err
			}
			out[category] = append(out[category], files...)
		}
	}
	return out, nil
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes", "y":
		return true
	}
	return false
}

func formFields(r *http.Request) claims.Fields {
	return claims.Fields{
		RequestDate:            r.FormValue("request_date"),
		DepositDate:            r.FormValue("deposit_date"),
		DepositTime:            r.FormValue("deposit_time"),
		DepositAmount:          r.FormValue("deposit_amount"),
		BankName:               r.FormValue("bank_name"),
		BeneficiaryAccount:     r.FormValue("beneficiary_account"),
		BeneficiaryAccountName: r.FormValue("beneficiary_account_name"),
		ContractorCode:         r.FormValue("contractor_code"),
		MerchantCode:           r.FormValue("merchant_code"),
		ApplicantName:          r.FormValue("applicant_name"),
		ApplicantPhone:         r.FormValue("applicant_phone"),
		Details:                r.FormValue("details"),
		TermsAgreed:            formBool(r.FormValue("terms_agreed")),
	}
}

// submission builds a claims.Submission from a multipart request.
func (h *Handler) submission(w http.ResponseWriter, r *http.Request, ip string) (claims.Submission, error) {
	if err := h.parseMultipart(w, r); err != nil {
		return claims.Submission{}, err
	}
	uploads, err := formUploads(r.MultipartForm)
	if err != nil {
		return claims.Submission{}, err
	}
	return claims.Submission{
		Type:     models.RequestType(strings.TrimSpace(r.FormValue("request_type"))),
		Fields:   formFields(r),
		Files:    uploads,
		ClientIP: ip,
	}, nil
}
