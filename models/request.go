package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
)

// RequestType selects the claim form and its validation rules.
type RequestType string

const (
	RequestTypeRefund     RequestType = "refund"
	RequestTypeMisdeposit RequestType = "misdeposit"
)

// Valid reports whether t is a known claim type.
func (t RequestType) Valid() bool {
	return t == RequestTypeRefund || t == RequestTypeMisdeposit
}

// CodePrefix is the leading letter of a request code for this type.
func (t RequestType) CodePrefix() string {
	if t == RequestTypeMisdeposit {
		return "M"
	}
	return "R"
}

// Label is the human-readable name used in notifications and exports.
func (t RequestType) Label() string {
	switch t {
	case RequestTypeRefund:
		return "Refund claim"
	case RequestTypeMisdeposit:
		return "Misdeposit claim"
	}
	return string(t)
}

// RequestStatus is the processing state of a claim.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusReceived   RequestStatus = "received"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusRejected   RequestStatus = "rejected"
)

// AllStatuses lists every status in workflow order.
var AllStatuses = []RequestStatus{StatusPending, StatusReceived, StatusInProgress, StatusCompleted, StatusRejected}

// Valid reports whether s is one of the enumerated statuses.
func (s RequestStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// DateLayout is the storage and wire format of request_date and deposit_date.
const DateLayout = "2006-01-02"

// Request is a refund or misdeposit claim.
type Request struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	RequestCode string      `gorm:"size:32;uniqueIndex;not null" json:"request_code"`
	SequenceKey string      `gorm:"size:16;uniqueIndex;not null" json:"-"` // <prefix>-<YYMMDD>-<NNN>
	RequestType RequestType `gorm:"type:varchar(20);not null;index" json:"request_type"`

	RequestDate            string  `gorm:"size:10;not null" json:"request_date"`
	DepositDate            string  `gorm:"size:10;not null" json:"deposit_date"`
	DepositTime            *string `gorm:"size:8" json:"deposit_time,omitempty"`
	DepositAmount          int64   `gorm:"not null" json:"deposit_amount"`
	BankName               string  `gorm:"size:50;not null" json:"bank_name"`
	BeneficiaryAccount     string  `gorm:"size:50;not null" json:"beneficiary_account"`
	BeneficiaryAccountName string  `gorm:"size:50;not null" json:"beneficiary_account_name"`
	ContractorCode         string  `gorm:"size:50" json:"contractor_code"`
	MerchantCode           string  `gorm:"size:50" json:"merchant_code"`
	ApplicantName          string  `gorm:"size:20;not null" json:"applicant_name"`
	ApplicantPhone         string  `gorm:"size:11;not null" json:"applicant_phone"`
	Details                string  `gorm:"size:200" json:"details"`

	TermsAgreed bool   `gorm:"not null;default:false" json:"terms_agreed"`
	TermsIP     string `gorm:"size:45" json:"terms_ip"`

	Status      RequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PrimaryFile *string       `gorm:"size:255" json:"primary_file"`
	CreatedAt   time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`

	Files      []Attachment       `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"files,omitempty"`
	StatusLogs []RequestStatusLog `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"status_logs,omitempty"`
}

// TableName specifies the table name for Request
func (Request) TableName() string {
	return "requests"
}

// RequestListItem is a list row with its attachment count.
type RequestListItem struct {
	Request
	FileCount int64 `json:"file_count"`
}

// PublicStatus is what the unauthenticated status check may reveal.
type PublicStatus struct {
	ApplicantName string        `json:"applicant_name"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	RequestType   RequestType   `json:"request_type"`
}

// MaskName keeps the first rune of name and replaces the rest with "**",
// whatever the length.
func MaskName(name string) string {
	r, size := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if size == 0 {
		return "**"
	}
	return string(r) + "**"
}

// How a status log entry came about.
const (
	ViaCreate   = "create"
	ViaWorkflow = "workflow"
	ViaEdit     = "edit"
)

// RequestStatusLog records one status change. FromStatus is empty for the
// entry written at creation.
type RequestStatusLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	RequestID  uint              `gorm:"not null;index" json:"request_id"`
	FromStatus RequestStatus     `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   RequestStatus     `gorm:"type:varchar(20);not null" json:"to_status"`
	Actor      string            `gorm:"size:100" json:"actor,omitempty"`
	Via        string            `gorm:"size:20;not null" json:"via"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	ChangedAt  time.Time         `gorm:"not null;index" json:"changed_at"`
}

// TableName specifies the table name for RequestStatusLog
func (RequestStatusLog) TableName() string {
	return "request_status_logs"
}
