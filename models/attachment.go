package models

import "time"

// AttachmentCategory classifies evidence files. Quotas apply per category.
type AttachmentCategory string

const (
	CategoryDepositEvidence  AttachmentCategory = "deposit_evidence"
	CategoryIdentityDocument AttachmentCategory = "identity_document"
)

// Valid reports whether c is a known category.
func (c AttachmentCategory) Valid() bool {
	return c == CategoryDepositEvidence || c == CategoryIdentityDocument
}

// Label is the human-readable category name used in error messages.
func (c AttachmentCategory) Label() string {
	switch c {
	case CategoryDepositEvidence:
		return "deposit evidence"
	case CategoryIdentityDocument:
		return "identity document"
	}
	return string(c)
}

// MaxFilesPerCategory caps attachments per (request, category).
const MaxFilesPerCategory = 5

// Attachment is an encrypted evidence file owned by a Request.
type Attachment struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	RequestID      uint               `gorm:"not null;index:idx_attachments_request_category" json:"request_id"`
	StoredFilename string             `gorm:"size:255;not null;uniqueIndex" json:"stored_filename"`
	OriginalName   string             `gorm:"size:255;not null" json:"original_name"`
	FileType       string             `gorm:"size:10;not null" json:"file_type"` // jpg, png, pdf
	Category       AttachmentCategory `gorm:"type:varchar(30);not null;index:idx_attachments_request_category" json:"category"`
	UploadedAt     time.Time          `gorm:"not null;index" json:"uploaded_at"`
}

// TableName specifies the table name for Attachment
func (Attachment) TableName() string {
	return "attachments"
}
