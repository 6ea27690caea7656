package claims

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/pkg/claimcode"
)

// ListFilter narrows ListClaims. Zero values mean no filter; Limit 0 returns
// every row.
type ListFilter struct {
	Type   models.RequestType
	Status models.RequestStatus
	Search string // code, applicant name or phone
	Limit  int
	Offset int
}

// GetClaim returns claim id with its attachments in upload order and its
// status history.
func (s *Service) GetClaim(ctx context.Context, id uint) (*models.Request, error) {
	var req models.Request
	err := s.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at ASC, id ASC") }).
		Preload("StatusLogs", func(db *gorm.DB) *gorm.DB { return db.Order("changed_at ASC, id ASC") }).
		First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("claim %d not found", id)
	}
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return &req, nil
}

// ListClaims returns matching claims, newest first, each with its attachment
// count, and the total number of matches.
func (s *Service) ListClaims(ctx context.Context, f ListFilter) ([]models.RequestListItem, int64, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, apperr.Validation("Request type", "unknown request type %q", f.Type)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("Status", "unknown status %q", f.Status)
	}

	q := s.db.WithContext(ctx).Model(&models.Request{})
	if f.Type != "" {
		q = q.Where("request_type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("request_code LIKE ? OR applicant_name LIKE ? OR applicant_phone LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStorage(err)
	}

	q = q.Select("requests.*, (SELECT COUNT(*) FROM attachments WHERE attachments.request_id = requests.id) AS file_count").
		Order("created_at DESC, id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var items []models.RequestListItem
	if err := q.Scan(&items).Error; err != nil {
		return nil, 0, apperr.FromStorage(err)
	}
	return items, total, nil
}

// GetPublicStatus is the unauthenticated status lookup. The code format is
// checked before touching storage and the applicant name is always masked.
func (s *Service) GetPublicStatus(ctx context.Context, code string) (*models.PublicStatus, error) {
	code = strings.TrimSpace(code)
	if !claimcode.ValidFormat(code) {
		return nil, apperr.Validation("Request code", "is not a valid request code")
	}

	var req models.Request
	err := s.db.WithContext(ctx).
		Select("applicant_name", "status", "created_at", "request_type").
		Where("request_code = ?", code).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("no claim found for this code")
	}
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return &models.PublicStatus{
		ApplicantName: models.MaskName(req.ApplicantName),
		Status:        req.Status,
		CreatedAt:     req.CreatedAt,
		RequestType:   req.RequestType,
	}, nil
}

// DownloadFile returns the decrypted content of a stored attachment. Only
// names recorded in the attachments table are served.
func (s *Service) DownloadFile(ctx context.Context, storedName string) (*models.Attachment, []byte, error) {
	var att models.Attachment
	err := s.db.WithContext(ctx).Where("stored_filename = ?", storedName).First(&att).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.NotFound("file not found")
	}
	if err != nil {
		return nil, nil, apperr.FromStorage(err)
	}

	data, err := s.files.Read(ctx, att.StoredFilename)
	if err != nil {
		return nil, nil, err
	}
	return &att, data, nil
}

// DailyCounts returns claims created on day per type, and the current number
// of pending claims.
func (s *Service) DailyCounts(ctx context.Context, day time.Time) (map[models.RequestType]int64, int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var rows []struct {
		RequestType models.RequestType
		N           int64
	}
	err := s.db.WithContext(ctx).Model(&models.Request{}).
		Select("request_type, COUNT(*) AS n").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("request_type").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, apperr.FromStorage(err)
	}
	created := make(map[models.RequestType]int64, len(rows))
	for _, r := range rows {
		created[r.RequestType] = r.N
	}

	var pending int64
	if err := s.db.WithContext(ctx).Model(&models.Request{}).
		Where("status = ?", models.StatusPending).
		Count(&pending).Error; err != nil {
		return nil, 0, apperr.FromStorage(err)
	}
	return created, pending, nil
}
