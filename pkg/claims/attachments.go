package claims

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/pkg/filestore"
	"p9e.in/reasonsform/pkg/logger"
)

// Uploads groups incoming files by category.
type Uploads map[models.AttachmentCategory][]filestore.Upload

func (u Uploads) count() int {
	n := 0
	for _, files := range u {
		n += len(files)
	}
	return n
}

// validated is a category's files after content validation.
type validated struct {
	category models.AttachmentCategory
	files    []filestore.File
}

// validateUploads checks categories and content of every file before any
// of them is written. Categories come back in a fixed order.
func (s *Service) validateUploads(u Uploads) ([]validated, error) {
	for c, files := range u {
		if !c.Valid() {
			return nil, apperr.Validation("Category", "unknown attachment category %q", c)
		}
		if len(files) > models.MaxFilesPerCategory {
			return nil, quotaError(c)
		}
	}

	var out []validated
	for _, c := range []models.AttachmentCategory{models.CategoryDepositEvidence, models.CategoryIdentityDocument} {
		if len(u[c]) == 0 {
			continue
		}
		files, err := s.files.ValidateAll(u[c])
		if err != nil {
			return nil, err
		}
		out = append(out, validated{category: c, files: files})
	}
	return out, nil
}

// persisted is a category's files after they were written.
type persisted struct {
	category models.AttachmentCategory
	stored   []filestore.Stored
}

// persistUploads writes every validated file. On failure nothing written by
// this call is left behind.
func (s *Service) persistUploads(ctx context.Context, v []validated) ([]persisted, error) {
	var all []filestore.File
	for _, group := range v {
		all = append(all, group.files...)
	}
	if len(all) == 0 {
		return nil, nil
	}
	stored, err := s.files.Persist(ctx, all)
	if err != nil {
		return nil, err
	}

	out := make([]persisted, 0, len(v))
	i := 0
	for _, group := range v {
		out = append(out, persisted{category: group.category, stored: stored[i : i+len(group.files)]})
		i += len(group.files)
	}
	return out, nil
}

func storedNames(p []persisted) []string {
	var names []string
	for _, group := range p {
		names = append(names, filestore.Names(group.stored)...)
	}
	return names
}

func quotaError(c models.AttachmentCategory) error {
	return apperr.Conflict("at most %d %s files are allowed per claim", models.MaxFilesPerCategory, c.Label())
}

// countByCategory returns how many attachments requestID holds per category.
func countByCategory(ctx context.Context, tx *gorm.DB, requestID uint) (map[models.AttachmentCategory]int64, error) {
	var rows []struct {
		Category models.AttachmentCategory
		N        int64
	}
	err := tx.WithContext(ctx).Model(&models.Attachment{}).
		Select("category, COUNT(*) AS n").
		Where("request_id = ?", requestID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.AttachmentCategory]int64, len(rows))
	for _, r := range rows {
		out[r.Category] = r.N
	}
	return out, nil
}

// checkQuota fails when adding p to the counts in existing would exceed the
// per-category cap.
func checkQuota(existing map[models.AttachmentCategory]int64, p []persisted) error {
	for _, group := range p {
		if existing[group.category]+int64(len(group.stored)) > models.MaxFilesPerCategory {
			return quotaError(group.category)
		}
	}
	return nil
}

// insertAttachments records p for requestID, keeping upload order.
func insertAttachments(ctx context.Context, tx *gorm.DB, requestID uint, p []persisted, now time.Time) error {
	var rows []models.Attachment
	for _, group := range p {
		for _, st := range group.stored {
			rows = append(rows, models.Attachment{
				RequestID:      requestID,
				StoredFilename: st.StoredName,
				OriginalName:   st.OriginalName,
				FileType:       st.Type,
				Category:       group.category,
				UploadedAt:     now,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&rows).Error
}

// primaryFile returns the stored name of the earliest remaining attachment of
// requestID, or nil when it has none.
func primaryFile(ctx context.Context, tx *gorm.DB, requestID uint) (*string, error) {
	var names []string
	err := tx.WithContext(ctx).Model(&models.Attachment{}).
		Where("request_id = ?", requestID).
		Order("uploaded_at ASC, id ASC").
		Limit(1).
		Pluck("stored_filename", &names).Error
	if err != nil || len(names) == 0 {
		return nil, err
	}
	return &names[0], nil
}

// syncPrimaryFile recomputes and stores requests.primary_file.
func syncPrimaryFile(ctx context.Context, tx *gorm.DB, requestID uint) (*string, error) {
	primary, err := primaryFile(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	err = tx.WithContext(ctx).Model(&models.Request{}).
		Where("id = ?", requestID).
		Update("primary_file", primary).Error
	return primary, err
}

func recordStored(p []persisted) {
	for _, group := range p {
		attachmentsStoredTotal.WithLabelValues(string(group.category)).Add(float64(len(group.stored)))
	}
}

// AddFiles attaches uploads of one category to an existing claim and returns
// how many were added. Exceeding the category cap adds nothing.
func (s *Service) AddFiles(ctx context.Context, id uint, category models.AttachmentCategory, uploads []filestore.Upload) (int, error) {
	if !category.Valid() {
		return 0, apperr.Validation("Category", "unknown attachment category %q", category)
	}
	if len(uploads) == 0 {
		return 0, apperr.Validation("Files", "no files were uploaded")
	}
	v, err := s.validateUploads(Uploads{category: uploads})
	if err != nil {
		return 0, err
	}

	// Pre-check so a missing or full claim costs no disk writes.
	if err := lookup(ctx, s.db, id); err != nil {
		return 0, apperr.FromStorage(err)
	}
	counts, err := countByCategory(ctx, s.db, id)
	if err != nil {
		return 0, apperr.FromStorage(err)
	}
	if counts[category]+int64(len(uploads)) > models.MaxFilesPerCategory {
		return 0, quotaError(category)
	}

	p, err := s.persistUploads(ctx, v)
	if err != nil {
		return 0, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lookup(ctx, tx, id); err != nil {
			return err
		}
		counts, err := countByCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkQuota(counts, p); err != nil {
			return err
		}
		if err := insertAttachments(ctx, tx, id, p, s.now()); err != nil {
			return err
		}
		_, err = syncPrimaryFile(ctx, tx, id)
		return err
	})
	if err != nil {
		s.files.Remove(context.WithoutCancel(ctx), storedNames(p)...)
		return 0, apperr.FromStorage(err)
	}

	recordStored(p)
	logger.Info("✅ Added %d %s file(s) to claim %d", len(uploads), category.Label(), id)
	return len(uploads), nil
}

// DeleteFile removes one attachment of claim id and its stored file.
func (s *Service) DeleteFile(ctx context.Context, id, fileID uint) error {
	var att models.Attachment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND request_id = ?", fileID, id).First(&att).Error; err != nil {
			return err
		}
		if err := tx.Delete(&att).Error; err != nil {
			return err
		}
		_, err := syncPrimaryFile(ctx, tx, id)
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("file %d not found on claim %d", fileID, id)
	}
	if err != nil {
		return apperr.FromStorage(err)
	}

	s.files.Remove(context.WithoutCancel(ctx), att.StoredFilename)
	logger.Info("🗑️ Deleted file %d from claim %d", fileID, id)
	return nil
}

// lookup fails with NotFound when claim id does not exist.
func lookup(ctx context.Context, tx *gorm.DB, id uint) error {
	var n int64
	if err := tx.WithContext(ctx).Model(&models.Request{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("claim %d not found", id)
	}
	return nil
}
