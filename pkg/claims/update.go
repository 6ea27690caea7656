package claims

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/pkg/logger"
)

// MaxDeleteFiles caps _delete_files in one update.
const MaxDeleteFiles = 20

// Patch holds column → raw value. Columns outside the update allow-list are
// ignored.
type Patch map[string]string

// Update is an admin edit of one claim.
type Update struct {
	Fields      Patch
	DeleteFiles []uint
	Files       Uploads
}

// allowed keeps allow-listed columns, trimmed.
func (p Patch) allowed() Patch {
	out := make(Patch, len(p))
	for col, v := range p {
		if _, ok := fieldLabels[col]; ok {
			out[col] = strings.TrimSpace(v)
		}
	}
	return out
}

// UpdateClaim patches fields, removes and adds attachments, and re-syncs
// primary_file in one transaction.
//
// A status in the patch is written directly without consulting the workflow
// table, so admins can correct mistakes; only the completed state stays
// final. Status changes made here are logged with Via "edit".
func (s *Service) UpdateClaim(ctx context.Context, id uint, u Update, actor string) error {
	if len(u.DeleteFiles) > MaxDeleteFiles {
		return apperr.Validation("_delete_files", "at most %d files can be deleted at once", MaxDeleteFiles)
	}
	patch := u.Fields.allowed()
	if len(patch) == 0 && len(u.DeleteFiles) == 0 && u.Files.count() == 0 {
		return apperr.Validation("", "nothing to update")
	}
	for _, col := range columnOrder {
		if v, ok := patch[col]; ok && v == "" && !optionalFields[col] {
			return apperr.Validation(fieldLabels[col], "cannot be empty")
		}
	}

	v, err := s.validateUploads(u.Files)
	if err != nil {
		return err
	}
	p, err := s.persistUploads(ctx, v)
	if err != nil {
		return err
	}

	var (
		removed    []string
		fromStatus models.RequestStatus
		toStatus   models.RequestStatus
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Request
		if err := tx.First(&existing, id).Error; err != nil {
			return err
		}

		working := existing
		cols := make([]string, 0, len(patch)+2)
		for _, col := range columnOrder {
			if val, ok := patch[col]; ok {
				if err := applyField(&working, col, val); err != nil {
					return err
				}
				cols = append(cols, col)
			}
		}
		if err := checkDates(working.DepositDate, working.RequestDate); err != nil {
			return err
		}
		if _, ok := patch["deposit_amount"]; ok {
			if err := checkAmount(working.RequestType, working.DepositAmount); err != nil {
				return err
			}
		}
		if working.Status != existing.Status && existing.Status == models.StatusCompleted {
			return apperr.Conflict("claim is completed and can no longer change status")
		}

		names, err := deleteAttachments(ctx, tx, id, u.DeleteFiles)
		if err != nil {
			return err
		}
		removed = names

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

		primary, err := primaryFile(ctx, tx, id)
		if err != nil {
			return err
		}
		working.PrimaryFile = primary
		working.UpdatedAt = s.now()
		edited := append([]string(nil), cols...)
		cols = append(cols, "primary_file", "updated_at")
		if err := tx.Model(&working).Select(cols).Updates(&working).Error; err != nil {
			return err
		}

		if working.Status != existing.Status {
			fromStatus, toStatus = existing.Status, working.Status
			meta := datatypes.JSONMap{
				"fields":        edited,
				"files_added":   u.Files.count(),
				"files_removed": len(removed),
			}
			return tx.Create(&models.RequestStatusLog{
				RequestID:  id,
				FromStatus: existing.Status,
				ToStatus:   working.Status,
				Actor:      actor,
				Via:        models.ViaEdit,
				Metadata:   meta,
				ChangedAt:  s.now(),
			}).Error
		}
		return nil
	})
	if err != nil {
		s.files.Remove(context.WithoutCancel(ctx), storedNames(p)...)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("claim %d not found", id)
		}
		return apperr.FromStorage(err)
	}

	s.files.Remove(context.WithoutCancel(ctx), removed...)
	recordStored(p)
	if toStatus != "" {
		statusTransitionsTotal.WithLabelValues(string(fromStatus), string(toStatus)).Inc()
		logger.Warn("⚠️  Claim %d status set %s → %s by edit (%s), workflow rules not applied", id, fromStatus, toStatus, actor)
	}
	logger.Info("✅ Claim %d updated by %s (%d fields, -%d/+%d files)", id, actor, len(patch), len(removed), u.Files.count())
	return nil
}

// deleteAttachments removes the listed attachments of requestID and returns
// their stored names. Every id must belong to the claim.
func deleteAttachments(ctx context.Context, tx *gorm.DB, requestID uint, ids []uint) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	unique := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}

	var atts []models.Attachment
	if err := tx.WithContext(ctx).Where("request_id = ? AND id IN ?", requestID, ids).Find(&atts).Error; err != nil {
		return nil, err
	}
	if len(atts) != len(unique) {
		return nil, apperr.NotFound("some files to delete do not belong to claim %d", requestID)
	}
	if err := tx.WithContext(ctx).Delete(&atts).Error; err != nil {
		return nil, err
	}

	names := make([]string, len(atts))
	for i, a := range atts {
		names[i] = a.StoredFilename
	}
	return names, nil
}
