package claims

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/pkg/logger"
)

// SetStatus moves claim id to target through the workflow engine. Moving to
// the current status is a successful no-op.
func (s *Service) SetStatus(ctx context.Context, id uint, target models.RequestStatus, actor string) error {
	if !target.Valid() {
		return apperr.Validation("Status", "unknown status %q", target)
	}

	var from models.RequestStatus
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.Request
		if err := tx.Select("id", "status").First(&req, id).Error; err != nil {
			return err
		}
		noop, err := s.engine.Check(req.Status, target)
		if err != nil || noop {
			return err
		}

		// The status guard turns a concurrent change into a conflict instead
		// of a lost update.
		res := tx.Model(&models.Request{}).
			Where("id = ? AND status = ?", id, req.Status).
			Update("status", target)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("claim %d changed status concurrently, reload and try again", id)
		}

		from, applied = req.Status, true
		return tx.Create(&models.RequestStatusLog{
			RequestID:  id,
			FromStatus: req.Status,
			ToStatus:   target,
			Actor:      actor,
			Via:        models.ViaWorkflow,
			ChangedAt:  s.now(),
		}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("claim %d not found", id)
	}
	if err != nil {
		return apperr.FromStorage(err)
	}

	if applied {
		statusTransitionsTotal.WithLabelValues(string(from), string(target)).Inc()
		logger.Info("✅ Claim %d status %s → %s by %s", id, from, target, actor)
	}
	return nil
}
