// Package claims implements the refund and misdeposit claim lifecycle:
// submission, admin edits, status changes, attachments and deletion.
//
// Every multi-step write runs in one database transaction. Attachment files
// are written before the transaction opens; if it rolls back, the files it
// would have referenced are deleted again.
package claims

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/pkg/claimcode"
	"p9e.in/reasonsform/pkg/filestore"
	"p9e.in/reasonsform/pkg/logger"
	"p9e.in/reasonsform/pkg/notify"
	"p9e.in/reasonsform/pkg/workflow"
)

// createAttempts bounds retries of a create transaction that lost a race
// for its request code.
const createAttempts = 3

// Source tells public submissions from admin-created claims.
type Source string

const (
	SourcePublic Source = "public"
	SourceAdmin  Source = "admin"
)

// Service is the claim orchestrator.
type Service struct {
	db       *gorm.DB
	files    *filestore.Store
	codes    *claimcode.Generator
	engine   *workflow.Engine
	notifier notify.Notifier
	now      func() time.Time
}

// New wires a Service. A nil notifier disables notifications.
func New(db *gorm.DB, files *filestore.Store, engine *workflow.Engine, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		db:       db,
		files:    files,
		codes:    claimcode.New(),
		engine:   engine,
		notifier: notifier,
		now:      time.Now,
	}
}

// Submission is a new claim with its files.
type Submission struct {
	Type     models.RequestType
	Fields   Fields
	Files    Uploads
	ClientIP string
}

// Created is returned for a new claim.
type Created struct {
	ID          uint   `json:"id"`
	RequestCode string `json:"request_code"`
}

// SubmitClaim handles the public form. Consent is mandatory.
func (s *Service) SubmitClaim(ctx context.Context, sub Submission) (*Created, error) {
	return s.create(ctx, sub, SourcePublic, "")
}

// CreateClaim is the admin variant: consent is optional and actor is recorded
// in the status log.
func (s *Service) CreateClaim(ctx context.Context, sub Submission, actor string) (*Created, error) {
	return s.create(ctx, sub, SourceAdmin, actor)
}

func (s *Service) create(ctx context.Context, sub Submission, source Source, actor string) (*Created, error) {
	now := s.now()
	req, err := buildRequest(sub.Type, sub.Fields, source == SourcePublic, now)
	if err != nil {
		return nil, err
	}
	if req.TermsAgreed {
		req.TermsIP = sub.ClientIP
	}

	if len(sub.Files[models.CategoryDepositEvidence]) == 0 {
		return nil, apperr.Validation(models.CategoryDepositEvidence.Label(), "at least one file is required")
	}
	if sub.Type == models.RequestTypeRefund && len(sub.Files[models.CategoryIdentityDocument]) == 0 {
		return nil, apperr.Validation(models.CategoryIdentityDocument.Label(), "at least one file is required for refund claims")
	}
	v, err := s.validateUploads(sub.Files)
	if err != nil {
		return nil, err
	}
	p, err := s.persistUploads(ctx, v)
	if err != nil {
		return nil, err
	}

	meta := datatypes.JSONMap{
		"source":    string(source),
		"files":     sub.Files.count(),
		"client_ip": sub.ClientIP,
	}
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.insertClaim(ctx, tx, req, p, now, actor, meta)
		})
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) || attempt == createAttempts {
			break
		}
		logger.Warn("⚠️  Request code %s taken concurrently, retrying (%d/%d)", req.RequestCode, attempt, createAttempts)
		req.ID = 0
	}
	if err != nil {
		s.files.Remove(context.WithoutCancel(ctx), storedNames(p)...)
		return nil, apperr.FromStorage(err)
	}

	claimsSubmittedTotal.WithLabelValues(string(req.RequestType), string(source)).Inc()
	recordStored(p)
	logger.Info("✅ Claim %s created (%s, %d files)", req.RequestCode, source, sub.Files.count())

	s.notifier.Notify(notify.ClaimSubmitted(req, string(source), sub.Files.count()))
	return &Created{ID: req.ID, RequestCode: req.RequestCode}, nil
}

// insertClaim issues the code, inserts the request and its attachments, and
// syncs primary_file, all on tx. meta is stored on the creation log entry.
func (s *Service) insertClaim(ctx context.Context, tx *gorm.DB, req *models.Request, p []persisted, now time.Time, actor string, meta datatypes.JSONMap) error {
	code, err := s.codes.Generate(ctx, tx, req.RequestType, now)
	if err != nil {
		return err
	}
	req.RequestCode = code.RequestCode
	req.SequenceKey = code.SequenceKey
	req.PrimaryFile = nil

	if err := tx.WithContext(ctx).Omit("Files", "StatusLogs").Create(req).Error; err != nil {
		return err
	}
	if err := insertAttachments(ctx, tx, req.ID, p, now); err != nil {
		return err
	}
	primary, err := syncPrimaryFile(ctx, tx, req.ID)
	if err != nil {
		return err
	}
	req.PrimaryFile = primary

	if actor == "" {
		actor = string(SourcePublic)
	}
	return tx.WithContext(ctx).Create(&models.RequestStatusLog{
		RequestID: req.ID,
		ToStatus:  req.Status,
		Actor:     actor,
		Via:       models.ViaCreate,
		Metadata:  meta,
		ChangedAt: now,
	}).Error
}

// DeleteClaim removes claim id, its attachment rows (by cascade) and,
// best-effort, their stored files.
func (s *Service) DeleteClaim(ctx context.Context, id uint) error {
	var names []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lookup(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Attachment{}).Where("request_id = ?", id).
			Pluck("stored_filename", &names).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Request{}, id).Error
	})
	if err != nil {
		return apperr.FromStorage(err)
	}

	s.files.Remove(context.WithoutCancel(ctx), names...)
	logger.Info("🗑️ Deleted claim %d and %d file(s)", id, len(names))
	return nil
}
