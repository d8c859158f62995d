package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/siswa-gateway/internal/models"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
	"github.com/noah-isme/siswa-gateway/pkg/jobs"
)

const auditJobType = "bulk_action_log"

type auditRepository interface {
	CreateBulkActionLog(ctx context.Context, entry *models.BulkActionLog) error
	ListBulkActionLogs(ctx context.Context, viewID string, limit int) ([]models.BulkActionLog, error)
}

type auditQueue interface {
	TryEnqueue(job jobs.Job) error
}

// AuditService writes bulk action outcomes to the audit table through a
// background queue so a slow database never delays the response.
type AuditService struct {
	repo    auditRepository
	queue   auditQueue
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditService constructs the service. Attach a queue with UseQueue;
// without one entries are written inline.
func NewAuditService(repo auditRepository, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, metrics: metrics, logger: logger, now: time.Now}
}

// UseQueue routes Record through q. q must be built with Handle as its
// handler.
func (s *AuditService) UseQueue(q auditQueue) {
	s.queue = q
}

// Record stores entry, asynchronously when a queue is attached. Failures
// are logged and never surface to the caller.
func (s *AuditService) Record(ctx context.Context, entry models.BulkActionLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if s.queue == nil {
		if err := s.write(ctx, &entry); err != nil {
			s.logger.Warn("audit write failed", zap.String("audit_id", entry.ID), zap.Error(err))
		}
		return
	}
	err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: entry})
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrQueueStopped):
		// Actions finishing during shutdown are written inline.
		if err := s.write(context.WithoutCancel(ctx), &entry); err != nil {
			s.logger.Warn("audit write failed", zap.String("audit_id", entry.ID), zap.Error(err))
		}
	default:
		s.logger.Warn("audit entry dropped", zap.String("audit_id", entry.ID), zap.String("action", entry.Action), zap.Error(err))
	}
}

// Handle is the queue handler persisting one entry.
func (s *AuditService) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.BulkActionLog)
	if !ok {
		s.logger.Error("unexpected audit payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.write(ctx, &entry)
}

// History returns the newest audited actions of a view.
func (s *AuditService) History(ctx context.Context, viewID string, limit int) ([]models.BulkActionLog, error) {
	start := time.Now()
	logs, err := s.repo.ListBulkActionLogs(ctx, viewID, limit)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("list_bulk_action_logs", time.Since(start))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit history")
	}
	if logs == nil {
		logs = []models.BulkActionLog{}
	}
	return logs, nil
}

func (s *AuditService) write(ctx context.Context, entry *models.BulkActionLog) error {
	start := time.Now()
	err := s.repo.CreateBulkActionLog(ctx, entry)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("create_bulk_action_log", time.Since(start))
	}
	return err
}

func idsJSON(ids []int64) json.RawMessage {
	if ids == nil {
		ids = []int64{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}
