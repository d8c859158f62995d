package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
	"github.com/noah-isme/siswa-gateway/pkg/backend"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
)

type bulkBackend interface {
	SetStatus(ctx context.Context, ids []int64, target models.StatusFlag) error
	DeleteSiswa(ctx context.Context, ids []int64) error
}

// viewRefresher refetches a view after the backend data changed. Bulk
// actions never patch rows locally.
type viewRefresher interface {
	Reload(ctx context.Context, id string) (*models.ViewState, error)
}

// AuditRecorder stores bulk action outcomes.
type AuditRecorder interface {
	Record(ctx context.Context, entry models.BulkActionLog)
}

// ActionResult is the outcome of a bulk action transition.
type ActionResult struct {
	View   *models.ViewState
	Kind   selection.Kind
	Count  int
	Notice *models.Notice
}

// BulkService runs archive, unarchive and permanent delete on the selection
// of a view. Each action walks its own idle, confirming, in flight machine.
type BulkService struct {
	views   *ViewService
	refresh viewRefresher
	backend bulkBackend
	audit   AuditRecorder
	metrics *MetricsService
	logger  *zap.Logger
}

// NewBulkService constructs the bulk action service. audit and metrics are
// optional.
func NewBulkService(views *ViewService, backend bulkBackend, audit AuditRecorder, metrics *MetricsService, logger *zap.Logger) *BulkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkService{views: views, refresh: views, backend: backend, audit: audit, metrics: metrics, logger: logger}
}

// Request captures the current selection and asks for confirmation. An empty
// selection is rejected and nothing changes.
func (s *BulkService) Request(ctx context.Context, viewID string, kind selection.Kind) (*ActionResult, error) {
	if err := requireConfirmable(kind); err != nil {
		return nil, err
	}
	var count int
	var active bool
	view, err := s.views.mutate(ctx, viewID, func(v *models.ViewState) error {
		if v.Selection.Selected.Len() == 0 {
			return appErrors.Clone(appErrors.ErrNothingSelected, "")
		}
		m, err := v.Actions.Get(kind).Request(kind, v.Selection.Selected.Sorted(), s.views.now().UTC())
		if err != nil {
			return machineError(err)
		}
		v.Actions = v.Actions.With(kind, m)
		count = len(m.Pending)
		active = v.Query.Active
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ActionResult{View: view, Kind: kind, Count: count, Notice: models.InfoNotice(confirmPrompt(kind, active, count))}, nil
}

// Cancel abandons a pending confirmation.
func (s *BulkService) Cancel(ctx context.Context, viewID string, kind selection.Kind) (*ActionResult, error) {
	if err := requireConfirmable(kind); err != nil {
		return nil, err
	}
	view, err := s.views.mutate(ctx, viewID, func(v *models.ViewState) error {
		m, err := v.Actions.Get(kind).Cancel()
		if err != nil {
			return machineError(err)
		}
		v.Actions = v.Actions.With(kind, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ActionResult{View: view, Kind: kind}, nil
}

// Confirm sends the ids captured by Request as one batch. On success the
// selection is cleared and the view reloaded; on failure the selection is
// kept so the user can retry.
func (s *BulkService) Confirm(ctx context.Context, viewID string, kind selection.Kind) (*ActionResult, error) {
	if err := requireConfirmable(kind); err != nil {
		return nil, err
	}
	var ids []int64
	var active bool
	_, err := s.views.mutate(ctx, viewID, func(v *models.ViewState) error {
		m, err := v.Actions.Get(kind).Confirm(s.views.now().UTC())
		if err != nil {
			return machineError(err)
		}
		v.Actions = v.Actions.With(kind, m)
		ids = m.Pending
		active = v.Query.Active
		return nil
	})
	if err != nil {
		return nil, err
	}

	target := models.StatusFor(!active)
	start := time.Now()
	sendErr := s.send(ctx, kind, ids, target)
	duration := time.Since(start)

	view, err := s.views.mutate(ctx, viewID, func(v *models.ViewState) error {
		m, err := v.Actions.Get(kind).Complete(sendErr)
		if err != nil {
			// The machine was reset while the request ran.
			s.logger.Warn("bulk action completed after reset", zap.String("view_id", viewID), zap.String("action", string(kind)))
		} else {
			v.Actions = v.Actions.With(kind, m)
		}
		if sendErr == nil {
			v.Apply(selection.BulkSucceeded{})
		}
		return nil
	})
	s.record(ctx, viewID, kind, active, target, ids, sendErr, duration)
	if err != nil {
		return nil, err
	}

	if sendErr != nil {
		msg := failureMessage(kind, active, sendErr)
		s.logger.Warn("bulk action failed",
			zap.String("view_id", viewID),
			zap.String("action", string(kind)),
			zap.Int("count", len(ids)),
			zap.Error(sendErr))
		result := &ActionResult{View: view, Kind: kind, Count: len(ids), Notice: models.ErrorNotice(msg)}
		return result, appErrors.Wrap(sendErr, appErrors.ErrBulkActionFailed.Code, appErrors.ErrBulkActionFailed.Status, msg)
	}

	s.logger.Info("bulk action succeeded",
		zap.String("view_id", viewID),
		zap.String("action", string(kind)),
		zap.Int("count", len(ids)))

	refreshed, err := s.refresh.Reload(ctx, viewID)
	if refreshed != nil {
		view = refreshed
	} else if err != nil {
		s.logger.Warn("reload after bulk action failed", zap.String("view_id", viewID), zap.Error(err))
	}
	return &ActionResult{View: view, Kind: kind, Count: len(ids), Notice: models.SuccessNotice(successMessage(kind, active, len(ids)))}, nil
}

func (s *BulkService) send(ctx context.Context, kind selection.Kind, ids []int64, target models.StatusFlag) error {
	switch kind {
	case selection.KindArchive:
		return s.backend.SetStatus(ctx, ids, target)
	case selection.KindDelete:
		return s.backend.DeleteSiswa(ctx, ids)
	}
	return fmt.Errorf("unsupported action %s", kind)
}

func (s *BulkService) record(ctx context.Context, viewID string, kind selection.Kind, active bool, target models.StatusFlag, ids []int64, sendErr error, duration time.Duration) {
	outcome := selection.OutcomeSuccess
	if sendErr != nil {
		outcome = selection.OutcomeFailure
	}
	if s.metrics != nil {
		s.metrics.RecordBulkAction(string(kind), string(outcome), len(ids), duration)
	}
	if s.audit == nil {
		return
	}
	entry := models.BulkActionLog{
		ViewID:  viewID,
		UserID:  ActorFrom(ctx).userIDPtr(),
		Action:  string(kind),
		Active:  active,
		Count:   len(ids),
		Outcome: string(outcome),
	}
	if kind == selection.KindArchive {
		t := int(target)
		entry.Target = &t
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Error = &msg
	}
	entry.IDs = idsJSON(ids)
	s.audit.Record(ctx, entry)
}

func requireConfirmable(kind selection.Kind) error {
	if kind != selection.KindArchive && kind != selection.KindDelete {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("action %q does not take a confirmation", kind))
	}
	return nil
}

func machineError(err error) error {
	switch {
	case errors.Is(err, selection.ErrBusy):
		return appErrors.Wrap(err, appErrors.ErrActionBusy.Code, appErrors.ErrActionBusy.Status, appErrors.ErrActionBusy.Message)
	case errors.Is(err, selection.ErrNotConfirming), errors.Is(err, selection.ErrNotInFlight):
		return appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}
	return appErrors.FromError(err)
}

func confirmPrompt(kind selection.Kind, active bool, count int) string {
	switch {
	case kind == selection.KindDelete:
		return fmt.Sprintf("Apakah Anda yakin ingin menghapus permanen %d data siswa? Aksi ini tidak dapat dibatalkan!", count)
	case active:
		return fmt.Sprintf("Apakah Anda yakin ingin mengarsipkan %d data siswa?", count)
	default:
		return fmt.Sprintf("Apakah Anda yakin ingin batal arsipkan %d data siswa?", count)
	}
}

func successMessage(kind selection.Kind, active bool, count int) string {
	switch {
	case kind == selection.KindDelete:
		return fmt.Sprintf("%d data siswa berhasil dihapus permanen", count)
	case active:
		return fmt.Sprintf("%d data siswa berhasil diarsipkan", count)
	default:
		return fmt.Sprintf("%d data siswa berhasil dipulihkan", count)
	}
}

// failureMessage prefers the backend's own error text.
func failureMessage(kind selection.Kind, active bool, err error) string {
	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	switch {
	case kind == selection.KindDelete:
		return "Gagal menghapus siswa"
	case active:
		return "Gagal mengarsipkan siswa"
	default:
		return "Gagal memulihkan siswa"
	}
}
