package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/siswa-gateway/internal/listing"
	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
)

type siswaLister interface {
	ListSiswa(ctx context.Context, q models.ListQuery) (*models.SiswaPage, error)
	MatchingIDs(ctx context.Context, active bool) ([]int64, error)
}

type viewStore interface {
	Get(ctx context.Context, id string) (*models.ViewState, error)
	Save(ctx context.Context, view *models.ViewState) error
	Delete(ctx context.Context, id string) error
}

// ViewConfig tunes listing views.
type ViewConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	// ActionTimeout returns bulk actions stuck confirming or in flight to
	// idle, e.g. after the replica handling them died.
	ActionTimeout time.Duration
}

// ViewService owns the state of open listing views: query, visible page,
// selection and the matching id cache. State is only locked while it is
// read or written; backend round trips run unlocked and the last response
// to land is applied.
type ViewService struct {
	store     viewStore
	backend   siswaLister
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ViewConfig
	locks     *viewLocks
	now       func() time.Time
}

// NewViewService constructs the view service.
func NewViewService(store viewStore, backend siswaLister, validate *validator.Validate, logger *zap.Logger, cfg ViewConfig) *ViewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 100
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 5 * time.Minute
	}
	return &ViewService{
		store:     store,
		backend:   backend,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		locks:     newViewLocks(),
		now:       time.Now,
	}
}

// Create opens a view with default query values overridden by patch, then
// loads the id cache and the first page. Load failures are recorded on the
// view instead of failing the call.
func (s *ViewService) Create(ctx context.Context, patch models.QueryPatch) (*models.ViewState, error) {
	if err := s.validatePatch(patch); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	view := &models.ViewState{
		ID:      uuid.NewString(),
		OwnerID: ActorFrom(ctx).UserID,
		Query: models.ListQuery{
			Page:     1,
			PageSize: s.cfg.DefaultPageSize,
			Sort:     models.DefaultSort(),
			Active:   true,
		},
		ViewMode:  models.ViewModeList,
		Actions:   selection.Actions{},
		Rows:      []models.Siswa{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.applyPatch(view, patch, false)
	view.Selection = selection.New(view.Query.Active)

	if err := s.store.Save(ctx, view); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save view")
	}
	s.logger.Info("view created", zap.String("view_id", view.ID), zap.Bool("active", view.Query.Active))

	if _, err := s.loadIDs(ctx, view.ID); err != nil && !isLoadError(err) {
		return nil, err
	}
	loaded, err := s.loadPage(ctx, view.ID)
	if err != nil && !isLoadError(err) {
		return nil, err
	}
	return loaded, nil
}

// Get returns a view.
func (s *ViewService) Get(ctx context.Context, id string) (*models.ViewState, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	return s.load(ctx, id)
}

// Delete closes a view.
func (s *ViewService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete view")
	}
	return nil
}

// UpdateQuery changes page, page size, search, sort, status filter or view
// mode. A status change clears the selection and the id cache and refetches
// both; any other listing change only refetches the page.
func (s *ViewService) UpdateQuery(ctx context.Context, id string, patch models.QueryPatch) (*models.ViewState, error) {
	if err := s.validatePatch(patch); err != nil {
		return nil, err
	}
	var listingChanged, statusChanged bool
	view, err := s.mutate(ctx, id, func(v *models.ViewState) error {
		before := v.Query
		s.applyPatch(v, patch, true)
		listingChanged = v.Query != before
		if v.Query.Active != before.Active {
			statusChanged = true
			v.Apply(selection.StatusChanged{Active: v.Query.Active})
			v.Rows = []models.Siswa{}
			v.TotalData = 0
			v.Loaded = models.ListQuery{}
			v.ListError = ""
			cancelConfirming(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if statusChanged {
		s.logger.Info("status filter changed", zap.String("view_id", id), zap.Bool("active", view.Query.Active))
		if _, err := s.loadIDs(ctx, id); err != nil && !isLoadError(err) {
			return nil, err
		}
	}
	if !listingChanged {
		return view, nil
	}
	view, err = s.loadPage(ctx, id)
	if err != nil && !isLoadError(err) {
		return nil, err
	}
	return view, nil
}

// Refresh refetches the visible page. It fails with LIST_UNAVAILABLE when
// the backend cannot serve it; the failure is also kept on the view.
func (s *ViewService) Refresh(ctx context.Context, id string) (*models.ViewState, error) {
	return s.loadPage(ctx, id)
}

// RefreshIDs refetches the matching id cache. It fails with IDS_UNAVAILABLE
// when the backend cannot serve it; the selection is never touched.
func (s *ViewService) RefreshIDs(ctx context.Context, id string) (*models.ViewState, error) {
	return s.loadIDs(ctx, id)
}

// Reload refetches the id cache and the page after the backend data changed.
// It is the refresh contract bulk actions rely on.
func (s *ViewService) Reload(ctx context.Context, id string) (*models.ViewState, error) {
	if _, err := s.loadIDs(ctx, id); err != nil && !isLoadError(err) {
		return nil, err
	}
	return s.loadPage(ctx, id)
}

// ToggleRow flips the selection of one record.
func (s *ViewService) ToggleRow(ctx context.Context, id string, rowID int64) (*models.ViewState, error) {
	return s.mutate(ctx, id, func(v *models.ViewState) error {
		v.Apply(selection.ToggleRow{ID: rowID})
		return nil
	})
}

// ToggleVisible selects or deselects the whole visible page.
func (s *ViewService) ToggleVisible(ctx context.Context, id string) (*models.ViewState, error) {
	return s.mutate(ctx, id, func(v *models.ViewState) error {
		v.Apply(selection.ToggleVisible{})
		return nil
	})
}

// ClearSelection empties the selection.
func (s *ViewService) ClearSelection(ctx context.Context, id string) (*models.ViewState, error) {
	return s.mutate(ctx, id, func(v *models.ViewState) error {
		v.Apply(selection.Clear{})
		return nil
	})
}

// SelectAllMatching selects every record matching the status filter, or
// clears the selection when that is already the case. The id cache is
// fetched first when it is empty.
func (s *ViewService) SelectAllMatching(ctx context.Context, id string) (*models.ViewState, error) {
	var needsFetch bool
	var active bool
	view, err := s.mutate(ctx, id, func(v *models.ViewState) error {
		active = v.Query.Active
		if v.Selection.NeedsMatching() {
			needsFetch = true
			return nil
		}
		v.Apply(selection.SelectAllMatching{})
		return nil
	})
	if err != nil || !needsFetch {
		return view, err
	}

	ids, fetchErr := s.backend.MatchingIDs(ctx, active)
	view, err = s.mutate(ctx, id, func(v *models.ViewState) error {
		if v.Selection.Active != active {
			return nil
		}
		if fetchErr != nil {
			v.Apply(selection.MatchingFailed{Message: appErrors.ErrIDsUnavailable.Message})
			return nil
		}
		v.Apply(selection.MatchingLoaded{IDs: ids})
		v.Apply(selection.SelectAllMatching{})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fetchErr != nil {
		s.logger.Warn("matching ids fetch failed", zap.String("view_id", id), zap.Error(fetchErr))
		return view, idsUnavailable(fetchErr)
	}
	return view, nil
}

func (s *ViewService) loadPage(ctx context.Context, id string) (*models.ViewState, error) {
	unlock := s.locks.lock(id)
	view, err := s.load(ctx, id)
	unlock()
	if err != nil {
		return nil, err
	}
	query := view.Query

	page, fetchErr := s.backend.ListSiswa(ctx, query)
	view, err = s.mutate(ctx, id, func(v *models.ViewState) error {
		// A page of the previous status filter must not become visible.
		if v.Query.Active != query.Active {
			return nil
		}
		if fetchErr != nil {
			v.ListError = appErrors.ErrListUnavailable.Message
			return nil
		}
		v.ListError = ""
		v.Rows = listing.Sort(page.Rows, query.Sort)
		v.TotalData = page.Total
		v.Loaded = query
		v.Apply(selection.VisibleLoaded{IDs: listing.IDs(v.Rows)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fetchErr != nil {
		s.logger.Warn("page fetch failed", zap.String("view_id", id), zap.Int("page", query.Page), zap.Error(fetchErr))
		return view, appErrors.Wrap(fetchErr, appErrors.ErrListUnavailable.Code, appErrors.ErrListUnavailable.Status, appErrors.ErrListUnavailable.Message)
	}
	return view, nil
}

func (s *ViewService) loadIDs(ctx context.Context, id string) (*models.ViewState, error) {
	unlock := s.locks.lock(id)
	view, err := s.load(ctx, id)
	unlock()
	if err != nil {
		return nil, err
	}
	active := view.Query.Active

	ids, fetchErr := s.backend.MatchingIDs(ctx, active)
	view, err = s.mutate(ctx, id, func(v *models.ViewState) error {
		if v.Selection.Active != active {
			return nil
		}
		if fetchErr != nil {
			v.Apply(selection.MatchingFailed{Message: appErrors.ErrIDsUnavailable.Message})
			return nil
		}
		v.Apply(selection.MatchingLoaded{IDs: ids})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fetchErr != nil {
		s.logger.Warn("matching ids fetch failed", zap.String("view_id", id), zap.Error(fetchErr))
		return view, idsUnavailable(fetchErr)
	}
	return view, nil
}

// mutate runs fn on the stored view under the view lock and saves the
// result. Nothing is saved when fn fails.
func (s *ViewService) mutate(ctx context.Context, id string, fn func(*models.ViewState) error) (*models.ViewState, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	view, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(view); err != nil {
		return nil, err
	}
	view.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, view); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save view")
	}
	return view, nil
}

// load reads a view the caller may access; callers hold the view lock.
func (s *ViewService) load(ctx context.Context, id string) (*models.ViewState, error) {
	view, err := s.store.Get(ctx, id)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load view")
	}
	actor := ActorFrom(ctx)
	if view.OwnerID != "" && view.OwnerID != actor.UserID && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "view not found")
	}
	if view.Selection.Selected == nil {
		view.Selection.Selected = selection.NewSet()
	}
	s.expireActions(view)
	return view, nil
}

func (s *ViewService) expireActions(view *models.ViewState) {
	now := s.now()
	for kind, m := range view.Actions {
		if m.Expired(now, s.cfg.ActionTimeout) {
			s.logger.Warn("bulk action expired", zap.String("view_id", view.ID), zap.String("action", string(kind)), zap.String("phase", string(m.Phase)))
			view.Actions = view.Actions.With(kind, selection.Machine{
				Phase:       selection.PhaseIdle,
				LastOutcome: selection.OutcomeFailure,
				LastError:   "action timed out",
			})
		}
	}
}

func (s *ViewService) validatePatch(patch models.QueryPatch) error {
	if err := s.validator.Struct(patch); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query")
	}
	if patch.SortKey != nil && !patch.SortKey.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "invalid sort key")
	}
	return nil
}

// applyPatch merges patch into the view query. With toggle set, a sort key
// without an explicit order behaves like a header click.
func (s *ViewService) applyPatch(v *models.ViewState, p models.QueryPatch, toggle bool) {
	q := v.Query
	resetPage := false

	if p.PageSize != nil && *p.PageSize != q.PageSize {
		q.PageSize = *p.PageSize
		if q.PageSize > s.cfg.MaxPageSize {
			q.PageSize = s.cfg.MaxPageSize
		}
		resetPage = true
	}
	if p.Search != nil {
		search := strings.TrimSpace(*p.Search)
		if search != q.Search {
			q.Search = search
			resetPage = true
		}
	}
	if p.Active != nil && *p.Active != q.Active {
		q.Active = *p.Active
		resetPage = true
	}
	switch {
	case p.SortKey != nil && p.Order != nil:
		q.Sort = models.SortConfig{Key: *p.SortKey, Order: *p.Order}
	case p.SortKey != nil && toggle:
		q.Sort = q.Sort.Toggle(*p.SortKey)
	case p.SortKey != nil:
		q.Sort = models.SortConfig{Key: *p.SortKey, Order: models.OrderAsc}
	case p.Order != nil:
		q.Sort.Order = *p.Order
	}
	if p.Page != nil {
		q.Page = *p.Page
	} else if resetPage {
		q.Page = 1
	}
	if p.ViewMode != nil {
		v.ViewMode = *p.ViewMode
	}
	v.Query = q
}

// cancelConfirming drops prompts raised for the previous status filter.
func cancelConfirming(v *models.ViewState) {
	for kind, m := range v.Actions {
		if m.Phase == selection.PhaseConfirming {
			cancelled, err := m.Cancel()
			if err == nil {
				v.Actions = v.Actions.With(kind, cancelled)
			}
		}
	}
}

func idsUnavailable(err error) error {
	return appErrors.Wrap(err, appErrors.ErrIDsUnavailable.Code, appErrors.ErrIDsUnavailable.Status, appErrors.ErrIDsUnavailable.Message)
}

// isLoadError reports whether err only means a backend fetch failed and was
// recorded on the view.
func isLoadError(err error) bool {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == appErrors.ErrListUnavailable.Code || appErr.Code == appErrors.ErrIDsUnavailable.Code
}
