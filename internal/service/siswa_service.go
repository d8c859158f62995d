package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/pkg/backend"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
)

type siswaBackend interface {
	Relations(ctx context.Context, id int64) (*models.Relations, error)
	SiswaEkskul(ctx context.Context, id int64) ([]models.SiswaEkskul, error)
	UpdateSiswa(ctx context.Context, id int64, req models.UpdateSiswaRequest) error
	References(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceOption, error)
}

// SiswaService serves the detail and edit dialogs of a single record and
// the dropdown reference lists.
type SiswaService struct {
	backend   siswaBackend
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSiswaService constructs the service. cache may be nil.
func NewSiswaService(backend siswaBackend, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SiswaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiswaService{backend: backend, cache: cache, validator: validate, logger: logger}
}

// Detail loads the relations and extracurricular memberships of a record.
func (s *SiswaService) Detail(ctx context.Context, id int64) (*models.SiswaDetail, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid siswa id")
	}
	rel, err := s.backend.Relations(ctx, id)
	if err != nil {
		return nil, s.backendError(err, "Gagal memuat data")
	}
	ekskul, err := s.backend.SiswaEkskul(ctx, id)
	if err != nil {
		return nil, s.backendError(err, "Gagal memuat data")
	}
	return &models.SiswaDetail{ID: id, Relations: *rel, Ekskul: ekskul}, nil
}

// Update validates and forwards an inline edit. Open views are not patched;
// clients refresh them.
func (s *SiswaService) Update(ctx context.Context, id int64, req models.UpdateSiswaRequest) error {
	if id <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid siswa id")
	}
	req.NamaSiswa = strings.TrimSpace(req.NamaSiswa)
	req.NIS = strings.TrimSpace(req.NIS)
	req.NISN = strings.TrimSpace(req.NISN)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid siswa payload")
	}
	if req.IDEkskul == nil {
		req.IDEkskul = []int64{}
	}
	if err := s.backend.UpdateSiswa(ctx, id, req); err != nil {
		return s.backendError(err, "Gagal update")
	}
	s.logger.Info("siswa updated", zap.Int64("id_siswa", id))
	return nil
}

// References returns a dropdown list and whether it came from the cache.
// With refresh set every cached list is dropped and kind is refetched.
func (s *SiswaService) References(ctx context.Context, kind models.ReferenceKind, refresh bool) ([]models.ReferenceOption, bool, error) {
	if _, _, ok := kind.Fields(); !ok {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown reference %q", kind))
	}
	key := ReferenceKey(string(kind))

	if refresh {
		if err := s.cache.InvalidateReferences(ctx); err != nil {
			s.logger.Warn("reference cache invalidation failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	} else {
		var cached []models.ReferenceOption
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, true, nil
		}
	}

	options, err := s.backend.References(ctx, kind)
	if err != nil {
		return nil, false, s.backendError(err, "Gagal memuat data")
	}
	_ = s.cache.Set(ctx, key, options, 0)
	return options, false, nil
}

// backendError maps backend failures: 404 stays 404, 4xx answers keep the
// backend's message as validation errors, the rest is a bad gateway.
func (s *SiswaService) backendError(err error, fallback string) error {
	if backend.IsNotFound(err) {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "siswa not found")
	}
	msg := fallback
	if m := backend.Message(err); m != "" {
		msg = fmt.Sprintf("%s: %s", fallback, m)
	}
	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
	}
	s.logger.Warn("backend call failed", zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, msg)
}
