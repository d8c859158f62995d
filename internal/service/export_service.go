package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/siswa-gateway/internal/listing"
	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
	"github.com/noah-isme/siswa-gateway/pkg/export"
)

const exportFilePrefix = "data_siswa"

// SiswaColumns is the fixed export column order with spreadsheet widths.
var SiswaColumns = []struct {
	Header string
	Width  float64
}{
	{"No", 5},
	{"Nama Siswa", 25},
	{"NIS", 15},
	{"NISN", 15},
	{"Kelas", 10},
	{"Rombel", 10},
	{"Ekstrakurikuler", 30},
	{"Jenis Kelamin", 15},
	{"Tahun Masuk", 12},
	{"Status", 10},
}

type fullDatasetSource interface {
	AllSiswa(ctx context.Context) ([]models.Siswa, error)
}

// ExportConfig tunes exports.
type ExportConfig struct {
	DefaultFormat export.Format
	SheetName     string
}

// ExportFile is a rendered export ready to be served.
type ExportFile struct {
	FileName    string
	ContentType string
	Format      export.Format
	Rows        int
	Data        []byte
}

// ExportService renders the selection of a view into a file. With every
// matching record selected the complete dataset is fetched from the backend;
// otherwise only the selected rows held by the view are exported.
type ExportService struct {
	views     *ViewService
	source    fullDatasetSource
	renderers map[export.Format]export.Renderer
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs the export service. A nil renderers map uses
// the built-in renderers.
func NewExportService(views *ViewService, source fullDatasetSource, renderers map[export.Format]export.Renderer, metrics *MetricsService, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if renderers == nil {
		renderers = export.Renderers()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = export.FormatXLSX
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Data Siswa"
	}
	return &ExportService{views: views, source: source, renderers: renderers, metrics: metrics, logger: logger, cfg: cfg}
}

// Export renders the current selection of a view. format may be empty for
// the default format. The selection is left untouched.
func (s *ExportService) Export(ctx context.Context, viewID string, format export.Format) (*ExportFile, error) {
	if format == "" {
		format = s.cfg.DefaultFormat
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	var (
		allMatching bool
		rows        []models.Siswa
		sortCfg     models.SortConfig
	)
	_, err := s.views.mutate(ctx, viewID, func(v *models.ViewState) error {
		allMatching = v.Selection.AllMatchingSelected()
		sortCfg = v.Query.Sort
		if !allMatching {
			rows = v.SelectedRows()
			if len(rows) == 0 {
				return appErrors.Clone(appErrors.ErrEmptyExport, "")
			}
		}
		m, err := v.Actions.Get(selection.KindExport).Request(selection.KindExport, nil, s.views.now().UTC())
		if err != nil {
			return machineError(err)
		}
		v.Actions = v.Actions.With(selection.KindExport, m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	file, exportErr := s.render(ctx, renderer, format, allMatching, rows, sortCfg)
	s.complete(ctx, viewID, exportErr)
	if s.metrics != nil {
		outcome := selection.OutcomeSuccess
		count := 0
		if exportErr != nil {
			outcome = selection.OutcomeFailure
		} else {
			count = file.Rows
		}
		s.metrics.RecordBulkAction(string(selection.KindExport), string(outcome), count, time.Since(start))
	}
	if exportErr != nil {
		return nil, exportErr
	}
	s.logger.Info("export rendered",
		zap.String("view_id", viewID),
		zap.String("format", string(format)),
		zap.Bool("all_matching", allMatching),
		zap.Int("rows", file.Rows))
	return file, nil
}

func (s *ExportService) render(ctx context.Context, renderer export.Renderer, format export.Format, allMatching bool, rows []models.Siswa, sortCfg models.SortConfig) (*ExportFile, error) {
	if allMatching {
		all, err := s.source.AllSiswa(ctx)
		if err != nil {
			s.logger.Warn("full dataset fetch failed", zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrBackendUnavailable.Code, appErrors.ErrBackendUnavailable.Status, "Gagal mengekspor data: "+err.Error())
		}
		rows = listing.Sort(all, sortCfg)
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyExport, "")
	}

	data, err := renderer.Render(SiswaDataset(rows), s.cfg.SheetName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Gagal mengekspor data")
	}
	return &ExportFile{
		FileName:    export.FileName(exportFilePrefix, s.views.now(), format),
		ContentType: format.ContentType(),
		Format:      format,
		Rows:        len(rows),
		Data:        data,
	}, nil
}

func (s *ExportService) complete(ctx context.Context, viewID string, exportErr error) {
	_, err := s.views.mutate(ctx, viewID, func(v *models.ViewState) error {
		m, err := v.Actions.Get(selection.KindExport).Complete(exportErr)
		if err == nil {
			v.Actions = v.Actions.With(selection.KindExport, m)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("export state update failed", zap.String("view_id", viewID), zap.Error(err))
	}
}

// SiswaDataset lays rows out in the fixed export columns, numbered from 1
// in the given order.
func SiswaDataset(rows []models.Siswa) export.Dataset {
	data := export.Dataset{
		Headers: make([]string, len(SiswaColumns)),
		Widths:  make([]float64, len(SiswaColumns)),
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for i, col := range SiswaColumns {
		data.Headers[i] = col.Header
		data.Widths[i] = col.Width
	}
	for i, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"No":              strconv.Itoa(i + 1),
			"Nama Siswa":      row.NamaSiswa,
			"NIS":             row.NIS,
			"NISN":            row.NISN,
			"Kelas":           orDash(row.NamaKelas),
			"Rombel":          orDash(row.NamaRombel),
			"Ekstrakurikuler": ekskulNames(row.Ekskul),
			"Jenis Kelamin":   row.JenisKelamin,
			"Tahun Masuk":     tahunMasuk(row.TahunMasuk),
			"Status":          row.Status.Label(),
		})
	}
	return data
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func ekskulNames(tags []models.EkskulTag) string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag.Nama != "" {
			names = append(names, tag.Nama)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func tahunMasuk(year int) string {
	if year <= 0 {
		return "-"
	}
	return strconv.Itoa(year)
}
