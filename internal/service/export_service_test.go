package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
	"github.com/noah-isme/siswa-gateway/pkg/export"
)

var exportHeaders = []string{"No", "Nama Siswa", "NIS", "NISN", "Kelas", "Rombel", "Ekstrakurikuler", "Jenis Kelamin", "Tahun Masuk", "Status"}

func exportFixture(t *testing.T, records ...models.Siswa) (*fakeBackend, *ViewService, *ExportService) {
	t.Helper()
	b := newFakeBackend(records...)
	views := newTestViewService(b)
	return b, views, NewExportService(views, b, nil, nil, nil, ExportConfig{})
}

func readSheet(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Data Siswa")
	require.NoError(t, err)
	return rows
}

func TestExportSelectedLocalRows(t *testing.T) {
	first := siswa(4, "Dian", true)
	first.NamaKelas = "X"
	first.NamaRombel = "X-1"
	first.TahunMasuk = 2023
	first.JenisKelamin = "P"
	first.Ekskul = []models.EkskulTag{{Nama: "Pramuka"}, {Nama: "Basket"}}
	second := siswa(9, "Iwan", true)

	b, views, svc := exportFixture(t, first, second, siswa(11, "Kiki", true))
	ctx := context.Background()
	view, _ := views.Create(ctx, models.QueryPatch{PageSize: intPtr(10)})
	_, _ = views.ToggleRow(ctx, view.ID, 4)
	_, _ = views.ToggleRow(ctx, view.ID, 9)

	file, err := svc.Export(ctx, view.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "data_siswa_2025-07-14.xlsx", file.FileName)
	assert.Equal(t, export.FormatXLSX.ContentType(), file.ContentType)
	assert.Equal(t, 2, file.Rows)

	rows := readSheet(t, file.Data)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, []string{"1", "Dian", "NISDian", "NISNDian", "X", "X-1", "Pramuka, Basket", "P", "2023", "Aktif"}, rows[1])
	assert.Equal(t, []string{"2", "Iwan", "NISIwan", "NISNIwan", "-", "-", "-", "", "-", "Aktif"}, rows[2])

	view, err = views.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, view.Selection.Selected.Sorted())
	m := view.Actions.Get(selection.KindExport)
	assert.Equal(t, selection.PhaseIdle, m.Phase)
	assert.Equal(t, selection.OutcomeSuccess, m.LastOutcome)
	assert.Empty(t, b.statusCalls)
}

func TestExportAllMatchingFetchesFullDatasetSorted(t *testing.T) {
	_, views, svc := exportFixture(t,
		siswa(1, "Cahya", true),
		siswa(2, "Ayu", true),
		siswa(3, "Bima", false),
	)
	ctx := context.Background()
	view, _ := views.Create(ctx, models.QueryPatch{})
	_, err := views.SelectAllMatching(ctx, view.ID)
	require.NoError(t, err)

	file, err := svc.Export(ctx, view.ID, export.FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, 3, file.Rows)

	rows := readSheet(t, file.Data)
	require.Len(t, rows, 4)
	assert.Equal(t, "Ayu", rows[1][1])
	assert.Equal(t, "Bima", rows[2][1])
	assert.Equal(t, "Non-Aktif", rows[2][9])
	assert.Equal(t, "Cahya", rows[3][1])
}

func TestExportEmptySelection(t *testing.T) {
	_, views, svc := exportFixture(t, siswa(1, "Ani", true))
	ctx := context.Background()
	view, _ := views.Create(ctx, models.QueryPatch{})

	_, err := svc.Export(ctx, view.ID, export.FormatCSV)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrEmptyExport.Code, appErr.Code)
	assert.Equal(t, "Tidak ada data yang dipilih untuk diekspor", appErr.Message)

	view, _ = views.Get(ctx, view.ID)
	assert.False(t, view.Actions.Get(selection.KindExport).Busy())
}

func TestExportSelectionOutsideLocalRowsIsEmpty(t *testing.T) {
	_, views, svc := exportFixture(t, siswa(1, "Ani", true), siswa(2, "Budi", true), siswa(3, "Citra", true))
	ctx := context.Background()
	view, _ := views.Create(ctx, models.QueryPatch{})
	_, _ = views.ToggleRow(ctx, view.ID, 3)

	_, err := svc.Export(ctx, view.ID, export.FormatCSV)
	assert.Equal(t, appErrors.ErrEmptyExport.Code, appErrors.FromError(err).Code)
}

func TestExportFullDatasetFailure(t *testing.T) {
	b, views, svc := exportFixture(t, siswa(1, "Ani", true))
	ctx := context.Background()
	view, _ := views.Create(ctx, models.QueryPatch{})
	_, _ = views.SelectAllMatching(ctx, view.ID)
	b.allErr = errors.New("timeout")

	_, err := svc.Export(ctx, view.ID, export.FormatPDF)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBackendUnavailable.Code, appErrors.FromError(err).Code)

	view, _ = views.Get(ctx, view.ID)
	m := view.Actions.Get(selection.KindExport)
	assert.Equal(t, selection.OutcomeFailure, m.LastOutcome)
	assert.Equal(t, 1, view.Selection.Selected.Len())
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, views, svc := exportFixture(t, siswa(1, "Ani", true))
	view, _ := views.Create(context.Background(), models.QueryPatch{})
	_, err := svc.Export(context.Background(), view.ID, export.Format("docx"))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSiswaDatasetColumnOrder(t *testing.T) {
	data := SiswaDataset([]models.Siswa{siswa(1, "Ani", false)})
	assert.Equal(t, exportHeaders, data.Headers)
	assert.Equal(t, []float64{5, 25, 15, 15, 10, 10, 30, 15, 12, 10}, data.Widths)
	assert.Equal(t, "Non-Aktif", data.Rows[0]["Status"])
}
