package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siswa-gateway/internal/dto"
	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
	"github.com/noah-isme/siswa-gateway/internal/service"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
	"github.com/noah-isme/siswa-gateway/pkg/export"
)

type viewServiceMock struct {
	view      *models.ViewState
	err       error
	lastPatch models.QueryPatch
	toggled   int64
	// keepView returns view together with err, as failed fetches do.
	keepView bool
}

func (m *viewServiceMock) result() (*models.ViewState, error) {
	if m.err != nil {
		if m.keepView {
			return m.view, m.err
		}
		return nil, m.err
	}
	return m.view, nil
}

func (m *viewServiceMock) Create(ctx context.Context, patch models.QueryPatch) (*models.ViewState, error) {
	m.lastPatch = patch
	return m.result()
}

func (m *viewServiceMock) Get(ctx context.Context, id string) (*models.ViewState, error) {
	return m.result()
}

func (m *viewServiceMock) Delete(ctx context.Context, id string) error {
	return m.err
}

func (m *viewServiceMock) UpdateQuery(ctx context.Context, id string, patch models.QueryPatch) (*models.ViewState, error) {
	m.lastPatch = patch
	return m.result()
}

func (m *viewServiceMock) Refresh(ctx context.Context, id string) (*models.ViewState, error) {
	return m.result()
}

func (m *viewServiceMock) RefreshIDs(ctx context.Context, id string) (*models.ViewState, error) {
	return m.result()
}

func (m *viewServiceMock) ToggleRow(ctx context.Context, id string, rowID int64) (*models.ViewState, error) {
	m.toggled = rowID
	return m.result()
}

func (m *viewServiceMock) ToggleVisible(ctx context.Context, id string) (*models.ViewState, error) {
	return m.result()
}

func (m *viewServiceMock) ClearSelection(ctx context.Context, id string) (*models.ViewState, error) {
	return m.result()
}

func (m *viewServiceMock) SelectAllMatching(ctx context.Context, id string) (*models.ViewState, error) {
	return m.result()
}

type bulkServiceMock struct {
	res  *service.ActionResult
	err  error
	kind selection.Kind
}

func (m *bulkServiceMock) Request(ctx context.Context, viewID string, kind selection.Kind) (*service.ActionResult, error) {
	m.kind = kind
	return m.res, m.err
}

func (m *bulkServiceMock) Confirm(ctx context.Context, viewID string, kind selection.Kind) (*service.ActionResult, error) {
	m.kind = kind
	return m.res, m.err
}

func (m *bulkServiceMock) Cancel(ctx context.Context, viewID string, kind selection.Kind) (*service.ActionResult, error) {
	m.kind = kind
	return m.res, m.err
}

type exportServiceMock struct {
	file   *service.ExportFile
	err    error
	format export.Format
}

func (m *exportServiceMock) Export(ctx context.Context, viewID string, format export.Format) (*service.ExportFile, error) {
	m.format = format
	return m.file, m.err
}

type siswaServiceMock struct {
	detail  *models.SiswaDetail
	err     error
	updated models.UpdateSiswaRequest
	options []models.ReferenceOption
	hit     bool
	refresh bool
}

func (m *siswaServiceMock) Detail(ctx context.Context, id int64) (*models.SiswaDetail, error) {
	return m.detail, m.err
}

func (m *siswaServiceMock) Update(ctx context.Context, id int64, req models.UpdateSiswaRequest) error {
	m.updated = req
	return m.err
}

func (m *siswaServiceMock) References(ctx context.Context, kind models.ReferenceKind, refresh bool) ([]models.ReferenceOption, bool, error) {
	m.refresh = refresh
	return m.options, m.hit, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func sampleView() *models.ViewState {
	q := models.ListQuery{Page: 1, PageSize: 10, Active: true, Sort: models.DefaultSort()}
	v := &models.ViewState{
		ID:        "view-1",
		Query:     q,
		Loaded:    q,
		ViewMode:  models.ViewModeList,
		Rows:      []models.Siswa{{ID: 4, NamaSiswa: "Dian"}, {ID: 9, NamaSiswa: "Iwan"}},
		TotalData: 2,
		Selection: selection.New(true),
	}
	v.Apply(selection.VisibleLoaded{IDs: []int64{4, 9}})
	v.Apply(selection.MatchingLoaded{IDs: []int64{4, 9}})
	return v
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Notice     *models.Notice         `json:"notice"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestViewHandlerFetchFailureCarriesView(t *testing.T) {
	view := sampleView()
	view.Selection.MatchingErr = appErrors.ErrIDsUnavailable.Message
	svc := &viewServiceMock{view: view, err: appErrors.Clone(appErrors.ErrIDsUnavailable, ""), keepView: true}
	h := NewViewHandler(svc)

	c, w := newGinContext(http.MethodPost, "/views/view-1/selection/select-all", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.SelectAllMatching(c)

	require.Equal(t, http.StatusBadGateway, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "IDS_UNAVAILABLE", env.Error.Code)
	var resp dto.ViewResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "view-1", resp.ID)
	assert.Equal(t, "Gagal memuat data ID siswa", resp.Selection.IDsError)

	view = sampleView()
	view.ListError = appErrors.ErrListUnavailable.Message
	svc.view = view
	svc.err = appErrors.Clone(appErrors.ErrListUnavailable, "")
	c, w = newGinContext(http.MethodPost, "/views/view-1/refresh", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.Refresh(c)

	require.Equal(t, http.StatusBadGateway, w.Code)
	env = decode(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Gagal memuat data siswa", resp.ListError)
}

func TestViewHandlerCreate(t *testing.T) {
	svc := &viewServiceMock{view: sampleView()}
	h := NewViewHandler(svc)

	c, w := newGinContext(http.MethodPost, "/views", []byte(`{"status":false,"page_size":25}`))
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.lastPatch.Active)
	assert.False(t, *svc.lastPatch.Active)
	assert.Equal(t, 25, *svc.lastPatch.PageSize)

	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalPages)
	assert.Contains(t, string(env.Data), `"id":"view-1"`)
	assert.Contains(t, string(env.Data), `"no":1`)
	assert.Nil(t, env.Notice)
}

func TestViewHandlerCreateWithoutBody(t *testing.T) {
	svc := &viewServiceMock{view: sampleView()}
	h := NewViewHandler(svc)

	c, w := newGinContext(http.MethodPost, "/views", nil)
	h.Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestViewHandlerListErrorBecomesNotice(t *testing.T) {
	view := sampleView()
	view.ListError = "Gagal memuat data siswa"
	h := NewViewHandler(&viewServiceMock{view: view})

	c, w := newGinContext(http.MethodPatch, "/views/view-1/query", []byte(`{"search":"ani"}`))
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.UpdateQuery(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Notice)
	assert.Equal(t, models.NoticeError, env.Notice.Type)
}

func TestViewHandlerRefreshFailure(t *testing.T) {
	h := NewViewHandler(&viewServiceMock{err: appErrors.Clone(appErrors.ErrIDsUnavailable, "")})
	c, w := newGinContext(http.MethodPost, "/views/view-1/ids/refresh", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.RefreshIDs(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "IDS_UNAVAILABLE", decode(t, w).Error.Code)
}

func TestViewHandlerToggleRow(t *testing.T) {
	svc := &viewServiceMock{view: sampleView()}
	h := NewViewHandler(svc)

	c, w := newGinContext(http.MethodPost, "/views/view-1/selection/toggle", []byte(`{"id":9}`))
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.ToggleRow(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(9), svc.toggled)

	c, w = newGinContext(http.MethodPost, "/views/view-1/selection/toggle", []byte(`{"id":0}`))
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.ToggleRow(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), svc.toggled)

	c, w = newGinContext(http.MethodPost, "/views/view-1/selection/toggle", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.ToggleRow(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewHandlerNotFound(t *testing.T) {
	h := NewViewHandler(&viewServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "view not found")})
	c, w := newGinContext(http.MethodGet, "/views/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActionHandlerRequestReturnsPrompt(t *testing.T) {
	bulk := &bulkServiceMock{res: &service.ActionResult{
		View:   sampleView(),
		Kind:   selection.KindArchive,
		Count:  2,
		Notice: models.InfoNotice("Apakah Anda yakin ingin mengarsipkan 2 data siswa?"),
	}}
	h := NewActionHandler(bulk, &exportServiceMock{}, &viewServiceMock{}, nil, nil)

	c, w := newGinContext(http.MethodPost, "/views/view-1/actions/archive", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}, {Key: "action", Value: "archive"}}
	h.Request(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, selection.KindArchive, bulk.kind)
	env := decode(t, w)
	assert.Equal(t, "Apakah Anda yakin ingin mengarsipkan 2 data siswa?", env.Notice.Message)
	assert.Contains(t, string(env.Data), `"count":2`)
}

func TestActionHandlerUnknownAction(t *testing.T) {
	h := NewActionHandler(&bulkServiceMock{}, &exportServiceMock{}, &viewServiceMock{}, nil, nil)
	c, w := newGinContext(http.MethodPost, "/views/view-1/actions/purge", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}, {Key: "action", Value: "purge"}}
	h.Request(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActionHandlerFailureKeepsView(t *testing.T) {
	bulk := &bulkServiceMock{
		res: &service.ActionResult{View: sampleView(), Kind: selection.KindDelete, Count: 2},
		err: appErrors.Clone(appErrors.ErrBulkActionFailed, "Gagal menghapus siswa"),
	}
	h := NewActionHandler(bulk, &exportServiceMock{}, &viewServiceMock{}, nil, nil)

	c, w := newGinContext(http.MethodPost, "/views/view-1/actions/delete/confirm", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}, {Key: "action", Value: "delete"}}
	h.Confirm(c)

	require.Equal(t, http.StatusBadGateway, w.Code)
	env := decode(t, w)
	assert.Equal(t, "Gagal menghapus siswa", env.Notice.Message)
	assert.Contains(t, string(env.Data), `"view-1"`)
}

func TestActionHandlerExport(t *testing.T) {
	exports := &exportServiceMock{file: &service.ExportFile{
		FileName:    "data_siswa_2025-07-14.csv",
		ContentType: export.FormatCSV.ContentType(),
		Format:      export.FormatCSV,
		Rows:        2,
		Data:        []byte("No,Nama Siswa\n"),
	}}
	h := NewActionHandler(&bulkServiceMock{}, exports, &viewServiceMock{}, nil, nil)

	c, w := newGinContext(http.MethodPost, "/views/view-1/export?format=csv", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.FormatCSV, exports.format)
	assert.Equal(t, `attachment; filename="data_siswa_2025-07-14.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", w.Header().Get("X-Export-Rows"))
	assert.Equal(t, "No,Nama Siswa\n", w.Body.String())
}

func TestActionHandlerExportEmpty(t *testing.T) {
	exports := &exportServiceMock{err: appErrors.Clone(appErrors.ErrEmptyExport, "")}
	h := NewActionHandler(&bulkServiceMock{}, exports, &viewServiceMock{}, nil, nil)

	c, w := newGinContext(http.MethodPost, "/views/view-1/export", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.Export(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, export.Format(""), exports.format)

	c, w = newGinContext(http.MethodPost, "/views/view-1/export?format=docx", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type auditHistoryMock struct {
	limit int
	logs  []models.BulkActionLog
}

func (m *auditHistoryMock) History(ctx context.Context, viewID string, limit int) ([]models.BulkActionLog, error) {
	m.limit = limit
	return m.logs, nil
}

func TestActionHandlerHistoryLimit(t *testing.T) {
	audit := &auditHistoryMock{logs: []models.BulkActionLog{{ViewID: "view-1", Action: "archive"}}}
	h := NewActionHandler(&bulkServiceMock{}, &exportServiceMock{}, &viewServiceMock{view: sampleView()}, audit, nil)

	cases := []struct {
		query string
		code  int
		limit int
	}{
		{"", http.StatusOK, 50},
		{"?limit=10", http.StatusOK, 10},
		{"?limit=5000", http.StatusOK, 200},
		{"?limit=abc", http.StatusBadRequest, 0},
		{"?limit=0", http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		audit.limit = 0
		c, w := newGinContext(http.MethodGet, "/views/view-1/actions"+tc.query, nil)
		c.Params = gin.Params{{Key: "id", Value: "view-1"}}
		h.History(c)
		assert.Equal(t, tc.code, w.Code, tc.query)
		assert.Equal(t, tc.limit, audit.limit, tc.query)
	}
}

func TestActionHandlerHistoryDisabled(t *testing.T) {
	h := NewActionHandler(&bulkServiceMock{}, &exportServiceMock{}, &viewServiceMock{view: sampleView()}, nil, nil)
	c, w := newGinContext(http.MethodGet, "/views/view-1/actions", nil)
	c.Params = gin.Params{{Key: "id", Value: "view-1"}}
	h.History(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSiswaHandlerUpdate(t *testing.T) {
	svc := &siswaServiceMock{}
	h := NewSiswaHandler(svc)

	body := []byte(`{"nama_siswa":"Ani","nis":"1001","nisn":"0012","id_kelas":1,"status":"1","id_ekskul":[2]}`)
	c, w := newGinContext(http.MethodPut, "/siswa/3", body)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ani", svc.updated.NamaSiswa)
	assert.Equal(t, []int64{2}, svc.updated.IDEkskul)
	assert.Equal(t, models.UpdateSiswaSuccessMessage, decode(t, w).Notice.Message)
}

func TestSiswaHandlerInvalidID(t *testing.T) {
	h := NewSiswaHandler(&siswaServiceMock{})
	c, w := newGinContext(http.MethodGet, "/siswa/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.Detail(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSiswaHandlerReferences(t *testing.T) {
	h := NewSiswaHandler(&siswaServiceMock{options: []models.ReferenceOption{{Value: 1, Label: "X"}}, hit: true})
	c, w := newGinContext(http.MethodGet, "/references/kelas", nil)
	c.Params = gin.Params{{Key: "kind", Value: "kelas"}}
	h.References(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.JSONEq(t, `[{"value":1,"label":"X"}]`, string(env.Data))
}

func TestSiswaHandlerReferencesRefresh(t *testing.T) {
	svc := &siswaServiceMock{options: []models.ReferenceOption{}}
	h := NewSiswaHandler(svc)
	c, w := newGinContext(http.MethodGet, "/references/rombel?refresh=true", nil)
	c.Params = gin.Params{{Key: "kind", Value: "rombel"}}
	h.References(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.refresh)

	c, w = newGinContext(http.MethodGet, "/references/rombel?refresh=maybe", nil)
	c.Params = gin.Params{{Key: "kind", Value: "rombel"}}
	h.References(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"redis": func(context.Context) error { return nil },
	})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]ReadinessCheck{
		"backend": func(context.Context) error { return appErrors.ErrBackendUnavailable },
	})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
