// Package backend is the HTTP client for the siswa REST backend. Every call
// is a single attempt: failures are returned to the caller, never retried.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/pkg/middleware/requestid"
)

const (
	// DefaultTimeout bounds every backend round trip.
	DefaultTimeout = 15 * time.Second

	// MaxResponseSize caps decoded bodies; the whole-dataset export is the
	// largest payload.
	MaxResponseSize = 64 * 1024 * 1024

	userAgent = "siswa-gateway/1.0"
)

// Observer receives backend call timings. MetricsService implements it.
type Observer interface {
	ObserveBackendCall(endpoint string, status int, duration time.Duration)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	IDsTimeout time.Duration
	Logger     *zap.Logger
	Observer   Observer
	HTTPClient *http.Client
}

// Client talks to the siswa backend.
type Client struct {
	baseURL    string
	http       *http.Client
	idsTimeout time.Duration
	logger     *zap.Logger
	observer   Observer
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.IDsTimeout <= 0 {
		cfg.IDsTimeout = cfg.Timeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		http:       httpClient,
		idsTimeout: cfg.IDsTimeout,
		logger:     cfg.Logger,
		observer:   cfg.Observer,
	}
}

type idsPayload struct {
	IDs []int64 `json:"ids"`
}

// ListSiswa fetches one filtered, sorted page.
func (c *Client) ListSiswa(ctx context.Context, q models.ListQuery) (*models.SiswaPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.PageSize))
	params.Set("search", q.Search)
	params.Set("sort", string(q.Sort.Key))
	params.Set("order", string(q.Sort.Order))
	params.Set("status", strconv.Itoa(int(models.StatusFor(q.Active))))

	var page models.SiswaPage
	if err := c.do(ctx, "list", http.MethodGet, "/siswa?"+params.Encode(), nil, &page); err != nil {
		return nil, err
	}
	if page.Rows == nil {
		page.Rows = []models.Siswa{}
	}
	return &page, nil
}

// MatchingIDs fetches every id matching the status filter.
func (c *Client) MatchingIDs(ctx context.Context, active bool) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.idsTimeout)
	defer cancel()

	var body struct {
		Data []int64 `json:"data"`
	}
	path := fmt.Sprintf("/idsiswa/%d", models.StatusFor(active))
	if err := c.do(ctx, "ids", http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		body.Data = []int64{}
	}
	return body.Data, nil
}

// AllSiswa fetches the complete, unfiltered record set.
func (c *Client) AllSiswa(ctx context.Context) ([]models.Siswa, error) {
	var body struct {
		Rows []models.Siswa `json:"data_siswa"`
	}
	if err := c.do(ctx, "all", http.MethodGet, "/siswa/all", nil, &body); err != nil {
		return nil, err
	}
	return body.Rows, nil
}

// SetStatus moves ids to target in one batch.
func (c *Client) SetStatus(ctx context.Context, ids []int64, target models.StatusFlag) error {
	path := fmt.Sprintf("/siswa/status/%d", target)
	return c.do(ctx, "set_status", http.MethodPut, path, idsPayload{IDs: ids}, nil)
}

// DeleteSiswa permanently deletes ids in one batch.
func (c *Client) DeleteSiswa(ctx context.Context, ids []int64) error {
	return c.do(ctx, "delete", http.MethodDelete, "/siswa", idsPayload{IDs: ids}, nil)
}

// Relations fetches the class/major/rombel of one student.
func (c *Client) Relations(ctx context.Context, id int64) (*models.Relations, error) {
	var rel models.Relations
	if err := c.do(ctx, "relations", http.MethodGet, fmt.Sprintf("/siswa/%d/relations", id), nil, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// SiswaEkskul fetches the extracurricular memberships of one student.
func (c *Client) SiswaEkskul(ctx context.Context, id int64) ([]models.SiswaEkskul, error) {
	var out []models.SiswaEkskul
	if err := c.do(ctx, "siswa_ekskul", http.MethodGet, fmt.Sprintf("/siswa/%d/ekskul", id), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.SiswaEkskul{}
	}
	return out, nil
}

// UpdateSiswa forwards an inline edit. The backend signals success only
// through its message text.
func (c *Client) UpdateSiswa(ctx context.Context, id int64, req models.UpdateSiswaRequest) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := c.do(ctx, "update", http.MethodPut, fmt.Sprintf("/siswa/%d", id), req, &body); err != nil {
		return err
	}
	if body.Message != models.UpdateSiswaSuccessMessage {
		msg := body.Error
		if msg == "" {
			msg = "Gagal memperbarui data"
		}
		return &HTTPError{StatusCode: http.StatusOK, URL: c.baseURL + fmt.Sprintf("/siswa/%d", id), Message: msg}
	}
	return nil
}

// References fetches a dropdown list and maps it onto options.
func (c *Client) References(ctx context.Context, kind models.ReferenceKind) ([]models.ReferenceOption, error) {
	idField, labelField, ok := kind.Fields()
	if !ok {
		return nil, fmt.Errorf("unknown reference kind %q", kind)
	}
	var raw []map[string]json.RawMessage
	if err := c.do(ctx, "reference_"+string(kind), http.MethodGet, "/"+string(kind), nil, &raw); err != nil {
		return nil, err
	}
	options := make([]models.ReferenceOption, 0, len(raw))
	for _, item := range raw {
		var opt models.ReferenceOption
		if err := json.Unmarshal(item[idField], &opt.Value); err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", kind, idField, err)
		}
		_ = json.Unmarshal(item[labelField], &opt.Label)
		if warna, ok := item["warna"]; ok {
			_ = json.Unmarshal(warna, &opt.Warna)
		}
		options = append(options, opt)
	}
	return options, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, payload, dest interface{}) error {
	target := c.baseURL + path

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.HeaderKey, reqID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, 0, start)
		c.logger.Warn("backend call failed", zap.String("endpoint", endpoint), zap.String("method", method), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.observe(endpoint, resp.StatusCode, start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if len(raw) > MaxResponseSize {
		return fmt.Errorf("%s response exceeds %d bytes", endpoint, MaxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("backend returned error",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Int("status", resp.StatusCode))
		return newHTTPError(resp.StatusCode, target, raw)
	}

	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveBackendCall(endpoint, status, time.Since(start))
	}
}
