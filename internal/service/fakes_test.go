package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/repository"
)

type statusCall struct {
	ids    []int64
	target models.StatusFlag
}

type fakeBackend struct {
	mu          sync.Mutex
	records     map[int64]models.Siswa
	listErr     error
	idsErr      error
	allErr      error
	statusErr   error
	deleteErr   error
	listCalls   []models.ListQuery
	idsCalls    int
	statusCalls []statusCall
	deleteCalls [][]int64
	// hold, when set, runs before a listing or id fetch is served.
	hold func(active bool)
}

func newFakeBackend(records ...models.Siswa) *fakeBackend {
	b := &fakeBackend{records: make(map[int64]models.Siswa)}
	for _, r := range records {
		b.records[r.ID] = r
	}
	return b
}

func (b *fakeBackend) matching(active bool, search string) []models.Siswa {
	out := make([]models.Siswa, 0)
	for _, r := range b.records {
		if r.Status.Active() != active {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.NamaSiswa), strings.ToLower(search)) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *fakeBackend) ListSiswa(ctx context.Context, q models.ListQuery) (*models.SiswaPage, error) {
	if b.hold != nil {
		b.hold(q.Active)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls = append(b.listCalls, q)
	if b.listErr != nil {
		return nil, b.listErr
	}
	rows := b.matching(q.Active, q.Search)
	total := len(rows)
	start := (q.Page - 1) * q.PageSize
	if start > len(rows) {
		start = len(rows)
	}
	end := start + q.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	return &models.SiswaPage{Rows: rows[start:end], Total: total}, nil
}

func (b *fakeBackend) MatchingIDs(ctx context.Context, active bool) ([]int64, error) {
	if b.hold != nil {
		b.hold(active)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idsCalls++
	if b.idsErr != nil {
		return nil, b.idsErr
	}
	ids := make([]int64, 0)
	for _, r := range b.matching(active, "") {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (b *fakeBackend) AllSiswa(ctx context.Context) ([]models.Siswa, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allErr != nil {
		return nil, b.allErr
	}
	out := make([]models.Siswa, 0, len(b.records))
	for _, r := range b.records {
		out = append(out, r)
	}
	return out, nil
}

func (b *fakeBackend) SetStatus(ctx context.Context, ids []int64, target models.StatusFlag) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls = append(b.statusCalls, statusCall{ids: append([]int64(nil), ids...), target: target})
	if b.statusErr != nil {
		return b.statusErr
	}
	for _, id := range ids {
		r := b.records[id]
		r.Status = target
		b.records[id] = r
	}
	return nil
}

func (b *fakeBackend) DeleteSiswa(ctx context.Context, ids []int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteCalls = append(b.deleteCalls, append([]int64(nil), ids...))
	if b.deleteErr != nil {
		return b.deleteErr
	}
	for _, id := range ids {
		delete(b.records, id)
	}
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.BulkActionLog
}

func (a *fakeAudit) Record(ctx context.Context, entry models.BulkActionLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func siswa(id int64, nama string, active bool) models.Siswa {
	return models.Siswa{ID: id, NamaSiswa: nama, NIS: "NIS" + nama, NISN: "NISN" + nama, Status: models.StatusFor(active)}
}

var fixedNow = time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC)

func newTestViewService(b *fakeBackend) *ViewService {
	svc := NewViewService(repository.NewMemoryViewRepository(time.Hour), b, nil, zap.NewNop(), ViewConfig{DefaultPageSize: 2, MaxPageSize: 50})
	svc.now = func() time.Time { return fixedNow }
	return svc
}
