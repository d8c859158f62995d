package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/siswa-gateway/internal/models"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
)

const viewKeyPrefix = "siswa:view:"

// ViewRepository persists listing views.
type ViewRepository interface {
	Get(ctx context.Context, id string) (*models.ViewState, error)
	Save(ctx context.Context, view *models.ViewState) error
	Delete(ctx context.Context, id string) error
}

// ViewKey returns the Redis key of a view.
func ViewKey(id string) string {
	return viewKeyPrefix + id
}

// RedisViewRepository keeps listing views in Redis so any gateway replica
// can serve the next request of a view.
type RedisViewRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisViewRepository constructs the repository. Every Save refreshes
// the TTL.
func NewRedisViewRepository(client *redis.Client, ttl time.Duration) *RedisViewRepository {
	return &RedisViewRepository{client: client, ttl: ttl}
}

// Get loads a view.
func (r *RedisViewRepository) Get(ctx context.Context, id string) (*models.ViewState, error) {
	raw, err := r.client.Get(ctx, ViewKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "view not found")
		}
		return nil, fmt.Errorf("redis get view %s: %w", id, err)
	}
	var view models.ViewState
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("unmarshal view %s: %w", id, err)
	}
	return &view, nil
}

// Save stores a view.
func (r *RedisViewRepository) Save(ctx context.Context, view *models.ViewState) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal view %s: %w", view.ID, err)
	}
	if err := r.client.Set(ctx, ViewKey(view.ID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set view %s: %w", view.ID, err)
	}
	return nil
}

// Delete removes a view. Deleting an unknown view is not an error.
func (r *RedisViewRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, ViewKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete view %s: %w", id, err)
	}
	return nil
}

// MemoryViewRepository keeps views in process memory. It suits a single
// gateway instance and tests.
type MemoryViewRepository struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	views map[string]memoryView
}

type memoryView struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemoryViewRepository constructs the repository.
func NewMemoryViewRepository(ttl time.Duration) *MemoryViewRepository {
	return &MemoryViewRepository{ttl: ttl, now: time.Now, views: make(map[string]memoryView)}
}

// Get loads a view. Views are stored serialized so callers never share
// maps with the store.
func (r *MemoryViewRepository) Get(_ context.Context, id string) (*models.ViewState, error) {
	r.mu.Lock()
	entry, ok := r.views[id]
	if ok && r.expired(entry) {
		delete(r.views, id)
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "view not found")
	}

	var view models.ViewState
	if err := json.Unmarshal(entry.payload, &view); err != nil {
		return nil, fmt.Errorf("unmarshal view %s: %w", id, err)
	}
	return &view, nil
}

// Save stores a view.
func (r *MemoryViewRepository) Save(_ context.Context, view *models.ViewState) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal view %s: %w", view.ID, err)
	}
	entry := memoryView{payload: payload}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[view.ID] = entry
	r.sweep()
	return nil
}

// Delete removes a view.
func (r *MemoryViewRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, id)
	return nil
}

// Len returns the number of live views.
func (r *MemoryViewRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweep()
	return len(r.views)
}

func (r *MemoryViewRepository) expired(entry memoryView) bool {
	return !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt)
}

// sweep drops expired views; callers hold mu.
func (r *MemoryViewRepository) sweep() {
	for id, entry := range r.views {
		if r.expired(entry) {
			delete(r.views, id)
		}
	}
}
