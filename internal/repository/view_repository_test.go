package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
)

func TestMemoryViewRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryViewRepository(time.Hour)
	view := &models.ViewState{ID: "v1", Query: models.ListQuery{Page: 2, PageSize: 100, Active: true}, Selection: selection.New(true)}
	view.Apply(selection.ToggleRow{ID: 7})

	require.NoError(t, repo.Save(context.Background(), view))

	loaded, err := repo.Get(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Query.Page)
	assert.True(t, loaded.Selection.Selected.Has(7))

	loaded.Apply(selection.ToggleRow{ID: 8})
	again, err := repo.Get(context.Background(), "v1")
	require.NoError(t, err)
	assert.False(t, again.Selection.Selected.Has(8))
}

func TestMemoryViewRepositoryExpiry(t *testing.T) {
	repo := NewMemoryViewRepository(time.Minute)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	require.NoError(t, repo.Save(context.Background(), &models.ViewState{ID: "v1"}))
	assert.Equal(t, 1, repo.Len())

	clock = clock.Add(2 * time.Minute)
	_, err := repo.Get(context.Background(), "v1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, 0, repo.Len())
}

func TestMemoryViewRepositoryDelete(t *testing.T) {
	repo := NewMemoryViewRepository(0)
	require.NoError(t, repo.Save(context.Background(), &models.ViewState{ID: "v1"}))
	require.NoError(t, repo.Delete(context.Background(), "v1"))
	require.NoError(t, repo.Delete(context.Background(), "missing"))

	_, err := repo.Get(context.Background(), "v1")
	assert.Error(t, err)
}

func TestViewKey(t *testing.T) {
	assert.Equal(t, "siswa:view:abc", ViewKey("abc"))
}
