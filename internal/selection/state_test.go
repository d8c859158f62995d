package selection

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVisible(s State, ids ...int64) State {
	return Reduce(s, VisibleLoaded{IDs: ids})
}

func TestToggleRowIsSymmetricDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := New(true)
	expected := map[int64]bool{}

	for i := 0; i < 500; i++ {
		id := int64(rng.Intn(20))
		s = Reduce(s, ToggleRow{ID: id})
		expected[id] = !expected[id]
	}

	for id := int64(0); id < 20; id++ {
		assert.Equal(t, expected[id], s.Selected.Has(id), "id %d", id)
	}
}

func TestToggleRowTwiceRestoresState(t *testing.T) {
	s := Reduce(New(true), ToggleRow{ID: 3})
	before := s.Selected.Sorted()

	s = Reduce(Reduce(s, ToggleRow{ID: 9}), ToggleRow{ID: 9})
	assert.Equal(t, before, s.Selected.Sorted())
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := Reduce(New(true), ToggleRow{ID: 1})
	_ = Reduce(s, ToggleRow{ID: 2})
	_ = Reduce(s, Clear{})
	assert.Equal(t, []int64{1}, s.Selected.Sorted())
}

func TestToggleVisibleAddsAllWhenPartiallySelected(t *testing.T) {
	s := withVisible(New(true), 1, 2, 3)
	s = Reduce(s, ToggleRow{ID: 2})
	require.True(t, s.VisiblePartiallySelected())

	s = Reduce(s, ToggleVisible{})

	assert.Equal(t, []int64{1, 2, 3}, s.Selected.Sorted())
	assert.True(t, s.VisibleFullySelected())
	assert.False(t, s.VisiblePartiallySelected())
}

func TestToggleVisibleRemovesOnlyVisibleWhenFullySelected(t *testing.T) {
	s := withVisible(New(true), 1, 2)
	s = Reduce(s, ToggleRow{ID: 40})
	s = Reduce(s, ToggleVisible{})
	require.Equal(t, []int64{1, 2, 40}, s.Selected.Sorted())

	s = Reduce(s, ToggleVisible{})
	assert.Equal(t, []int64{40}, s.Selected.Sorted())
}

func TestToggleVisibleNeverTouchesOtherIDs(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s := New(true)
	for i := 0; i < 200; i++ {
		visible := []int64{int64(rng.Intn(10)), int64(rng.Intn(10)), int64(rng.Intn(10))}
		s = withVisible(s, visible...)
		if rng.Intn(3) == 0 {
			s = Reduce(s, ToggleRow{ID: int64(rng.Intn(30))})
			continue
		}

		outside := map[int64]bool{}
		for id := range s.Selected {
			outside[id] = true
		}
		for _, id := range visible {
			delete(outside, id)
		}

		s = Reduce(s, ToggleVisible{})

		for id := range outside {
			assert.True(t, s.Selected.Has(id), "non-visible id %d dropped", id)
		}
		for id := range s.Selected {
			if !outside[id] {
				assert.Contains(t, visible, id)
			}
		}
	}
}

func TestToggleVisibleOnEmptyPageIsNoop(t *testing.T) {
	s := Reduce(New(true), ToggleRow{ID: 5})
	s = Reduce(s, ToggleVisible{})
	assert.Equal(t, []int64{5}, s.Selected.Sorted())
	assert.False(t, s.VisibleFullySelected())
}

func TestSelectAllMatching(t *testing.T) {
	s := New(true)
	require.True(t, s.NeedsMatching())

	s = Reduce(s, MatchingLoaded{IDs: []int64{4, 5, 6, 6}})
	s = Reduce(s, SelectAllMatching{})

	assert.True(t, s.AllMatchingSelected())
	assert.Equal(t, len(s.Matching), s.Selected.Len())
	assert.Equal(t, []int64{4, 5, 6}, s.Selected.Sorted())

	s = Reduce(s, SelectAllMatching{})
	assert.Equal(t, 0, s.Selected.Len())
}

func TestSelectAllMatchingWithoutCacheKeepsSelection(t *testing.T) {
	s := Reduce(New(true), ToggleRow{ID: 1})
	s = Reduce(s, SelectAllMatching{})
	assert.Equal(t, []int64{1}, s.Selected.Sorted())
}

func TestAllMatchingSelectedUsesSizeOnly(t *testing.T) {
	s := Reduce(New(true), MatchingLoaded{IDs: []int64{1, 2}})
	s = Reduce(Reduce(s, ToggleRow{ID: 8}), ToggleRow{ID: 9})
	assert.True(t, s.AllMatchingSelected())
}

func TestStatusChangeClearsEverything(t *testing.T) {
	s := withVisible(New(true), 1, 2)
	s = Reduce(s, MatchingLoaded{IDs: []int64{1, 2, 3}})
	s = Reduce(s, SelectAllMatching{})
	s = Reduce(s, MatchingFailed{Message: "timeout"})

	s = Reduce(s, StatusChanged{Active: false})

	assert.False(t, s.Active)
	assert.Equal(t, 0, s.Selected.Len())
	assert.False(t, s.MatchingLoaded)
	assert.Empty(t, s.Matching)
	assert.Empty(t, s.Visible)
	assert.Empty(t, s.MatchingErr)
}

func TestSameStatusKeepsSelection(t *testing.T) {
	s := Reduce(New(true), ToggleRow{ID: 1})
	s = Reduce(s, StatusChanged{Active: true})
	assert.Equal(t, []int64{1}, s.Selected.Sorted())
}

func TestPageChangeKeepsSelection(t *testing.T) {
	s := withVisible(New(true), 1, 2)
	s = Reduce(s, ToggleVisible{})
	s = withVisible(s, 3, 4)

	assert.Equal(t, []int64{1, 2}, s.Selected.Sorted())
	assert.False(t, s.VisibleFullySelected())
	assert.False(t, s.VisiblePartiallySelected())
}

func TestMatchingFailedLeavesSelection(t *testing.T) {
	s := Reduce(New(true), ToggleRow{ID: 2})
	s = Reduce(s, MatchingFailed{Message: "Gagal memuat data ID siswa"})
	assert.Equal(t, []int64{2}, s.Selected.Sorted())
	assert.Equal(t, "Gagal memuat data ID siswa", s.MatchingErr)
}

func TestBulkSucceededClearsSelection(t *testing.T) {
	s := Reduce(Reduce(New(true), ToggleRow{ID: 7}), ToggleRow{ID: 12})
	s = Reduce(s, BulkSucceeded{})
	assert.Equal(t, 0, s.Selected.Len())
}

func TestStateJSONRoundTripKeepsSelection(t *testing.T) {
	s := withVisible(New(false), 3, 1)
	s = Reduce(Reduce(s, ToggleRow{ID: 3}), ToggleRow{ID: 1})

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"selected":[1,3]`)

	var decoded State
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.VisibleFullySelected())
}
