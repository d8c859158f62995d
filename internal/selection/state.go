package selection

// State is the selection bookkeeping of one listing view.
//
// Selected may contain ids outside Visible (picked on an earlier page) and
// ids outside Matching (stale picks); both are allowed until the status
// filter changes.
type State struct {
	// Active is the status filter: true lists active records, false archived.
	Active   bool    `json:"active"`
	Selected Set     `json:"selected"`
	Visible  []int64 `json:"visible"`
	// Matching caches every id matching the status filter. It is only
	// meaningful while MatchingLoaded is true.
	Matching       []int64 `json:"matching"`
	MatchingLoaded bool    `json:"matching_loaded"`
	MatchingErr    string  `json:"matching_error,omitempty"`
}

// New returns an empty state for the given status filter.
func New(active bool) State {
	return State{Active: active, Selected: Set{}}
}

// Action is a transition input for Reduce.
type Action interface {
	isAction()
}

// ToggleRow flips membership of one id.
type ToggleRow struct{ ID int64 }

// ToggleVisible selects every visible id, or deselects them all when they are
// already selected.
type ToggleVisible struct{}

// SelectAllMatching selects the whole matching cache, or clears the selection
// when the cache is already fully selected. The caller must load the cache
// first when it is empty.
type SelectAllMatching struct{}

// Clear empties the selection.
type Clear struct{}

// StatusChanged switches the status filter. The selection, the visible set and
// the matching cache are all dropped.
type StatusChanged struct{ Active bool }

// VisibleLoaded replaces the visible set after a page fetch.
type VisibleLoaded struct{ IDs []int64 }

// MatchingLoaded fills the matching cache.
type MatchingLoaded struct{ IDs []int64 }

// MatchingFailed records a cache fetch failure without touching the selection.
type MatchingFailed struct{ Message string }

// BulkSucceeded is applied after an archive, unarchive or delete succeeds.
type BulkSucceeded struct{}

func (ToggleRow) isAction()         {}
func (ToggleVisible) isAction()     {}
func (SelectAllMatching) isAction() {}
func (Clear) isAction()             {}
func (StatusChanged) isAction()     {}
func (VisibleLoaded) isAction()     {}
func (MatchingLoaded) isAction()    {}
func (MatchingFailed) isAction()    {}
func (BulkSucceeded) isAction()     {}

// Reduce applies a to s and returns the resulting state. s is not modified.
func Reduce(s State, a Action) State {
	next := s.clone()

	switch act := a.(type) {
	case ToggleRow:
		if next.Selected.Has(act.ID) {
			delete(next.Selected, act.ID)
		} else {
			next.Selected[act.ID] = struct{}{}
		}

	case ToggleVisible:
		if len(next.Visible) == 0 {
			return next
		}
		deselect := s.VisibleFullySelected()
		for _, id := range next.Visible {
			if deselect {
				delete(next.Selected, id)
			} else {
				next.Selected[id] = struct{}{}
			}
		}

	case SelectAllMatching:
		if s.AllMatchingSelected() {
			next.Selected = Set{}
			return next
		}
		if !next.MatchingLoaded {
			return next
		}
		next.Selected = NewSet(next.Matching...)

	case Clear, BulkSucceeded:
		next.Selected = Set{}

	case StatusChanged:
		if act.Active == s.Active {
			return next
		}
		next = New(act.Active)

	case VisibleLoaded:
		next.Visible = append([]int64(nil), act.IDs...)

	case MatchingLoaded:
		next.Matching = dedupe(act.IDs)
		next.MatchingLoaded = true
		next.MatchingErr = ""

	case MatchingFailed:
		next.MatchingErr = act.Message
	}

	return next
}

// VisibleFullySelected reports whether every visible id is selected. An empty
// page is never fully selected.
func (s State) VisibleFullySelected() bool {
	if len(s.Visible) == 0 {
		return false
	}
	for _, id := range s.Visible {
		if !s.Selected.Has(id) {
			return false
		}
	}
	return true
}

// VisiblePartiallySelected reports whether some, but not all, visible ids are
// selected. It drives the indeterminate header checkbox.
func (s State) VisiblePartiallySelected() bool {
	for _, id := range s.Visible {
		if s.Selected.Has(id) {
			return !s.VisibleFullySelected()
		}
	}
	return false
}

// AllMatchingSelected compares sizes only: the selection counts as "all" when
// it has as many members as a non-empty matching cache.
func (s State) AllMatchingSelected() bool {
	return s.MatchingLoaded && len(s.Matching) > 0 && s.Selected.Len() == len(s.Matching)
}

// NeedsMatching reports whether SelectAllMatching must be preceded by a cache
// fetch.
func (s State) NeedsMatching() bool {
	return !s.AllMatchingSelected() && (!s.MatchingLoaded || len(s.Matching) == 0)
}

func (s State) clone() State {
	out := s
	out.Selected = s.Selected.Clone()
	if s.Visible != nil {
		out.Visible = append([]int64(nil), s.Visible...)
	}
	if s.Matching != nil {
		out.Matching = append([]int64(nil), s.Matching...)
	}
	return out
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
