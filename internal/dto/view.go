package dto

import (
	"time"

	"github.com/noah-isme/siswa-gateway/internal/listing"
	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
)

// ToggleRowRequest selects or deselects a single record. Any integer is a
// valid id; only a missing one is rejected.
type ToggleRowRequest struct {
	ID *int64 `json:"id" binding:"required"`
}

// SelectionResponse is the selection of a view with the flags the header
// checkbox and bulk toolbar render from.
type SelectionResponse struct {
	Selected                 []int64 `json:"selected"`
	Count                    int     `json:"count"`
	VisibleFullySelected     bool    `json:"visible_fully_selected"`
	VisiblePartiallySelected bool    `json:"visible_partially_selected"`
	AllMatchingSelected      bool    `json:"all_matching_selected"`
	MatchingCount            int     `json:"matching_count"`
	MatchingLoaded           bool    `json:"matching_loaded"`
	IDsError                 string  `json:"ids_error,omitempty"`
}

// ActionStateResponse describes one bulk action of a view.
type ActionStateResponse struct {
	Phase        selection.Phase   `json:"phase"`
	PendingCount int               `json:"pending_count"`
	LastOutcome  selection.Outcome `json:"last_outcome,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
}

// ViewResponse is the rendered state of a listing view.
type ViewResponse struct {
	ID        string                                 `json:"id"`
	Query     models.ListQuery                       `json:"query"`
	ViewMode  models.ViewMode                        `json:"view_mode"`
	Rows      []models.SiswaRow                      `json:"rows"`
	TotalData int                                    `json:"total_data"`
	Stale     bool                                   `json:"stale"`
	ListError string                                 `json:"list_error,omitempty"`
	Selection SelectionResponse                      `json:"selection"`
	Actions   map[selection.Kind]ActionStateResponse `json:"actions"`
	UpdatedAt time.Time                              `json:"updated_at"`
}

// ActionResponse is returned by the bulk action endpoints.
type ActionResponse struct {
	Action selection.Kind `json:"action"`
	Count  int            `json:"count"`
	View   ViewResponse   `json:"view"`
}

var actionKinds = []selection.Kind{selection.KindArchive, selection.KindDelete, selection.KindExport}

// NewViewResponse renders v and the pagination of the loaded page. Rows are
// numbered against the query that produced them.
func NewViewResponse(v *models.ViewState) (ViewResponse, *models.Pagination) {
	loaded := v.Loaded
	if loaded.PageSize == 0 {
		loaded = v.Query
	}

	rows := make([]models.SiswaRow, len(v.Rows))
	for i, row := range v.Rows {
		rows[i] = models.SiswaRow{
			No:       listing.Number(i, loaded.Page, loaded.PageSize, v.TotalData, loaded.Sort.Order),
			Selected: v.Selection.Selected.Has(row.ID),
			Siswa:    row,
		}
	}

	sel := v.Selection
	actions := make(map[selection.Kind]ActionStateResponse, len(actionKinds))
	for _, kind := range actionKinds {
		m := v.Actions.Get(kind)
		phase := m.Phase
		if phase == "" {
			phase = selection.PhaseIdle
		}
		actions[kind] = ActionStateResponse{
			Phase:        phase,
			PendingCount: len(m.Pending),
			LastOutcome:  m.LastOutcome,
			LastError:    m.LastError,
		}
	}

	resp := ViewResponse{
		ID:        v.ID,
		Query:     v.Query,
		ViewMode:  v.ViewMode,
		Rows:      rows,
		TotalData: v.TotalData,
		Stale:     v.Loaded != v.Query,
		ListError: v.ListError,
		Selection: SelectionResponse{
			Selected:                 sel.Selected.Sorted(),
			Count:                    sel.Selected.Len(),
			VisibleFullySelected:     sel.VisibleFullySelected(),
			VisiblePartiallySelected: sel.VisiblePartiallySelected(),
			AllMatchingSelected:      sel.AllMatchingSelected(),
			MatchingCount:            len(sel.Matching),
			MatchingLoaded:           sel.MatchingLoaded,
			IDsError:                 sel.MatchingErr,
		},
		Actions:   actions,
		UpdatedAt: v.UpdatedAt,
	}
	return resp, models.NewPagination(loaded.Page, loaded.PageSize, v.TotalData)
}

// NewActionResponse renders the view carried by an action result.
func NewActionResponse(kind selection.Kind, count int, v *models.ViewState) ActionResponse {
	view, _ := NewViewResponse(v)
	return ActionResponse{Action: kind, Count: count, View: view}
}
