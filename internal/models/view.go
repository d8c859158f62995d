package models

import (
	"time"

	"github.com/noah-isme/siswa-gateway/internal/selection"
)

// ViewState is everything the gateway remembers about one open listing.
type ViewState struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"owner_id,omitempty"`
	Query     ListQuery         `json:"query"`
	ViewMode  ViewMode          `json:"view_mode"`
	Selection selection.State   `json:"selection"`
	Actions   selection.Actions `json:"actions"`
	// Rows is the visible page, already sorted. Loaded is the query that
	// produced it, which can lag Query while a fetch is outstanding.
	Rows      []Siswa   `json:"rows"`
	Loaded    ListQuery `json:"loaded_query"`
	TotalData int       `json:"total_data"`
	ListError string    `json:"list_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Apply runs a selection transition on the view.
func (v *ViewState) Apply(a selection.Action) {
	v.Selection = selection.Reduce(v.Selection, a)
}

// SelectedRows returns the locally held rows whose id is selected, in
// display order.
func (v *ViewState) SelectedRows() []Siswa {
	out := make([]Siswa, 0, v.Selection.Selected.Len())
	for _, row := range v.Rows {
		if v.Selection.Selected.Has(row.ID) {
			out = append(out, row)
		}
	}
	return out
}

// QueryPatch is a partial listing query update. Nil fields are left as is.
type QueryPatch struct {
	Page     *int       `json:"page" validate:"omitempty,gte=1"`
	PageSize *int       `json:"page_size" validate:"omitempty,gte=1"`
	Search   *string    `json:"search" validate:"omitempty,max=100"`
	SortKey  *SortKey   `json:"sort_key"`
	Order    *SortOrder `json:"order" validate:"omitempty,oneof=asc desc"`
	Active   *bool      `json:"status"`
	ViewMode *ViewMode  `json:"view_mode" validate:"omitempty,oneof=list kanban"`
}
