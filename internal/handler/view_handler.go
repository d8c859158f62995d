package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siswa-gateway/internal/dto"
	"github.com/noah-isme/siswa-gateway/internal/models"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
	"github.com/noah-isme/siswa-gateway/pkg/response"
)

type viewService interface {
	Create(ctx context.Context, patch models.QueryPatch) (*models.ViewState, error)
	Get(ctx context.Context, id string) (*models.ViewState, error)
	Delete(ctx context.Context, id string) error
	UpdateQuery(ctx context.Context, id string, patch models.QueryPatch) (*models.ViewState, error)
	Refresh(ctx context.Context, id string) (*models.ViewState, error)
	RefreshIDs(ctx context.Context, id string) (*models.ViewState, error)
	ToggleRow(ctx context.Context, id string, rowID int64) (*models.ViewState, error)
	ToggleVisible(ctx context.Context, id string) (*models.ViewState, error)
	ClearSelection(ctx context.Context, id string) (*models.ViewState, error)
	SelectAllMatching(ctx context.Context, id string) (*models.ViewState, error)
}

// ViewHandler exposes listing views and their selection.
type ViewHandler struct {
	service viewService
}

// NewViewHandler constructs the handler.
func NewViewHandler(service viewService) *ViewHandler {
	return &ViewHandler{service: service}
}

// Create godoc
// @Summary Open a siswa listing view
// @Tags Views
// @Accept json
// @Produce json
// @Param payload body models.QueryPatch false "Initial query"
// @Success 201 {object} response.Envelope
// @Router /views [post]
func (h *ViewHandler) Create(c *gin.Context) {
	var patch models.QueryPatch
	if err := bindOptionalJSON(c, &patch); err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.Create(c.Request.Context(), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	renderView(c, http.StatusCreated, view)
}

// Get godoc
// @Summary Get view state
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Router /views/{id} [get]
func (h *ViewHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	renderView(c, http.StatusOK, view)
}

// Delete godoc
// @Summary Close a view
// @Tags Views
// @Param id path string true "View ID"
// @Success 204
// @Router /views/{id} [delete]
func (h *ViewHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateQuery godoc
// @Summary Change page, search, sort, status filter or view mode
// @Description sort_key toggles: the active column flips order, another column starts ascending.
// @Tags Views
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param payload body models.QueryPatch true "Query changes"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/query [patch]
func (h *ViewHandler) UpdateQuery(c *gin.Context) {
	var patch models.QueryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query payload"))
		return
	}
	view, err := h.service.UpdateQuery(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	renderView(c, http.StatusOK, view)
}

// Refresh godoc
// @Summary Refetch the current page
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /views/{id}/refresh [post]
func (h *ViewHandler) Refresh(c *gin.Context) {
	h.withView(c, h.service.Refresh)
}

// RefreshIDs godoc
// @Summary Refetch the identifiers of every matching record
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /views/{id}/ids/refresh [post]
func (h *ViewHandler) RefreshIDs(c *gin.Context) {
	h.withView(c, h.service.RefreshIDs)
}

func (h *ViewHandler) withView(c *gin.Context, fn func(context.Context, string) (*models.ViewState, error)) {
	view, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		// A failed fetch still returns the view with the error recorded on it.
		if view != nil {
			resp, _ := dto.NewViewResponse(view)
			response.ErrorWithData(c, err, resp)
			return
		}
		response.Error(c, err)
		return
	}
	renderView(c, http.StatusOK, view)
}

// renderView answers with the view and its pagination. A failed page load is
// surfaced as an error notice next to the last known rows.
func renderView(c *gin.Context, status int, view *models.ViewState) {
	resp, pagination := dto.NewViewResponse(view)
	var notice *models.Notice
	if view.ListError != "" {
		notice = models.ErrorNotice(view.ListError)
	}
	response.Page(c, status, resp, pagination, notice)
}

// bindOptionalJSON binds the body when one was sent.
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return appErrors.Clone(appErrors.ErrValidation, "invalid query payload")
	}
	return nil
}
