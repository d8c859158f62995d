package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siswa-gateway/internal/dto"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
	"github.com/noah-isme/siswa-gateway/pkg/response"
)

// ToggleRow godoc
// @Summary Select or deselect one record
// @Tags Selection
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param payload body dto.ToggleRowRequest true "Record"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/selection/toggle [post]
func (h *ViewHandler) ToggleRow(c *gin.Context) {
	var req dto.ToggleRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id is required"))
		return
	}
	view, err := h.service.ToggleRow(c.Request.Context(), c.Param("id"), *req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	renderView(c, http.StatusOK, view)
}

// ToggleVisible godoc
// @Summary Header checkbox: select or deselect the visible page
// @Tags Selection
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/selection/toggle-visible [post]
func (h *ViewHandler) ToggleVisible(c *gin.Context) {
	h.withView(c, h.service.ToggleVisible)
}

// SelectAllMatching godoc
// @Summary Select every record matching the status filter, or clear when all are selected
// @Tags Selection
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /views/{id}/selection/select-all [post]
func (h *ViewHandler) SelectAllMatching(c *gin.Context) {
	h.withView(c, h.service.SelectAllMatching)
}

// ClearSelection godoc
// @Summary Clear the selection
// @Tags Selection
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/selection [delete]
func (h *ViewHandler) ClearSelection(c *gin.Context) {
	h.withView(c, h.service.ClearSelection)
}
