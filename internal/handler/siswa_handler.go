package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siswa-gateway/internal/middleware"
	"github.com/noah-isme/siswa-gateway/internal/models"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
	"github.com/noah-isme/siswa-gateway/pkg/response"
)

type siswaService interface {
	Detail(ctx context.Context, id int64) (*models.SiswaDetail, error)
	Update(ctx context.Context, id int64, req models.UpdateSiswaRequest) error
	References(ctx context.Context, kind models.ReferenceKind, refresh bool) ([]models.ReferenceOption, bool, error)
}

// SiswaHandler serves the detail and edit dialogs and the dropdown lists.
type SiswaHandler struct {
	service siswaService
}

// NewSiswaHandler constructs the handler.
func NewSiswaHandler(service siswaService) *SiswaHandler {
	return &SiswaHandler{service: service}
}

// Detail godoc
// @Summary Get class, major, group and extracurricular data of a record
// @Tags Siswa
// @Produce json
// @Param id path int true "Siswa ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /siswa/{id} [get]
func (h *SiswaHandler) Detail(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.Detail(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update a record from the edit dialog
// @Tags Siswa
// @Accept json
// @Produce json
// @Param id path int true "Siswa ID"
// @Param payload body models.UpdateSiswaRequest true "Siswa payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /siswa/{id} [put]
func (h *SiswaHandler) Update(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.UpdateSiswaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid siswa payload"))
		return
	}
	if err := h.service.Update(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.WithNotice(c, http.StatusOK, gin.H{"id_siswa": id}, models.SuccessNotice(models.UpdateSiswaSuccessMessage))
}

// References godoc
// @Summary List dropdown options
// @Tags References
// @Produce json
// @Param kind path string true "kelas, jurusan, rombel or ekskul"
// @Param refresh query bool false "Drop cached lists and refetch"
// @Success 200 {object} response.Envelope
// @Router /references/{kind} [get]
func (h *SiswaHandler) References(c *gin.Context) {
	kind := models.ReferenceKind(strings.ToLower(c.Param("kind")))
	refresh, err := strconv.ParseBool(c.DefaultQuery("refresh", "false"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "refresh must be a boolean"))
		return
	}
	options, hit, err := h.service.References(c.Request.Context(), kind, refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, options, nil, middleware.ExtractMeta(c))
}
