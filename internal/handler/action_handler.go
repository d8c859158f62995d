package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/siswa-gateway/internal/dto"
	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
	"github.com/noah-isme/siswa-gateway/internal/service"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
	"github.com/noah-isme/siswa-gateway/pkg/export"
	"github.com/noah-isme/siswa-gateway/pkg/response"
)

type bulkService interface {
	Request(ctx context.Context, viewID string, kind selection.Kind) (*service.ActionResult, error)
	Confirm(ctx context.Context, viewID string, kind selection.Kind) (*service.ActionResult, error)
	Cancel(ctx context.Context, viewID string, kind selection.Kind) (*service.ActionResult, error)
}

type exportService interface {
	Export(ctx context.Context, viewID string, format export.Format) (*service.ExportFile, error)
}

// AuditHistory lists the audited bulk actions of a view.
type AuditHistory interface {
	History(ctx context.Context, viewID string, limit int) ([]models.BulkActionLog, error)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type viewGetter interface {
	Get(ctx context.Context, id string) (*models.ViewState, error)
}

// ActionHandler exposes bulk actions and export on the selection of a view.
type ActionHandler struct {
	bulk    bulkService
	exports exportService
	views   viewGetter
	audit   AuditHistory
	logger  *zap.Logger
}

// NewActionHandler constructs the handler. audit may be nil when the audit
// trail is disabled.
func NewActionHandler(bulk bulkService, exports exportService, views viewGetter, audit AuditHistory, logger *zap.Logger) *ActionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionHandler{bulk: bulk, exports: exports, views: views, audit: audit, logger: logger}
}

// Request godoc
// @Summary Ask for confirmation of a bulk action on the selection
// @Description archive archives from the active listing and restores from the archived one.
// @Tags Actions
// @Produce json
// @Param id path string true "View ID"
// @Param action path string true "archive or delete"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /views/{id}/actions/{action} [post]
func (h *ActionHandler) Request(c *gin.Context) {
	h.transition(c, h.bulk.Request)
}

// Confirm godoc
// @Summary Confirm and send a pending bulk action
// @Tags Actions
// @Produce json
// @Param id path string true "View ID"
// @Param action path string true "archive or delete"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /views/{id}/actions/{action}/confirm [post]
func (h *ActionHandler) Confirm(c *gin.Context) {
	h.transition(c, h.bulk.Confirm)
}

// Cancel godoc
// @Summary Cancel a pending bulk action
// @Tags Actions
// @Produce json
// @Param id path string true "View ID"
// @Param action path string true "archive or delete"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/actions/{action}/cancel [post]
func (h *ActionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.bulk.Cancel)
}

func (h *ActionHandler) transition(c *gin.Context, fn func(context.Context, string, selection.Kind) (*service.ActionResult, error)) {
	kind, err := actionParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	viewID := c.Param("id")
	res, err := fn(c.Request.Context(), viewID, kind)
	if err != nil {
		h.logger.Debug("bulk action rejected",
			zap.String("view_id", viewID),
			zap.String("action", string(kind)),
			zap.String("user_id", actorID(c)),
			zap.Error(err))
		if res != nil && res.View != nil {
			response.ErrorWithData(c, err, dto.NewActionResponse(kind, res.Count, res.View))
			return
		}
		response.Error(c, err)
		return
	}
	response.WithNotice(c, http.StatusOK, dto.NewActionResponse(res.Kind, res.Count, res.View), res.Notice)
}

// Export godoc
// @Summary Export the selection as a file
// @Description With every matching record selected the full dataset is exported; otherwise the selected rows of the current page.
// @Tags Actions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "View ID"
// @Param format query string false "xlsx, csv or pdf"
// @Success 200 {file} binary
// @Failure 422 {object} response.Envelope
// @Router /views/{id}/export [post]
func (h *ActionHandler) Export(c *gin.Context) {
	var format export.Format
	if raw := c.Query("format"); raw != "" {
		parsed, err := export.ParseFormat(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
		format = parsed
	}
	file, err := h.exports.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Export-Rows", strconv.Itoa(file.Rows))
	response.Attachment(c, file.FileName, file.ContentType, file.Data)
}

// History godoc
// @Summary List audited bulk actions of a view
// @Tags Actions
// @Produce json
// @Param id path string true "View ID"
// @Param limit query int false "Maximum entries, at most 200"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/actions [get]
func (h *ActionHandler) History(c *gin.Context) {
	if h.audit == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "audit trail is disabled"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive number"))
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	viewID := c.Param("id")
	if _, err := h.views.Get(c.Request.Context(), viewID); err != nil {
		response.Error(c, err)
		return
	}
	logs, err := h.audit.History(c.Request.Context(), viewID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
