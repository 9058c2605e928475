package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/middleware"
	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/internal/service"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
	"github.com/campushq/timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest, createdBy string) (*dto.GenerateTimetableResponse, error)
}

type timetableLifecycle interface {
	Get(ctx context.Context, id string) (*models.Timetable, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error)
	Validate(ctx context.Context, id string) (*dto.ValidationResult, error)
	Publish(ctx context.Context, id string, req dto.PublishTimetableRequest, publishedBy string) (*dto.PublishTimetableResponse, error)
	Restore(ctx context.Context, id, versionID string, req dto.RestoreVersionRequest, restoredBy string) (*dto.RestoreVersionResponse, error)
	GetVersion(ctx context.Context, id, versionID string) (*models.TimetableVersion, error)
	ListVersions(ctx context.Context, id string, page, pageSize int) ([]models.TimetableVersion, *models.Pagination, error)
}

// TimetableHandler exposes generation and lifecycle endpoints.
type TimetableHandler struct {
	generator  timetableGenerator
	timetables timetableLifecycle
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator *service.GeneratorService, timetables *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{generator: generator, timetables: timetables}
}

// Generate godoc
// @Summary Generate a draft timetable for a scheduling context
// @Description Runs the single-pass greedy placement and persists the draft with any placement failures recorded as conflicts.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req, middleware.CurrentUserID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List timetables
// @Tags Timetables
// @Produce json
// @Param branchId query string false "Branch ID"
// @Param sessionId query string false "Session ID"
// @Param shiftId query string false "Shift ID"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	filter := models.TimetableFilter{
		BranchID:  c.Query("branchId"),
		SessionID: c.Query("sessionId"),
		ShiftID:   c.Query("shiftId"),
		Status:    c.Query("status"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 20),
	}
	items, pagination, err := h.timetables.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get one timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.timetables.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Validate godoc
// @Summary Validate a timetable's cells for conflicts
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/validate [get]
func (h *TimetableHandler) Validate(c *gin.Context) {
	result, err := h.timetables.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Publish godoc
// @Summary Publish a timetable
// @Description Refused when validation reports any conflict; otherwise snapshots a new version and flips status.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.PublishTimetableRequest true "Publish payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	var req dto.PublishTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid publish payload"))
		return
	}
	result, err := h.timetables.Publish(c.Request.Context(), c.Param("id"), req, middleware.CurrentUserID(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Restore godoc
// @Summary Restore a timetable to an older version
// @Description Mints a new version copied from the target snapshot and rebuilds the current cells from it.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param versionId path string true "Version ID"
// @Param payload body dto.RestoreVersionRequest false "Restore payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/restore/{versionId} [post]
func (h *TimetableHandler) Restore(c *gin.Context) {
	var req dto.RestoreVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid restore payload"))
		return
	}
	result, err := h.timetables.Restore(c.Request.Context(), c.Param("id"), c.Param("versionId"), req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListVersions godoc
// @Summary List a timetable's version history
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/versions [get]
func (h *TimetableHandler) ListVersions(c *gin.Context) {
	items, pagination, err := h.timetables.ListVersions(c.Request.Context(), c.Param("id"),
		queryInt(c, "page", 1), queryInt(c, "pageSize", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetVersion godoc
// @Summary Get one version snapshot
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Param versionId path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/versions/{versionId} [get]
func (h *TimetableHandler) GetVersion(c *gin.Context) {
	version, err := h.timetables.GetVersion(c.Request.Context(), c.Param("id"), c.Param("versionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// respondEngineError renders conflict violations with the full conflict list
// in the response meta so operators can act without a second request.
func respondEngineError(c *gin.Context, err error) {
	var violation *models.ConflictViolationError
	if errors.As(err, &violation) {
		response.ErrorWithMeta(c, err, map[string]interface{}{"conflicts": violation.Conflicts})
		return
	}
	response.Error(c, err)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
