package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/middleware"
	"github.com/campushq/timetable-api/internal/service"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
	"github.com/campushq/timetable-api/pkg/response"
)

type substitutionManager interface {
	Create(ctx context.Context, req dto.CreateSubstitutionRequest, createdBy string) (*dto.SubstitutionItem, error)
	BulkCreate(ctx context.Context, req dto.BulkSubstitutionRequest, createdBy string) (*dto.BulkSubstitutionResponse, error)
	Cancel(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]dto.SubstitutionItem, error)
	MarkTeacherAbsent(ctx context.Context, timetableID string, req dto.MarkTeacherAbsentRequest, createdBy string) (*dto.MarkTeacherAbsentResponse, error)
	AvailableTeachers(ctx context.Context, timetableID string, day int, periods []int) ([]dto.AvailableTeacher, error)
}

// SubstitutionHandler exposes teacher override endpoints.
type SubstitutionHandler struct {
	substitutions substitutionManager
}

// NewSubstitutionHandler constructs the handler.
func NewSubstitutionHandler(substitutions *service.SubstitutionService) *SubstitutionHandler {
	return &SubstitutionHandler{substitutions: substitutions}
}

// Create godoc
// @Summary Create a substitution for one cell
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubstitutionRequest true "Substitution payload"
// @Success 201 {object} response.Envelope
// @Router /substitutions [post]
func (h *SubstitutionHandler) Create(c *gin.Context) {
	var req dto.CreateSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid substitution payload"))
		return
	}
	item, err := h.substitutions.Create(c.Request.Context(), req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// BulkCreate godoc
// @Summary Cover every cell of a teacher-section pair over a date range
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.BulkSubstitutionRequest true "Bulk substitution payload"
// @Success 201 {object} response.Envelope
// @Router /substitutions/bulk [post]
func (h *SubstitutionHandler) BulkCreate(c *gin.Context) {
	var req dto.BulkSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk substitution payload"))
		return
	}
	result, err := h.substitutions.BulkCreate(c.Request.Context(), req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListActive godoc
// @Summary List substitutions active today
// @Tags Substitutions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /substitutions/active [get]
func (h *SubstitutionHandler) ListActive(c *gin.Context) {
	items, err := h.substitutions.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Cancel godoc
// @Summary Cancel a substitution
// @Tags Substitutions
// @Param id path string true "Substitution ID"
// @Success 204
// @Router /substitutions/{id}/cancel [post]
func (h *SubstitutionHandler) Cancel(c *gin.Context) {
	if err := h.substitutions.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkTeacherAbsent godoc
// @Summary Mark a teacher absent for one date
// @Description Creates single-period substitutions from the operator-supplied per-period substitute map; uncovered periods are reported as skipped.
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.MarkTeacherAbsentRequest true "Absence payload"
// @Success 201 {object} response.Envelope
// @Router /timetables/{id}/teacher-absences [post]
func (h *SubstitutionHandler) MarkTeacherAbsent(c *gin.Context) {
	var req dto.MarkTeacherAbsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid absence payload"))
		return
	}
	result, err := h.substitutions.MarkTeacherAbsent(c.Request.Context(), c.Param("id"), req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// AvailableTeachers godoc
// @Summary List teachers free across the requested periods
// @Tags Substitutions
// @Produce json
// @Param id path string true "Timetable ID"
// @Param day query int true "Day of week (0=Monday)"
// @Param periods query string true "Comma-separated period numbers"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/available-teachers [get]
func (h *SubstitutionHandler) AvailableTeachers(c *gin.Context) {
	day, err := strconv.Atoi(c.Query("day"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day query parameter is required"))
		return
	}
	periods, err := parsePeriods(c.Query("periods"))
	if err != nil {
		response.Error(c, err)
		return
	}
	teachers, err := h.substitutions.AvailableTeachers(c.Request.Context(), c.Param("id"), day, periods)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

func parsePeriods(raw string) ([]int, error) {
	if raw == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "periods query parameter is required")
	}
	parts := strings.Split(raw, ",")
	periods := make([]int, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || value < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "periods must be positive integers")
		}
		periods = append(periods, value)
	}
	return periods, nil
}
