package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/middleware"
	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/internal/service"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
	"github.com/campushq/timetable-api/pkg/response"
)

type entryEditor interface {
	List(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error)
	Create(ctx context.Context, req dto.CreateEntryRequest) (*models.TimetableEntry, error)
	Update(ctx context.Context, id string, req dto.UpdateEntryRequest) (*models.TimetableEntry, error)
	Delete(ctx context.Context, id string) error
}

// EntryHandler exposes cell-level read and edit endpoints.
type EntryHandler struct {
	entries entryEditor
	cache   *service.CacheService
}

// NewEntryHandler constructs the handler.
func NewEntryHandler(entries *service.EntryService, cache *service.CacheService) *EntryHandler {
	return &EntryHandler{entries: entries, cache: cache}
}

// List godoc
// @Summary List a timetable's cells
// @Description Optionally narrowed to one section, teacher, or weekday. Responses are cached per filter.
// @Tags Entries
// @Produce json
// @Param id path string true "Timetable ID"
// @Param sectionId query string false "Section ID"
// @Param teacherId query string false "Teacher ID"
// @Param day query int false "Day of week (0=Monday)"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/entries [get]
func (h *EntryHandler) List(c *gin.Context) {
	filter := models.EntryFilter{
		TimetableID: c.Param("id"),
		SectionID:   c.Query("sectionId"),
		TeacherID:   c.Query("teacherId"),
	}
	if raw := c.Query("day"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil || day < 0 || day > 6 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day must be between 0 (Monday) and 6 (Sunday)"))
			return
		}
		filter.DayOfWeek = &day
	}

	cacheKey := entriesCacheKey(filter)
	var cached []models.TimetableEntry
	if h.cache.Enabled() {
		if hit, _ := h.cache.Get(c.Request.Context(), cacheKey, &cached); hit {
			middleware.SetCacheHit(c, true)
			response.JSON(c, http.StatusOK, cached, nil, middleware.ExtractMeta(c))
			return
		}
	}

	entries, err := h.entries.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.cache.Enabled() {
		_ = h.cache.Set(c.Request.Context(), cacheKey, entries, 0)
		middleware.SetCacheHit(c, false)
	}
	response.JSON(c, http.StatusOK, entries, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Add one cell to a draft timetable
// @Description Refused with the conflicting occupants when the cell would double-book a teacher, section, or room.
// @Tags Entries
// @Accept json
// @Produce json
// @Param payload body dto.CreateEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Router /entries [post]
func (h *EntryHandler) Create(c *gin.Context) {
	var req dto.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	entry, err := h.entries.Create(c.Request.Context(), req)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Edit one cell
// @Tags Entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Router /entries/{id} [put]
func (h *EntryHandler) Update(c *gin.Context) {
	var req dto.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	entry, err := h.entries.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Remove one cell
// @Tags Entries
// @Param id path string true "Entry ID"
// @Success 204
// @Router /entries/{id} [delete]
func (h *EntryHandler) Delete(c *gin.Context) {
	if err := h.entries.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func entriesCacheKey(filter models.EntryFilter) string {
	day := ""
	if filter.DayOfWeek != nil {
		day = strconv.Itoa(*filter.DayOfWeek)
	}
	return strings.Join([]string{
		"timetable", filter.TimetableID, "entries", filter.SectionID, filter.TeacherID, day,
	}, ":")
}
