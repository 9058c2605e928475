package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/internal/service"
	"github.com/campushq/timetable-api/pkg/response"
)

type conflictManager interface {
	List(ctx context.Context, timetableID string, includeResolved bool) ([]models.Conflict, error)
	Resolve(ctx context.Context, id string) error
}

// ConflictHandler exposes persisted conflict records.
type ConflictHandler struct {
	conflicts conflictManager
}

// NewConflictHandler constructs the handler.
func NewConflictHandler(conflicts *service.ConflictService) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts}
}

// List godoc
// @Summary List a timetable's conflict records
// @Tags Conflicts
// @Produce json
// @Param id path string true "Timetable ID"
// @Param includeResolved query bool false "Include resolved conflicts"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	includeResolved := c.Query("includeResolved") == "true"
	conflicts, err := h.conflicts.List(c.Request.Context(), c.Param("id"), includeResolved)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// Resolve godoc
// @Summary Mark a conflict record as handled
// @Tags Conflicts
// @Param id path string true "Conflict ID"
// @Success 204
// @Router /conflicts/{id}/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	if err := h.conflicts.Resolve(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
