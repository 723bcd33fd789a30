package handlers

import (
	"log"
	"net/http"

	"timetable-api/models"
	"timetable-api/services"

	"github.com/gin-gonic/gin"
)

type RefreshHandler struct {
	coordinator *services.RefreshCoordinator
}

func NewRefreshHandler(coordinator *services.RefreshCoordinator) *RefreshHandler {
	return &RefreshHandler{coordinator: coordinator}
}

// Refresh fetches a fresh timetable from the portal, subject to the cooldown.
// The request may block for the whole upstream round trip.
func (h *RefreshHandler) Refresh(c *gin.Context) {
	log.Println("RefreshHandler - Refresh")
	result, err := h.coordinator.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	var changes []models.ScheduleChange
	if len(result.Changes) > 0 {
		changes = result.Changes
	}

	c.Header("X-Refresh-ID", result.RefreshID)
	c.JSON(http.StatusOK, models.RefreshResponse{
		TimetableResponse: models.TimetableResponse{
			Success:    true,
			Data:       result.Snapshot.Entries,
			Cached:     false,
			Timestamp:  result.Snapshot.CapturedAt,
			ClassCount: len(result.Snapshot.Entries),
		},
		RefreshID: result.RefreshID,
		Changes:   changes,
	})
}
