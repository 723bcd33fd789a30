package handlers

import (
	"net/http"
	"time"

	"timetable-api/models"
	"timetable-api/services"

	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	timetableService *services.TimetableService
	version          string
}

func NewStatusHandler(timetable *services.TimetableService, version string) *StatusHandler {
	return &StatusHandler{timetableService: timetable, version: version}
}

func (h *StatusHandler) GetStatus(c *gin.Context) {
	resp := models.StatusResponse{
		Status:  "ok",
		Version: h.version,
		Time:    time.Now(),
	}
	if lastUpdated, ok, err := h.timetableService.LastUpdated(c.Request.Context()); err == nil && ok {
		resp.LastUpdated = &lastUpdated
	}
	c.JSON(http.StatusOK, resp)
}
