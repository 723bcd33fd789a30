package handlers

import (
	"net/http"
	"time"

	"timetable-api/models"
	"timetable-api/services"

	"github.com/gin-gonic/gin"
)

const (
	defaultUpcomingWindow = 2 * time.Hour
	maxUpcomingWindow     = 7 * 24 * time.Hour
)

type TimetableHandler struct {
	timetableService *services.TimetableService
	exportService    *services.ExportService
	loc              *time.Location
	now              func() time.Time
}

func NewTimetableHandler(timetable *services.TimetableService, export *services.ExportService, loc *time.Location) *TimetableHandler {
	return &TimetableHandler{
		timetableService: timetable,
		exportService:    export,
		loc:              loc,
		now:              time.Now,
	}
}

// GetTimetable returns the cached snapshot; it never contacts the portal.
func (h *TimetableHandler) GetTimetable(c *gin.Context) {
	snapshot, err := h.timetableService.GetCurrent(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TimetableResponse{
		Success:    true,
		Data:       snapshot.Entries,
		Cached:     true,
		Timestamp:  snapshot.CapturedAt,
		ClassCount: len(snapshot.Entries),
	})
}

// GetUpcoming returns classes starting within ?within= (Go duration, default 2h).
func (h *TimetableHandler) GetUpcoming(c *gin.Context) {
	within := defaultUpcomingWindow
	if raw := c.Query("within"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > maxUpcomingWindow {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error:   "invalid within parameter",
				Hint:    "use a positive duration up to 168h, e.g. 90m",
			})
			return
		}
		within = parsed
	}

	upcoming, err := h.timetableService.Upcoming(c.Request.Context(), h.now().In(h.loc), within)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UpcomingResponse{
		Success: true,
		Data:    upcoming,
		Within:  within.String(),
	})
}

func (h *TimetableHandler) ExportICS(c *gin.Context) {
	data, err := h.exportService.ICS(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="timetable.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

func (h *TimetableHandler) ExportXLSX(c *gin.Context) {
	data, err := h.exportService.XLSX(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="timetable.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
