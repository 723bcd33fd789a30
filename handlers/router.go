package handlers

import (
	"net/http"
	"time"

	"timetable-api/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Timetable *TimetableHandler
	Refresh   *RefreshHandler
	Status    *StatusHandler
}

func NewRouter(h Handlers, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now(),
		})
	})
	router.GET("/status", h.Status.GetStatus)

	router.GET("/timetable", h.Timetable.GetTimetable)
	router.GET("/timetable/upcoming", h.Timetable.GetUpcoming)
	router.GET("/timetable/export.ics", h.Timetable.ExportICS)
	router.GET("/timetable/export.xlsx", h.Timetable.ExportXLSX)

	router.POST("/refresh", h.Refresh.Refresh)

	return router
}
