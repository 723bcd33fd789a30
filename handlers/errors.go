package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"timetable-api/models"
	"timetable-api/services"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto the JSON error shapes the client expects.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var rateLimited *services.RateLimitedError
	if errors.As(err, &rateLimited) {
		total := rateLimited.RemainingSeconds()
		c.JSON(http.StatusTooManyRequests, models.RateLimitResponse{
			Success:     false,
			RateLimited: true,
			Message:     fmt.Sprintf("Timetable was refreshed recently. Try again in %dm %ds.", total/60, total%60),
			RemainingTime: models.RemainingTime{
				Minutes:      total / 60,
				Seconds:      total % 60,
				TotalSeconds: total,
			},
			LastUpdated:        rateLimited.LastUpdated,
			NextRefreshAllowed: rateLimited.NextAllowed,
		})
		return
	}

	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error:   "no cached timetable available",
			Code:    string(services.ErrCodeNotFound),
			Hint:    "POST /refresh to fetch the timetable from the portal",
		})
		return
	}

	// The full chain stays in c.Errors for the logger; clients only see the message.
	message := "internal error"
	var appErr *services.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    string(services.CodeOf(err)),
	})
}
