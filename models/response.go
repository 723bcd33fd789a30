package models

import "time"

type TimetableResponse struct {
	Success    bool         `json:"success"`
	Data       []ClassEntry `json:"data"`
	Cached     bool         `json:"cached"`
	Timestamp  time.Time    `json:"timestamp"`
	ClassCount int          `json:"classCount"`
}

type RefreshResponse struct {
	TimetableResponse
	RefreshID string           `json:"refreshId,omitempty"`
	Changes   []ScheduleChange `json:"changes"`
}

type RemainingTime struct {
	Minutes      int `json:"minutes"`
	Seconds      int `json:"seconds"`
	TotalSeconds int `json:"totalSeconds"`
}

type RateLimitResponse struct {
	Success            bool          `json:"success"`
	RateLimited        bool          `json:"rateLimited"`
	Message            string        `json:"message"`
	RemainingTime      RemainingTime `json:"remainingTime"`
	LastUpdated        time.Time     `json:"lastUpdated"`
	NextRefreshAllowed time.Time     `json:"nextRefreshAllowed"`
}

type UpcomingClass struct {
	ClassEntry
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
}

type UpcomingResponse struct {
	Success bool            `json:"success"`
	Data    []UpcomingClass `json:"data"`
	Within  string          `json:"within"`
}

type StatusResponse struct {
	Status      string     `json:"status"`
	Version     string     `json:"version"`
	Time        time.Time  `json:"time"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Hint    string `json:"hint,omitempty"`
}
