package services

import (
	"context"

	"timetable-api/models"
)

// Fetcher retrieves the raw timetable for the configured account. The
// session token from the previous snapshot may be reused to skip login.
type Fetcher interface {
	Fetch(ctx context.Context, sessionToken string) (*FetchResult, error)
}

type FetchResult struct {
	Classes      []models.RawClass
	SessionToken string
	// RawPayload is the response body the classes were parsed from, kept for diagnostics.
	RawPayload []byte
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, sessionToken string) (*FetchResult, error)

func (f FetcherFunc) Fetch(ctx context.Context, sessionToken string) (*FetchResult, error) {
	return f(ctx, sessionToken)
}
