package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrCaptchaRejected marks a login refused because the solved captcha was wrong.
var ErrCaptchaRejected = errors.New("captcha rejected")

// CaptchaSolver turns a captcha image into its text.
type CaptchaSolver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

type solveRequest struct {
	Key   string `json:"key"`
	Image string `json:"image"`
}

type solveResponse struct {
	Status int    `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
}

// HTTPCaptchaSolver posts the image as base64 JSON to a paid solving API.
type HTTPCaptchaSolver struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPCaptchaSolver(endpoint, apiKey string, client *http.Client) *HTTPCaptchaSolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCaptchaSolver{endpoint: endpoint, apiKey: apiKey, client: client}
}

func (s *HTTPCaptchaSolver) Solve(ctx context.Context, image []byte) (string, error) {
	body, err := json.Marshal(solveRequest{
		Key:   s.apiKey,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling captcha request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling captcha solver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("captcha solver returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var solved solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&solved); err != nil {
		return "", fmt.Errorf("error decoding captcha response: %w", err)
	}
	text := strings.TrimSpace(solved.Text)
	if solved.Status != 1 || text == "" {
		return "", fmt.Errorf("captcha solver failed: %s", solved.Error)
	}
	return text, nil
}
