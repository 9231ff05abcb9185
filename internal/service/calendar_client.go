package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// CalendarEvent is the create-event payload for the remote calendar API.
type CalendarEvent struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// EventTime is an instant tagged with the tenant's display timezone.
type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// CalendarAPI is the integration contract with the remote calendar service.
type CalendarAPI interface {
	CreateEvent(ctx context.Context, accessToken, calendarID string, event *CalendarEvent) (string, error)
}

// CalendarClient calls the remote calendar HTTP API with bearer-token auth.
type CalendarClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCalendarClient creates a calendar client with a fixed request timeout so
// one slow downstream cannot exhaust request-handling capacity.
func NewCalendarClient(baseURL string, httpClient *http.Client) *CalendarClient {
	return &CalendarClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CreateEvent creates an event on the given calendar and returns its id.
// A non-2xx response is returned as an error carrying the remote body
// verbatim, for operator diagnosis.
func (c *CalendarClient) CreateEvent(ctx context.Context, accessToken, calendarID string, event *CalendarEvent) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build create-event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create-event request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("calendar API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("failed to decode create-event response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("calendar API returned no event id")
	}

	return created.ID, nil
}
