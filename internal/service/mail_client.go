package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Mailer is the generic send-email capability consumed by the dispatcher.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
	Configured() bool
}

// MailClient delivers email through the platform's HTTP delivery service.
type MailClient struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewMailClient creates a new mail client
func NewMailClient(baseURL, apiKey, from string, httpClient *http.Client) *MailClient {
	return &MailClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		from:       from,
		httpClient: httpClient,
	}
}

// Configured reports whether the delivery-service credential is present.
func (c *MailClient) Configured() bool {
	return c.apiKey != ""
}

// Send delivers one HTML email and returns the provider message id.
func (c *MailClient) Send(ctx context.Context, to, subject, html string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"from":    c.from,
		"to":      to,
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mail send request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("mail API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var sent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &sent); err != nil {
		return "", fmt.Errorf("failed to decode mail response: %w", err)
	}

	return sent.ID, nil
}
