package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"edureg/internal/student"
)

// Client calls an HTTP extraction service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// NewClient creates a client with configurable timeout. Skip returns a
// canned draft without calling the service.
func NewClient(baseURL string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

// Extract posts the text and the current date to /extract.
func (c *Client) Extract(ctx context.Context, text string, today time.Time) (*student.Draft, error) {
	text, err := checkInput(text)
	if err != nil {
		return nil, err
	}
	if c.Skip {
		return mockDraft(today), nil
	}

	body, _ := json.Marshal(extractRequest{Text: text, Date: today.Format("2006-01-02")})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fail(fmt.Errorf("extraction service request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fail(fmt.Errorf("extraction service error %s: %s", resp.Status, string(bodyBytes)))
	}

	var out student.Draft
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fail(fmt.Errorf("failed to decode response: %w", err))
	}
	return finish(&out)
}

// Health checks if the extraction service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("extraction service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("extraction service unhealthy: %s", resp.Status)
	}
	return nil
}

func mockDraft(today time.Time) *student.Draft {
	name, course, date := "Mock Student", "Mock Course", today.Format("2006-01-02")
	sex := student.Other
	return &student.Draft{Name: &name, Course: &course, Date: &date, Sex: &sex}
}
