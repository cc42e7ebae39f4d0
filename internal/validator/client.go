// Package validator submits assembled OMC documents to an external schema
// checker over HTTP and classifies the checker's report. The document is
// sent exactly as encoded and the report is treated as opaque beyond the
// tally and issue list used for classification.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// DefaultTimeout bounds one verification exchange when no timeout is
// configured.
const DefaultTimeout = 30 * time.Second

// maxReportSize caps how much of the checker's response is read.
const maxReportSize = 4 * 1024 * 1024

// Client talks to one schema checker endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a checker client for the given endpoint. apiKey may be
// empty; when set it is sent as a bearer token.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Check submits the document as a single named multipart file and returns
// the classified outcome together with the checker's raw report bytes. The
// raw report is returned untouched so callers can persist it as received.
func (c *Client) Check(ctx context.Context, fileName string, document []byte) (Outcome, json.RawMessage, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", nil, fmt.Errorf("schema checker request: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return "", nil, fmt.Errorf("schema checker request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", nil, fmt.Errorf("schema checker request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return "", nil, fmt.Errorf("schema checker request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("schema checker request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReportSize))
	if err != nil {
		return "", nil, fmt.Errorf("schema checker request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("schema checker returned status %d", resp.StatusCode)
	}

	var report Report
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &report); err != nil {
			return "", nil, fmt.Errorf("decode checker report: %w", err)
		}
	}

	return Classify(report), json.RawMessage(raw), nil
}
