package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadpilot/internal/lead"
	"leadpilot/internal/logging"
	"leadpilot/internal/routing"
)

// CRM is the external record system holding lead rows. Manual-delivery text
// is written back to the lead's row for a human operator to pick up.
type CRM interface {
	WriteManual(ctx context.Context, leadID string, md routing.ManualDelivery) error
	ReadLead(ctx context.Context, leadID string) (lead.Context, error)
}

// CRMClient talks to the CRM HTTP API.
type CRMClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCRMClient builds a client with the given request timeout.
func NewCRMClient(baseURL, apiKey string, timeout time.Duration) *CRMClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CRMClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// crmWriteRequest is the field-update payload.
type crmWriteRequest struct {
	Fields map[string]string `json:"fields"`
}

// WriteManual stores the formatted outreach text and network URL on the
// lead's row.
func (c *CRMClient) WriteManual(ctx context.Context, leadID string, md routing.ManualDelivery) error {
	payload := crmWriteRequest{Fields: map[string]string{
		"outreach_text":        md.Text,
		"outreach_network_url": md.NetworkURL,
		"outreach_status":      "ready_for_manual",
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrDeliveryFailed, err)
	}

	url := fmt.Sprintf("%s/leads/%s/fields", c.baseURL, leadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: CRM write returned %d: %s", ErrDeliveryFailed, resp.StatusCode, snippet)
	}

	logging.Delivery("Wrote manual outreach fields lead=%s", leadID)
	return nil
}

// ReadLead fetches one lead row and maps it onto the run input shape.
func (c *CRMClient) ReadLead(ctx context.Context, leadID string) (lead.Context, error) {
	url := fmt.Sprintf("%s/leads/%s", c.baseURL, leadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return lead.Context{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return lead.Context{}, fmt.Errorf("CRM read: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return lead.Context{}, fmt.Errorf("CRM read returned %d: %s", resp.StatusCode, snippet)
	}

	var lc lead.Context
	if err := json.NewDecoder(resp.Body).Decode(&lc); err != nil {
		return lead.Context{}, fmt.Errorf("decode lead %s: %w", leadID, err)
	}
	return lc, nil
}
