// Package provider talks to the voice-calling API: it places outbound calls
// and fetches their status.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"coldcall/internal/config"
)

const maxErrorBody = 64 << 10

// Client places calls and fetches call status.
type Client struct {
	baseURL       string
	apiKey        string
	assistantID   string
	phoneNumberID string
	httpClient    *http.Client
}

// Customer is the callee of an outbound call.
type Customer struct {
	Number string `json:"number"`
}

type placeCallRequest struct {
	AssistantID   string   `json:"assistantId"`
	PhoneNumberID string   `json:"phoneNumberId"`
	Customer      Customer `json:"customer"`
}

// Analysis is the provider's post-call analysis block.
type Analysis struct {
	Summary *string `json:"summary"`
}

// CallStatus is the call-status payload. Optional fields are nil when the
// provider omits them.
type CallStatus struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	EndedReason  *string   `json:"endedReason"`
	RecordingURL *string   `json:"recordingUrl"`
	Analysis     *Analysis `json:"analysis"`
}

// Summary returns the analysis summary, if any.
func (c CallStatus) Summary() *string {
	if c.Analysis == nil {
		return nil
	}
	return c.Analysis.Summary
}

// RejectionError is returned when the provider refuses to place a call.
type RejectionError struct {
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("call placement rejected: status %d: %s", e.StatusCode, e.Body)
}

// StatusError is returned when a call-status request does not succeed.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("call status request failed: status %d", e.StatusCode)
}

// NewClient builds a client from cfg. A nil httpClient gets a default with
// cfg.HTTPTimeout.
func NewClient(cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.VAPIBaseURL, "/"),
		apiKey:        cfg.VAPIAPIKey,
		assistantID:   cfg.AssistantID,
		phoneNumberID: cfg.PhoneNumberID,
		httpClient:    httpClient,
	}
}

// PlaceCall submits an outbound call to customer and returns the provider's
// call identifier. It returns either a non-empty id or an error.
func (c *Client) PlaceCall(ctx context.Context, customer Customer) (string, error) {
	if strings.TrimSpace(customer.Number) == "" {
		return "", errors.New("customer number is required")
	}
	buf, err := json.Marshal(placeCallRequest{
		AssistantID:   c.assistantID,
		PhoneNumberID: c.phoneNumberID,
		Customer:      customer,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call/phone", bytes.NewReader(buf))
	if err != nil {
		return "", errors.Wrap(err, "build call request")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "place call")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &RejectionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", errors.Wrap(err, "decode call response")
	}
	if strings.TrimSpace(created.ID) == "" {
		return "", errors.New("call response missing id")
	}
	return created.ID, nil
}

// GetCall fetches the current status of callID.
func (c *Client) GetCall(ctx context.Context, callID string) (*CallStatus, error) {
	if strings.TrimSpace(callID) == "" {
		return nil, errors.New("call id is required")
	}
	endpoint := fmt.Sprintf("%s/call/%s", c.baseURL, url.PathEscape(callID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build status request")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch call status")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var status CallStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, errors.Wrap(err, "decode call status")
	}
	return &status, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
