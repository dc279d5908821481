// Package client talks to the management server on behalf of the agent.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"fleetdeploy/internal/protocol"
)

// CredentialHeader carries the machine credential on authenticated calls
const CredentialHeader = "X-Machine-Credential"

// ErrEventConflict means the server rejected the event because the job is
// already terminal. The report is considered delivered.
var ErrEventConflict = errors.New("job event conflicts with terminal job")

// envelope mirrors the server's response wrapper
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client is the agent's handle to the server API
type Client struct {
	http *resty.Client
}

// New creates an authenticated client
func New(serverURL, credential string) *Client {
	c := resty.New().
		SetBaseURL(serverURL + "/api/v1").
		SetHeader("Content-Type", "application/json").
		SetHeader(CredentialHeader, credential).
		SetRetryCount(3)
	return &Client{http: c}
}

// Enroll registers the machine and returns its identity. It needs no
// credential, so it works on a bare client.
func Enroll(serverURL string, req protocol.EnrollRequest) (*protocol.EnrollResponse, error) {
	c := resty.New().SetBaseURL(serverURL + "/api/v1")

	resp, err := c.R().SetBody(req).Post("/agent/enroll")
	if err != nil {
		return nil, fmt.Errorf("enroll request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("server rejected enrollment with code %d: %s", resp.StatusCode(), resp.String())
	}

	var out protocol.EnrollResponse
	if err := decodeData(resp.Body(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchPlan returns the ordered work list for this machine
func (c *Client) FetchPlan() ([]protocol.PlanEntry, error) {
	resp, err := c.http.R().Get("/agent/plan")
	if err != nil {
		return nil, fmt.Errorf("plan request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("server responded %d: %s", resp.StatusCode(), resp.String())
	}

	var plan protocol.PlanResponse
	if err := decodeData(resp.Body(), &plan); err != nil {
		return nil, err
	}
	return plan.Entries, nil
}

// PostJobEvent reports a job lifecycle event. A conflict response means
// the job is already terminal on the server; callers should treat the
// delivery as done and not retry.
func (c *Client) PostJobEvent(jobID int, ev protocol.JobEvent) error {
	resp, err := c.http.R().
		SetBody(ev).
		Post(fmt.Sprintf("/agent/jobs/%d/events", jobID))
	if err != nil {
		return fmt.Errorf("event request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		return ErrEventConflict
	default:
		return fmt.Errorf("server rejected event with code %d: %s", resp.StatusCode(), resp.String())
	}
}

// Download fetches an artifact URL to a local file
func (c *Client) Download(url, dest string) error {
	resp, err := resty.New().R().SetOutput(dest).Get(url)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("artifact server responded %d", resp.StatusCode())
	}
	return nil
}

func decodeData(body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("server error %d: %s", env.Code, env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
