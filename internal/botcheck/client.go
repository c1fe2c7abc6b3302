package botcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

var _ model.BotVerifier = (*Client)(nil)

// Client verifies challenge tokens against a siteverify endpoint.
// A transport failure or a non-2xx response is reported as an error,
// never as a passing verdict.
type Client struct {
	url    string
	secret string
	http   *http.Client
}

func NewClient(url, secret string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		secret: secret,
		http:   &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	Secret   string `json:"secret"`
	Response string `json:"response"`
	RemoteIP string `json:"remoteip,omitempty"`
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (c *Client) Verify(ctx context.Context, token, clientOrigin string) (bool, error) {
	body, err := json.Marshal(verifyRequest{
		Secret:   c.secret,
		Response: token,
		RemoteIP: clientOrigin,
	})
	if err != nil {
		return false, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: call verifier: %w", model.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%w: verifier responded %d", model.ErrExternalService, resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return false, fmt.Errorf("%w: decode verifier response: %w", model.ErrExternalService, err)
	}

	return vr.Success, nil
}
