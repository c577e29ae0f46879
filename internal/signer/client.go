package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pymthouse/gateway/internal/config"
)

// ProbeResult is a successful HTTP status probe of the signer.
type ProbeResult struct {
	// Address is the Ethereum address the signer reports, if any.
	Address string
}

// Client talks to the remote signer over HTTP. The probe and forward paths
// carry separate timeouts so reconciliation stays fast while payment
// forwarding tolerates slower signing calls.
type Client struct {
	baseURL       string
	probeClient   *http.Client
	forwardClient *http.Client
}

// NewClient creates a signer HTTP client
func NewClient(cfg config.SignerConfig) *Client {
	return &Client{
		baseURL:       cfg.InternalURL,
		probeClient:   &http.Client{Timeout: cfg.ProbeTimeout},
		forwardClient: &http.Client{Timeout: cfg.ForwardTimeout},
	}
}

// Probe checks the signer's /status endpoint. Any transport failure,
// timeout or non-2xx response is returned as an error the reconciler treats
// as "not reachable"; it is never fatal.
func (c *Client) Probe(ctx context.Context) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := c.probeClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("signer status endpoint returned %d", resp.StatusCode)
	}

	// The signer reports its address under either key spelling
	var status struct {
		Address      string `json:"Address"`
		AddressLower string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode signer status: %w", err)
	}

	address := status.Address
	if address == "" {
		address = status.AddressLower
	}

	return &ProbeResult{Address: address}, nil
}

// ForwardResult is the signer's verbatim response to a forwarded request.
type ForwardResult struct {
	StatusCode int
	Body       []byte
}

// Forward POSTs a raw JSON body to a signer endpoint and returns the
// response verbatim. A transport failure returns an error the proxy maps to
// a bad-gateway outcome.
func (c *Client) Forward(ctx context.Context, path string, body []byte) (*ForwardResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.forwardClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach signer: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read signer response: %w", err)
	}

	return &ForwardResult{StatusCode: resp.StatusCode, Body: respBody}, nil
}
