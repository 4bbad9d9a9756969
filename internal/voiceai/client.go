// Package voiceai is the HTTP client for the voice-AI vendor's inbound-call
// endpoint, which takes over conversational handling of a call.
package voiceai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// inboundCallPath is the vendor endpoint that accepts forwarded telephony
// signaling payloads and responds with markup for the provider.
const inboundCallPath = "/twilio/inbound_call"

// maxResponseBytes bounds the vendor markup we will relay.
const maxResponseBytes = 64 * 1024

// Client forwards inbound-call signaling payloads to the voice-AI vendor.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a vendor client. baseURL is the vendor API root
// (e.g. "https://api.vendor.example"). The timeout bounds each forward so a
// slow vendor cannot hold the provider's webhook connection open.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// ForwardInboundCall POSTs the form-encoded signaling payload to the vendor's
// inbound-call endpoint and returns the vendor's markup verbatim. Any non-2xx
// response or transport error is returned as an error; the caller is expected
// to degrade to an apology response rather than relaying the failure.
func (c *Client) ForwardInboundCall(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+inboundCallPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("voiceai: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("voiceai: sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("voiceai: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("voiceai: vendor returned status %d: %s",
			resp.StatusCode, truncate(string(body), 512))
	}

	slog.Debug("forwarded call to vendor",
		"call_sid", form.Get("CallSid"),
		"status", resp.StatusCode,
	)

	return string(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
