// Package telephony is a minimal REST client for the telephony provider,
// used to fetch the billed cost of a finished call.
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CallCost is the provider's billed price for one call. Price is the
// provider's decimal string (negative for charges); empty when billing has
// not settled yet.
type CallCost struct {
	Price     string
	PriceUnit string
}

// Client fetches call resources from the telephony provider's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
}

// NewClient creates a provider REST client authenticated with the account
// SID and auth token. baseURL defaults to the provider's public API when empty.
func NewClient(baseURL, accountSID, authToken string) *Client {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		accountSID: accountSID,
		authToken:  authToken,
	}
}

// callResource is the subset of the provider's call resource we consume.
type callResource struct {
	Price     *string `json:"price"`
	PriceUnit string  `json:"price_unit"`
}

// GetCallCost fetches the billed price for a call. A settled call returns a
// non-empty Price; a call whose billing is still pending returns an empty
// Price and no error.
func (c *Client) GetCallCost(ctx context.Context, callSID string) (CallCost, error) {
	u := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return CallCost{}, fmt.Errorf("telephony: creating request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CallCost{}, fmt.Errorf("telephony: sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return CallCost{}, fmt.Errorf("telephony: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return CallCost{}, fmt.Errorf("telephony: provider returned status %d", resp.StatusCode)
	}

	var res callResource
	if err := json.Unmarshal(body, &res); err != nil {
		return CallCost{}, fmt.Errorf("telephony: decoding call resource: %w", err)
	}

	cost := CallCost{PriceUnit: res.PriceUnit}
	if res.Price != nil {
		cost.Price = *res.Price
	}
	return cost, nil
}
