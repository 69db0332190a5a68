// Package market proxies the KRN ticker from a third-party market-data
// upstream. Pure I/O wrapper, no state.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/krn-labs/gripeboard/src/webclient"
)

const requestTimeout = 10 * time.Second

type Ticker struct {
	Symbol    string `json:"symbol"`
	PriceUSD  string `json:"price_usd"`
	Change24h string `json:"change_24h"`
}

type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string) *Client {
	return &Client{url: url, httpClient: webclient.NewDefault(requestTimeout)}
}

func (c *Client) Ticker(ctx context.Context) (Ticker, error) {
	var t Ticker
	status, body, err := webclient.DoWithRetry(ctx, 3, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
		if err != nil {
			return 0, nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		return resp.StatusCode, b, err
	})
	if err != nil {
		return t, err
	}
	if status != http.StatusOK {
		return t, fmt.Errorf("market upstream status %d", status)
	}
	if err := json.Unmarshal(body, &t); err != nil {
		return t, fmt.Errorf("market upstream decode: %w", err)
	}
	return t, nil
}
