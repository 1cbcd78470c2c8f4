package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const defaultBatchSize = 10

type Client struct {
	host       string
	httpClient *http.Client
	batchSize  int
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gamma API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://gamma-api.polymarket.com"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
		batchSize:  defaultBatchSize,
	}
}

// WithBatchSize overrides how many market ids go into one upstream request.
func (c *Client) WithBatchSize(n int) *Client {
	if n > 0 {
		c.batchSize = n
	}
	return c
}

// MarketPrice is the current affirmative/negative quote for one market.
type MarketPrice struct {
	MarketID  string
	YesPrice  decimal.Decimal
	NoPrice   decimal.Decimal
	Liquidity decimal.Decimal
	Volume    decimal.Decimal
}

// gammaMarket mirrors the subset of the Gamma /markets payload we consume.
// outcomePrices arrives as a JSON-encoded string array, e.g. "[\"0.55\", \"0.45\"]".
type gammaMarket struct {
	ID            string `json:"id"`
	OutcomePrices string `json:"outcomePrices"`
	Liquidity     string `json:"liquidity"`
	Volume        string `json:"volume"`
}

// FetchPrices returns current prices for the given market ids, batching the
// upstream query in fixed-size chunks. Ids unknown upstream, and markets
// whose price payload cannot be parsed, are simply absent from the result.
func (c *Client) FetchPrices(ctx context.Context, marketIDs []string) (map[string]MarketPrice, error) {
	out := make(map[string]MarketPrice, len(marketIDs))
	if len(marketIDs) == 0 {
		return out, nil
	}

	batchSize := c.batchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for start := 0; start < len(marketIDs); start += batchSize {
		end := start + batchSize
		if end > len(marketIDs) {
			end = len(marketIDs)
		}
		markets, err := c.fetchBatch(ctx, marketIDs[start:end])
		if err != nil {
			return nil, err
		}
		for _, m := range markets {
			price, ok := parseMarketPrice(m)
			if !ok {
				continue
			}
			out[m.ID] = price
		}
	}

	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, marketIDs []string) ([]gammaMarket, error) {
	query := url.Values{}
	for _, id := range marketIDs {
		query.Add("id", id)
	}
	body, err := c.doRequest(ctx, "/markets", query)
	if err != nil {
		return nil, err
	}
	var markets []gammaMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("failed to decode markets payload: %w", err)
	}
	return markets, nil
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func parseMarketPrice(m gammaMarket) (MarketPrice, bool) {
	if strings.TrimSpace(m.ID) == "" {
		return MarketPrice{}, false
	}
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil || len(raw) < 2 {
		return MarketPrice{}, false
	}
	yes, err := decimal.NewFromString(strings.TrimSpace(raw[0]))
	if err != nil {
		return MarketPrice{}, false
	}
	no, err := decimal.NewFromString(strings.TrimSpace(raw[1]))
	if err != nil {
		return MarketPrice{}, false
	}
	return MarketPrice{
		MarketID:  m.ID,
		YesPrice:  yes,
		NoPrice:   no,
		Liquidity: parseOptionalDecimal(m.Liquidity),
		Volume:    parseOptionalDecimal(m.Volume),
	}, true
}

func parseOptionalDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
