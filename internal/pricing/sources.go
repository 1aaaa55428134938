package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TokenQuote is a token's USD price together with its decimal precision.
type TokenQuote struct {
	PriceUSD float64
	Decimals int
}

// NativePriceSource resolves the current native-asset USD price.
type NativePriceSource interface {
	NativeUSD(ctx context.Context) (float64, error)
}

// TokenPriceSource resolves the current USD price of an arbitrary token.
type TokenPriceSource interface {
	TokenUSD(ctx context.Context, tokenAddr string) (TokenQuote, error)
}

// HTTPNativeSource fetches the native price from a JSON endpoint shaped like
// the Coingecko simple-price response: {"ethereum":{"usd":1234.5}}.
type HTTPNativeSource struct {
	URL    string
	Asset  string // top-level key, e.g. "ethereum"
	Client *http.Client
}

// NewHTTPNativeSource creates a native price source for the given endpoint.
func NewHTTPNativeSource(url, asset string) *HTTPNativeSource {
	return &HTTPNativeSource{
		URL:    url,
		Asset:  asset,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NativeUSD fetches the current native-asset USD price.
func (s *HTTPNativeSource) NativeUSD(ctx context.Context) (float64, error) {
	body, err := getJSON(ctx, s.Client, s.URL)
	if err != nil {
		return 0, err
	}

	var result map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("unmarshal native price: %w", err)
	}

	entry, ok := result[s.Asset]
	if !ok || entry.USD <= 0 {
		return 0, fmt.Errorf("no usd price for %q in response", s.Asset)
	}
	return entry.USD, nil
}

// HTTPTokenSource fetches token prices from a DexScreener-style endpoint.
// The URL template's {address} placeholder is replaced with the token
// address; the highest-liquidity pair wins.
type HTTPTokenSource struct {
	URLTemplate string
	Client      *http.Client
}

// NewHTTPTokenSource creates a token price source for the given URL template.
func NewHTTPTokenSource(urlTemplate string) *HTTPTokenSource {
	return &HTTPTokenSource{
		URLTemplate: urlTemplate,
		Client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// TokenUSD fetches the current USD price and decimals for a token.
func (s *HTTPTokenSource) TokenUSD(ctx context.Context, tokenAddr string) (TokenQuote, error) {
	url := strings.ReplaceAll(s.URLTemplate, "{address}", tokenAddr)

	body, err := getJSON(ctx, s.Client, url)
	if err != nil {
		return TokenQuote{}, err
	}

	var result struct {
		Pairs []struct {
			PriceUSD  string `json:"priceUsd"`
			Liquidity struct {
				USD float64 `json:"usd"`
			} `json:"liquidity"`
			BaseToken struct {
				Decimals int `json:"decimals"`
			} `json:"baseToken"`
		} `json:"pairs"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return TokenQuote{}, fmt.Errorf("unmarshal token price: %w", err)
	}

	var best TokenQuote
	bestLiq := -1.0
	for _, p := range result.Pairs {
		price, err := strconv.ParseFloat(p.PriceUSD, 64)
		if err != nil || price <= 0 {
			continue
		}
		if p.Liquidity.USD > bestLiq {
			decimals := p.BaseToken.Decimals
			if decimals == 0 {
				decimals = 18 // ERC20 default when the source omits it
			}
			best = TokenQuote{PriceUSD: price, Decimals: decimals}
			bestLiq = p.Liquidity.USD
		}
	}

	if bestLiq < 0 {
		return TokenQuote{}, fmt.Errorf("no valid price for token %s", tokenAddr)
	}
	return best, nil
}

// getJSON performs a GET and returns the body for 2xx responses.
func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
