// Package pricing supplies the HBAR/USD price used for display estimates.
// The source is injected into the syncer so the fallback constant never
// leaks into callers.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HederaPayBot/hbarpay/pkg/derive"
)

// CoinGeckoBaseURL is overridable in tests.
var CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// Source yields the current HBAR price in USD.
type Source interface {
	HbarPriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// Static always returns a fixed price.
type Static struct {
	Price decimal.Decimal
}

func (s Static) HbarPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	return s.Price, nil
}

// DefaultStatic returns a static source at the reference price.
func DefaultStatic() Static {
	return Static{Price: derive.DefaultHbarPriceUSD}
}

// CoinGecko fetches the live price from the CoinGecko simple-price
// endpoint, falling back to the reference price on any failure.
type CoinGecko struct {
	CoinID string
	client *http.Client
}

// NewCoinGecko builds a live source; coinID defaults to hedera-hashgraph.
func NewCoinGecko(coinID string) *CoinGecko {
	if coinID == "" {
		coinID = "hedera-hashgraph"
	}
	return &CoinGecko{
		CoinID: coinID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *CoinGecko) HbarPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", CoinGeckoBaseURL, c.CoinID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return derive.DefaultHbarPriceUSD, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return derive.DefaultHbarPriceUSD, err
	}
	defer func() { _ = resp.Body.Close() }()

	var result map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return derive.DefaultHbarPriceUSD, err
	}

	usd, ok := result[c.CoinID]["usd"]
	if !ok || usd <= 0 {
		return derive.DefaultHbarPriceUSD, fmt.Errorf("no usd price for %s", c.CoinID)
	}
	return decimal.NewFromFloat(usd), nil
}
