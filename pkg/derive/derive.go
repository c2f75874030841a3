// Package derive holds the pure calculators that turn raw backend payloads
// into client-facing view models. Every function is total: malformed input
// degrades to a zero or blank result instead of failing.
package derive

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HederaPayBot/hbarpay/pkg/gateway"
	"github.com/HederaPayBot/hbarpay/pkg/models"
	"github.com/HederaPayBot/hbarpay/pkg/utils"
)

// DefaultHbarPriceUSD is the reference price used when no live feed is
// available. An approximation for display, not a financial guarantee.
var DefaultHbarPriceUSD = decimal.NewFromFloat(0.068)

// PrimaryAccount picks the account flagged primary, falling back to the
// first one listed.
func PrimaryAccount(accounts []gateway.HederaAccount) *gateway.HederaAccount {
	for i := range accounts {
		if accounts[i].IsPrimary {
			return &accounts[i]
		}
	}
	if len(accounts) > 0 {
		return &accounts[0]
	}
	return nil
}

// MapProfileToUserState builds the session UserState from a profile
// payload. Registration time falls back to now when the backend omits it.
func MapProfileToUserState(u *gateway.ProfileUser) *models.UserState {
	if u == nil {
		return nil
	}

	state := &models.UserState{
		TwitterUsername: u.TwitterUsername,
		RegisteredAt:    parseTimestamp(u.RegisteredAt),
	}
	if acc := PrimaryAccount(u.HederaAccounts); acc != nil {
		state.HederaAccountID = acc.AccountID
		state.KeyType = acc.KeyType
		state.NetworkType = acc.NetworkType
	}
	return state
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// MapTokens converts a token page into the session's token balance list.
// The list replaces the previous one wholesale; last full fetch wins.
func MapTokens(records []gateway.TokenRecord) []models.TokenBalance {
	out := make([]models.TokenBalance, 0, len(records))
	for _, r := range records {
		out = append(out, models.TokenBalance{
			TokenID:   r.TokenID,
			Name:      r.Name,
			Symbol:    r.Symbol,
			Balance:   r.Balance,
			TokenType: r.TokenType,
			Decimals:  r.Decimals,
		})
	}
	return out
}

// MapTransactions converts history rows, normalizing status casing and
// filling missing explorer links from the transaction id.
func MapTransactions(records []gateway.TransactionRecord, network string) []models.Transaction {
	out := make([]models.Transaction, 0, len(records))
	for _, r := range records {
		tx := models.Transaction{
			ID:          r.TransactionID,
			Type:        r.Type,
			Amount:      r.Amount,
			TokenID:     r.TokenID,
			Timestamp:   r.Timestamp,
			Sender:      r.SenderID,
			Recipient:   r.RecipientID,
			Status:      models.NormalizeTxStatus(r.Status),
			Memo:        r.Memo,
			ExplorerURL: r.ExplorerURL,
		}
		if tx.ExplorerURL == "" && tx.ID != "" {
			tx.ExplorerURL = HashscanTransactionURL(tx.ID, network)
		}
		out = append(out, tx)
	}
	return out
}

// FormatHbarBalance renders a raw decimal string with thousands separators
// and between two and five fraction digits. Malformed input renders as
// "0.00".
func FormatHbarBalance(raw string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		d = decimal.Zero
	}

	s := d.Round(5).String()
	intPart, fracPart, _ := strings.Cut(s, ".")
	for len(fracPart) < 2 {
		fracPart += "0"
	}
	return utils.AddCommas(intPart + "." + fracPart)
}

// EstimateUSDValue multiplies a raw balance by a price. A nil price means
// use the static reference price. Malformed balances estimate to zero.
func EstimateUSDValue(raw string, price *decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	p := DefaultHbarPriceUSD
	if price != nil {
		p = *price
	}
	return d.Mul(p).Round(2)
}

// FormatUSD renders an estimate as "$1,234.56".
func FormatUSD(v decimal.Decimal) string {
	return "$" + utils.AddCommas(v.StringFixed(2))
}

// HashscanAccountURL builds the explorer link for an account id.
func HashscanAccountURL(accountID, network string) string {
	return fmt.Sprintf("https://hashscan.io/%s/account/%s", normalizeNetwork(network), accountID)
}

// HashscanTransactionURL builds the explorer link for a transaction id.
func HashscanTransactionURL(txID, network string) string {
	return fmt.Sprintf("https://hashscan.io/%s/transaction/%s", normalizeNetwork(network), txID)
}

func normalizeNetwork(network string) string {
	n := strings.ToLower(strings.TrimSpace(network))
	if n != "mainnet" && n != "previewnet" {
		n = "testnet"
	}
	return n
}
