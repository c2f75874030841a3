package models

import (
	"strings"
	"time"
)

// TokenBalance holds one fungible asset position from the token refresh.
type TokenBalance struct {
	TokenID   string `json:"tokenId"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Balance   string `json:"balance"`
	TokenType string `json:"tokenType"`
	Decimals  int    `json:"decimals"`
}

// Transaction is an immutable historical record. The client never mutates
// these after creation; the collection is replaced wholesale on refresh.
type Transaction struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	TokenID     string `json:"tokenId,omitempty"`
	Timestamp   string `json:"timestamp"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Status      string `json:"status"`
	Memo        string `json:"memo,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

// Transaction statuses, normalized to lower case on input.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// NormalizeTxStatus lowercases a backend status, defaulting unknown or
// empty values to pending.
func NormalizeTxStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case TxStatusCompleted:
		return TxStatusCompleted
	case TxStatusFailed:
		return TxStatusFailed
	default:
		return TxStatusPending
	}
}

// UserState is the authoritative record for the current session. It is
// mutated only by the syncer; consumers read copies.
type UserState struct {
	TwitterUsername string         `json:"twitterUsername"`
	HederaAccountID string         `json:"hederaAccountId,omitempty"`
	KeyType         string         `json:"keyType,omitempty"`
	NetworkType     string         `json:"networkType,omitempty"`
	HbarBalance     string         `json:"hbarBalance,omitempty"`
	Tokens          []TokenBalance `json:"tokens,omitempty"`
	RegisteredAt    time.Time      `json:"registeredAt"`
}

// IsLinked reports whether the profile carries a ledger account id.
func (u *UserState) IsLinked() bool {
	return u != nil && u.HederaAccountID != ""
}

// Category is the granularity at which refresh and in-flight tracking is
// performed.
type Category string

const (
	CategoryProfile      Category = "profile"
	CategoryBalance      Category = "balance"
	CategoryTokens       Category = "tokens"
	CategoryTransactions Category = "transactions"
)

// Categories lists every refresh category.
var Categories = []Category{CategoryProfile, CategoryBalance, CategoryTokens, CategoryTransactions}

// FetchState tracks a category's request lifecycle.
type FetchState int

const (
	FetchIdle FetchState = iota
	FetchInFlight
	FetchError
)

func (s FetchState) String() string {
	switch s {
	case FetchInFlight:
		return "in_flight"
	case FetchError:
		return "error"
	default:
		return "idle"
	}
}

// BalancePoint is one timestamped balance observation, kept for the
// history graph.
type BalancePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
