package syncer

import (
	"github.com/shopspring/decimal"

	"github.com/HederaPayBot/hbarpay/pkg/derive"
	"github.com/HederaPayBot/hbarpay/pkg/models"
)

// Snapshot is the read-only view handed to consumers. Every field is a
// copy; mutating it has no effect on the session.
type Snapshot struct {
	Phase        Phase                      `json:"phase"`
	Handle       string                     `json:"handle,omitempty"`
	User         *models.UserState          `json:"user,omitempty"`
	Transactions []models.Transaction       `json:"transactions,omitempty"`
	History      []models.BalancePoint      `json:"history,omitempty"`
	Fetch        map[models.Category]string `json:"fetch"`
	LastError    string                     `json:"lastError,omitempty"`
	HbarPriceUSD decimal.Decimal            `json:"hbarPriceUsd"`

	IsRegistered     bool `json:"isRegistered"`
	IsLinked         bool `json:"isLinked"`
	IsLoading        bool `json:"isLoading"`
	IsBalanceLoading bool `json:"isBalanceLoading"`
}

// Snapshot captures the current session state and its derived flags. The
// flags are recomputed here on every call, never stored.
func (s *Syncer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Phase:        s.phase,
		Handle:       s.handle,
		LastError:    s.lastErr,
		HbarPriceUSD: s.hbarPrice,
		Fetch:        make(map[models.Category]string, len(s.fetch)),
		IsRegistered: s.phase == PhaseRegistered,
		IsLinked:     s.user.IsLinked(),
	}

	for cat, st := range s.fetch {
		snap.Fetch[cat] = st.String()
		if st == models.FetchInFlight {
			if !s.loadedOnce[cat] {
				snap.IsLoading = true
			}
			if cat == models.CategoryBalance {
				snap.IsBalanceLoading = true
			}
		}
	}

	if s.user != nil {
		u := *s.user
		u.Tokens = append([]models.TokenBalance(nil), s.user.Tokens...)
		snap.User = &u
	}
	snap.Transactions = append([]models.Transaction(nil), s.transactions...)
	snap.History = append([]models.BalancePoint(nil), s.history...)
	return snap
}

// FormattedHbarBalance renders the current balance for display.
func (s *Syncer) FormattedHbarBalance() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil || s.user.HbarBalance == "" {
		return derive.FormatHbarBalance("0")
	}
	return derive.FormatHbarBalance(s.user.HbarBalance)
}

// EstimatedHbarUSD returns the display USD estimate of the balance.
func (s *Syncer) EstimatedHbarUSD() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw := ""
	if s.user != nil {
		raw = s.user.HbarBalance
	}
	if s.hbarPrice.IsPositive() {
		p := s.hbarPrice
		return derive.EstimateUSDValue(raw, &p)
	}
	return derive.EstimateUSDValue(raw, nil)
}

// HashscanAccountURL returns the explorer link for the linked account, or
// "" when no account is linked.
func (s *Syncer) HashscanAccountURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.user.IsLinked() {
		return ""
	}
	network := s.user.NetworkType
	if network == "" {
		network = s.network
	}
	return derive.HashscanAccountURL(s.user.HederaAccountID, network)
}
