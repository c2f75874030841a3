package syncer

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HederaPayBot/hbarpay/pkg/derive"
	"github.com/HederaPayBot/hbarpay/pkg/gateway"
	"github.com/HederaPayBot/hbarpay/pkg/models"
)

// RefreshProfile re-fetches the profile category. A call while the
// category is already in flight is a no-op.
func (s *Syncer) RefreshProfile(ctx context.Context) {
	s.refreshProfile(ctx, s.currentEpoch())
}

// RefreshHbarBalance re-fetches the ledger balance category.
func (s *Syncer) RefreshHbarBalance(ctx context.Context) {
	s.refreshHbarBalance(ctx, s.currentEpoch())
}

// RefreshTokenBalances re-fetches the token balance category.
func (s *Syncer) RefreshTokenBalances(ctx context.Context) {
	s.refreshTokenBalances(ctx, s.currentEpoch())
}

// RefreshTransactions re-fetches the transaction history category.
func (s *Syncer) RefreshTransactions(ctx context.Context) {
	s.refreshTransactions(ctx, s.currentEpoch())
}

func (s *Syncer) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// beginFetch claims a category for one request. It returns the session
// handle, or ok=false when the category is already in flight or the
// session is gone. The claim is released by endFetch in every path.
func (s *Syncer) beginFetch(cat models.Category, epoch uint64) (handle string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.handle == "" {
		return "", false
	}
	if s.fetch[cat] == models.FetchInFlight {
		return "", false
	}
	s.fetch[cat] = models.FetchInFlight
	return s.handle, true
}

// endFetch releases a category claim. It leaves newer sessions alone: if
// the epoch advanced mid-flight the reset already reinitialized the flags.
func (s *Syncer) endFetch(cat models.Category, epoch uint64, fetchErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	if fetchErr != nil {
		s.fetch[cat] = models.FetchError
	} else {
		s.fetch[cat] = models.FetchIdle
	}
	s.loadedOnce[cat] = true
}

func (s *Syncer) refreshProfile(ctx context.Context, epoch uint64) {
	handle, ok := s.beginFetch(models.CategoryProfile, epoch)
	if !ok {
		return
	}
	var err error
	defer func() { s.endFetch(models.CategoryProfile, epoch, err) }()

	profile, err := s.gw.GetProfile(ctx, handle)
	if err != nil {
		s.log.Warn().Err(err).Str("handle", handle).Msg("profile refresh failed")
		// Only the initial load is critical; later failures keep the last
		// known good profile.
		s.mu.RLock()
		initial := s.user == nil
		s.mu.RUnlock()
		if initial {
			s.setError(epoch, userMessage(err))
		}
		return
	}

	next := derive.MapProfileToUserState(profile)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	// Profile data never clobbers balances fetched by other categories.
	if s.user != nil {
		next.HbarBalance = s.user.HbarBalance
		next.Tokens = s.user.Tokens
	}
	s.user = next
	s.lastErr = ""
	s.mu.Unlock()

	s.notify(Event{Type: EventProfileUpdated})
}

func (s *Syncer) refreshHbarBalance(ctx context.Context, epoch uint64) {
	handle, ok := s.beginFetch(models.CategoryBalance, epoch)
	if !ok {
		return
	}
	var err error
	defer func() { s.endFetch(models.CategoryBalance, epoch, err) }()

	bal, err := s.gw.GetHbarBalance(ctx, handle, s.network)
	if err != nil {
		// Non-critical: keep last known good balance.
		s.log.Warn().Err(err).Str("handle", handle).Msg("balance refresh failed")
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if s.user == nil {
		s.user = &models.UserState{TwitterUsername: handle, RegisteredAt: time.Now().UTC()}
	}
	s.user.HbarBalance = bal.HbarBalance
	if s.user.HederaAccountID == "" {
		s.user.HederaAccountID = bal.AccountID
	}
	s.appendHistoryLocked(bal.HbarBalance)
	s.mu.Unlock()

	s.notify(Event{Type: EventBalanceUpdated})
}

// appendHistoryLocked records a balance observation for the history graph.
// Caller holds the write lock.
func (s *Syncer) appendHistoryLocked(raw string) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return
	}
	f, _ := d.Float64()
	s.history = append(s.history, models.BalancePoint{Timestamp: time.Now().UTC(), Value: f})
	if len(s.history) > s.maxHist {
		s.history = s.history[len(s.history)-s.maxHist:]
	}
}

func (s *Syncer) refreshTokenBalances(ctx context.Context, epoch uint64) {
	handle, ok := s.beginFetch(models.CategoryTokens, epoch)
	if !ok {
		return
	}
	var err error
	defer func() { s.endFetch(models.CategoryTokens, epoch, err) }()

	page, err := s.gw.GetTokens(ctx, handle, s.network, gateway.TokensQuery{Limit: s.pageSz})
	if err != nil {
		s.log.Warn().Err(err).Str("handle", handle).Msg("token refresh failed")
		return
	}

	tokens := derive.MapTokens(page.Tokens)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if s.user == nil {
		s.user = &models.UserState{TwitterUsername: handle, RegisteredAt: time.Now().UTC()}
	}
	// Wholesale replacement: last full fetch wins.
	s.user.Tokens = tokens
	s.mu.Unlock()

	s.notify(Event{Type: EventTokensUpdated})
}

func (s *Syncer) refreshTransactions(ctx context.Context, epoch uint64) {
	handle, ok := s.beginFetch(models.CategoryTransactions, epoch)
	if !ok {
		return
	}
	var err error
	defer func() { s.endFetch(models.CategoryTransactions, epoch, err) }()

	records, err := s.gw.GetTransactions(ctx, handle)
	if err != nil {
		s.log.Warn().Err(err).Str("handle", handle).Msg("transaction refresh failed")
		return
	}

	txs := derive.MapTransactions(records, s.network)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.transactions = txs
	s.mu.Unlock()

	s.notify(Event{Type: EventTransactionsUpdated})
}

func (s *Syncer) refreshPrice(ctx context.Context, epoch uint64) {
	price, err := s.price.HbarPriceUSD(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("price fetch failed, keeping previous")
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.hbarPrice = price
	s.mu.Unlock()

	s.notify(Event{Type: EventPriceUpdated})
}

// setError stores a user-visible error if the session is still current.
func (s *Syncer) setError(epoch uint64, msg string) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.lastErr = msg
	s.mu.Unlock()
	s.notify(Event{Type: EventStatusUpdated})
}
