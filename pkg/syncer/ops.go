package syncer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/HederaPayBot/hbarpay/pkg/gateway"
)

// ValidationError is a client-side rejection: the request never reached
// the gateway.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var accountIDPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// RegisterUser registers the session handle with the backend. On success
// the session becomes Registered and the full profile load runs.
func (s *Syncer) RegisterUser(ctx context.Context) error {
	s.mu.RLock()
	handle, epoch, phase := s.handle, s.epoch, s.phase
	s.mu.RUnlock()

	if handle == "" {
		return &ValidationError{Field: "handle", Reason: "no authenticated identity"}
	}
	if phase == PhaseRegistered {
		return nil
	}

	if _, err := s.gw.RegisterUser(ctx, handle); err != nil {
		s.log.Error().Err(err).Str("handle", handle).Msg("registration failed")
		s.setError(epoch, userMessage(err))
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	s.phase = PhaseRegistered
	s.lastErr = ""
	s.mu.Unlock()

	s.log.Info().Str("handle", handle).Msg("registered")
	s.notify(Event{Type: EventStatusUpdated})

	s.fullLoad(ctx, epoch)
	return nil
}

// LinkHederaAccount records a ledger account on the profile, then
// re-fetches the profile for the canonical account id followed by balance
// and tokens.
func (s *Syncer) LinkHederaAccount(ctx context.Context, accountID, privateKey, networkType, keyType string) error {
	accountID = strings.TrimSpace(accountID)
	if !accountIDPattern.MatchString(accountID) {
		return &ValidationError{Field: "accountId", Reason: "expected shard.realm.num format, e.g. 0.0.12345"}
	}
	if strings.TrimSpace(privateKey) == "" {
		return &ValidationError{Field: "privateKey", Reason: "must not be empty"}
	}
	if networkType == "" {
		networkType = s.network
	}
	if keyType == "" {
		keyType = "ED25519"
	}

	s.mu.RLock()
	handle, epoch := s.handle, s.epoch
	s.mu.RUnlock()
	if handle == "" {
		return &ValidationError{Field: "handle", Reason: "no authenticated identity"}
	}

	if _, err := s.gw.LinkAccount(ctx, handle, accountID, privateKey, networkType, keyType); err != nil {
		s.log.Error().Err(err).Str("handle", handle).Msg("account link failed")
		s.setError(epoch, userMessage(err))
		return err
	}

	s.log.Info().Str("handle", handle).Str("account", accountID).Msg("account linked")

	// Profile first for the canonical linked id, then the balances that
	// depend on it.
	s.refreshProfile(ctx, epoch)
	s.refreshHbarBalance(ctx, epoch)
	s.refreshTokenBalances(ctx, epoch)
	return nil
}

// CreatePayment validates and submits a payment, then refreshes balance
// and history so the sender sees the effect.
func (s *Syncer) CreatePayment(ctx context.Context, recipient, amount, assetType string) (*gateway.PaymentResult, error) {
	recipient = strings.TrimPrefix(strings.TrimSpace(recipient), "@")
	if recipient == "" {
		return nil, &ValidationError{Field: "recipient", Reason: "must not be empty"}
	}
	amt, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, &ValidationError{Field: "amount", Reason: "must be a number"}
	}
	if !amt.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if assetType == "" {
		assetType = "HBAR"
	}

	s.mu.RLock()
	handle, epoch := s.handle, s.epoch
	s.mu.RUnlock()
	if handle == "" {
		return nil, &ValidationError{Field: "handle", Reason: "no authenticated identity"}
	}

	result, err := s.gw.CreatePayment(ctx, handle, recipient, amt.String(), assetType)
	if err != nil {
		s.log.Error().Err(err).Str("recipient", recipient).Msg("payment failed")
		return nil, err
	}

	s.log.Info().Str("recipient", recipient).Str("amount", amt.String()).Str("tx", result.TransactionID).Msg("payment submitted")

	go func() {
		s.refreshHbarBalance(context.Background(), epoch)
		s.refreshTransactions(context.Background(), epoch)
	}()
	return result, nil
}

// SendCommand relays free text to the assistant and returns its reply.
func (s *Syncer) SendCommand(ctx context.Context, text string) (*gateway.CommandReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	s.mu.RLock()
	handle := s.handle
	s.mu.RUnlock()
	if handle == "" {
		return nil, &ValidationError{Field: "handle", Reason: "no authenticated identity"}
	}

	return s.gw.SendCommand(ctx, text, handle)
}
