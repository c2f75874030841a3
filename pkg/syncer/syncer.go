// Package syncer owns the authoritative session state and decides when to
// fetch, re-fetch and derive it from the backend. All mutation happens
// here; consumers read snapshots and invoke operations.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/HederaPayBot/hbarpay/pkg/auth"
	"github.com/HederaPayBot/hbarpay/pkg/gateway"
	"github.com/HederaPayBot/hbarpay/pkg/logging"
	"github.com/HederaPayBot/hbarpay/pkg/models"
	"github.com/HederaPayBot/hbarpay/pkg/pricing"
)

// Phase is the session state machine position.
type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseChecking        Phase = "checking"
	PhaseUnregistered    Phase = "unregistered"
	PhaseRegistered      Phase = "registered"
)

// Gateway is the backend surface the syncer drives. *gateway.Client
// satisfies it; tests substitute a mock.
type Gateway interface {
	CheckUserExists(ctx context.Context, handle string) (bool, error)
	RegisterUser(ctx context.Context, handle string) (*gateway.ProfileUser, error)
	GetProfile(ctx context.Context, handle string) (*gateway.ProfileUser, error)
	GetLinkStatus(ctx context.Context, handle string) (*gateway.LinkStatus, error)
	LinkAccount(ctx context.Context, handle, accountID, privateKey, networkType, keyType string) (string, error)
	GetHbarBalance(ctx context.Context, handle, network string) (*gateway.HbarBalance, error)
	GetTokens(ctx context.Context, handle, network string, q gateway.TokensQuery) (*gateway.TokensPage, error)
	GetTransactions(ctx context.Context, handle string) ([]gateway.TransactionRecord, error)
	CreatePayment(ctx context.Context, sender, recipient, amount, assetType string) (*gateway.PaymentResult, error)
	SendCommand(ctx context.Context, text, handle string) (*gateway.CommandReply, error)
}

// Options configure a Syncer.
type Options struct {
	Network       string
	TokenPageSize int
	PollInterval  time.Duration
	Price         pricing.Source
	MaxHistory    int
}

// Syncer coordinates fetch sequencing keyed off identity transitions and
// guards each refresh category against overlapping requests.
type Syncer struct {
	gw      Gateway
	price   pricing.Source
	network string
	pageSz  int
	poll    time.Duration
	maxHist int
	log     zerolog.Logger

	mu           sync.RWMutex
	phase        Phase
	handle       string
	epoch        uint64
	user         *models.UserState
	transactions []models.Transaction
	history      []models.BalancePoint
	fetch        map[models.Category]models.FetchState
	loadedOnce   map[models.Category]bool
	lastErr      string
	hbarPrice    decimal.Decimal
	subscribers  []Subscriber
	stopChan     chan struct{}
}

// New builds a Syncer in the Unauthenticated phase.
func New(gw Gateway, opts Options) *Syncer {
	if opts.Network == "" {
		opts.Network = "testnet"
	}
	if opts.TokenPageSize <= 0 {
		opts.TokenPageSize = 100
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Price == nil {
		opts.Price = pricing.DefaultStatic()
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 288
	}

	return &Syncer{
		gw:         gw,
		price:      opts.Price,
		network:    opts.Network,
		pageSz:     opts.TokenPageSize,
		poll:       opts.PollInterval,
		maxHist:    opts.MaxHistory,
		log:        logging.NewLogger("syncer"),
		phase:      PhaseUnauthenticated,
		fetch:      newFetchMap(),
		loadedOnce: map[models.Category]bool{},
		hbarPrice:  decimal.Zero,
		stopChan:   make(chan struct{}),
	}
}

func newFetchMap() map[models.Category]models.FetchState {
	m := make(map[models.Category]models.FetchState, len(models.Categories))
	for _, c := range models.Categories {
		m[c] = models.FetchIdle
	}
	return m
}

// Start consumes identity transitions and runs the periodic refresh loop
// until ctx is cancelled or Stop is called.
func (s *Syncer) Start(ctx context.Context, tracker *auth.Tracker) {
	sub := tracker.Subscribe()
	if c := tracker.Current(); c.Status != auth.StatusNotReady {
		s.HandleAuthChange(c)
	}

	go func() {
		defer tracker.Unsubscribe(sub)

		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		for {
			select {
			case change, ok := <-sub:
				if !ok {
					return
				}
				s.HandleAuthChange(change)
			case <-ticker.C:
				s.pollRefresh(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the loop started by Start.
func (s *Syncer) Stop() {
	close(s.stopChan)
}

// HandleAuthChange reacts to one identity transition. Deauthentication is
// a hard reset: state clears synchronously and the session epoch advances
// so late responses from the old session are discarded.
func (s *Syncer) HandleAuthChange(c auth.Change) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch

	if c.Status != auth.StatusAuthenticated {
		s.phase = PhaseUnauthenticated
		s.handle = ""
		s.user = nil
		s.transactions = nil
		s.history = nil
		s.fetch = newFetchMap()
		s.loadedOnce = map[models.Category]bool{}
		s.lastErr = ""
		s.mu.Unlock()

		s.log.Info().Str("status", c.Status.String()).Msg("session cleared")
		s.notify(Event{Type: EventAuthChanged})
		return
	}

	s.phase = PhaseChecking
	s.handle = c.Handle
	s.user = nil
	s.transactions = nil
	s.history = nil
	s.fetch = newFetchMap()
	s.loadedOnce = map[models.Category]bool{}
	s.lastErr = ""
	s.mu.Unlock()

	s.log.Info().Str("handle", c.Handle).Msg("identity authenticated, checking registration")
	s.notify(Event{Type: EventAuthChanged})

	go s.checkExistence(context.Background(), epoch)
}

// checkExistence runs the registration probe for the session. Its failure
// is critical: it surfaces in the error field and holds the session in
// Checking so re-authentication can retry.
func (s *Syncer) checkExistence(ctx context.Context, epoch uint64) {
	handle := s.currentHandle(epoch)
	if handle == "" {
		return
	}

	exists, err := s.gw.CheckUserExists(ctx, handle)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.lastErr = userMessage(err)
		s.mu.Unlock()
		s.log.Error().Err(err).Str("handle", handle).Msg("existence check failed")
		s.notify(Event{Type: EventStatusUpdated})
		return
	}
	if !exists {
		s.phase = PhaseUnregistered
		s.mu.Unlock()
		s.log.Info().Str("handle", handle).Msg("handle not registered")
		s.notify(Event{Type: EventStatusUpdated})
		return
	}
	s.phase = PhaseRegistered
	s.mu.Unlock()

	s.log.Info().Str("handle", handle).Msg("handle registered")
	s.notify(Event{Type: EventStatusUpdated})
	s.fullLoad(ctx, epoch)
}

// fullLoad performs the coordinated profile-then-dependents sequence. The
// profile fetch completes first because display of the dependents needs
// the linked account id; the three dependents run concurrently and a
// failure in one does not block the others.
func (s *Syncer) fullLoad(ctx context.Context, epoch uint64) {
	s.refreshProfile(ctx, epoch)
	s.refreshDependents(ctx, epoch)
}

func (s *Syncer) refreshDependents(ctx context.Context, epoch uint64) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.refreshHbarBalance(ctx, epoch) }()
	go func() { defer wg.Done(); s.refreshTokenBalances(ctx, epoch) }()
	go func() { defer wg.Done(); s.refreshTransactions(ctx, epoch) }()
	wg.Wait()

	go s.refreshPrice(ctx, epoch)
}

// pollRefresh re-runs the dependent categories on the poll tick while a
// registered session is active.
func (s *Syncer) pollRefresh(ctx context.Context) {
	s.mu.RLock()
	phase, epoch := s.phase, s.epoch
	s.mu.RUnlock()

	if phase != PhaseRegistered {
		return
	}
	s.refreshDependents(ctx, epoch)
}

// currentHandle returns the session handle if epoch is still current.
func (s *Syncer) currentHandle(epoch uint64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.epoch != epoch {
		return ""
	}
	return s.handle
}

// userMessage unwraps gateway errors into the string stored for display.
func userMessage(err error) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var connErr *gateway.ConnError
	if errors.As(err, &connErr) {
		return "could not reach the payment service"
	}
	return err.Error()
}

// notify sends an event to every subscriber. The read lock is held across
// the sends so Unsubscribe cannot close a channel mid-broadcast.
func (s *Syncer) notify(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber is slow; it can recover from Snapshot.
		}
	}
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (s *Syncer) Subscribe() Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(Subscriber, 100)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (s *Syncer) Unsubscribe(ch Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}
