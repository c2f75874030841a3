package syncer

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/HederaPayBot/hbarpay/pkg/auth"
	"github.com/HederaPayBot/hbarpay/pkg/gateway"
	"github.com/HederaPayBot/hbarpay/pkg/models"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CheckUserExists(ctx context.Context, handle string) (bool, error) {
	args := m.Called(ctx, handle)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) RegisterUser(ctx context.Context, handle string) (*gateway.ProfileUser, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ProfileUser), args.Error(1)
}

func (m *MockGateway) GetProfile(ctx context.Context, handle string) (*gateway.ProfileUser, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ProfileUser), args.Error(1)
}

func (m *MockGateway) GetLinkStatus(ctx context.Context, handle string) (*gateway.LinkStatus, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.LinkStatus), args.Error(1)
}

func (m *MockGateway) LinkAccount(ctx context.Context, handle, accountID, privateKey, networkType, keyType string) (string, error) {
	args := m.Called(ctx, handle, accountID, privateKey, networkType, keyType)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) GetHbarBalance(ctx context.Context, handle, network string) (*gateway.HbarBalance, error) {
	args := m.Called(ctx, handle, network)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.HbarBalance), args.Error(1)
}

func (m *MockGateway) GetTokens(ctx context.Context, handle, network string, q gateway.TokensQuery) (*gateway.TokensPage, error) {
	args := m.Called(ctx, handle, network, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TokensPage), args.Error(1)
}

func (m *MockGateway) GetTransactions(ctx context.Context, handle string) ([]gateway.TransactionRecord, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.TransactionRecord), args.Error(1)
}

func (m *MockGateway) CreatePayment(ctx context.Context, sender, recipient, amount, assetType string) (*gateway.PaymentResult, error) {
	args := m.Called(ctx, sender, recipient, amount, assetType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentResult), args.Error(1)
}

func (m *MockGateway) SendCommand(ctx context.Context, text, handle string) (*gateway.CommandReply, error) {
	args := m.Called(ctx, text, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CommandReply), args.Error(1)
}

func aliceProfile() *gateway.ProfileUser {
	return &gateway.ProfileUser{
		ID:              1,
		TwitterUsername: "alice",
		RegisteredAt:    "2025-05-01T10:00:00Z",
		HederaAccounts: []gateway.HederaAccount{
			{AccountID: "0.0.12345", IsPrimary: true, KeyType: "ED25519", NetworkType: "testnet"},
		},
	}
}

func expectFullLoad(mockGW *MockGateway, handle string, profile *gateway.ProfileUser) {
	mockGW.On("GetProfile", mock.Anything, handle).Return(profile, nil)
	mockGW.On("GetHbarBalance", mock.Anything, handle, mock.Anything).
		Return(&gateway.HbarBalance{AccountID: "0.0.12345", HbarBalance: "100.5", Network: "testnet"}, nil)
	mockGW.On("GetTokens", mock.Anything, handle, mock.Anything, mock.Anything).
		Return(&gateway.TokensPage{Tokens: []gateway.TokenRecord{{TokenID: "0.0.777", Symbol: "TST", Balance: "42"}}}, nil)
	mockGW.On("GetTransactions", mock.Anything, handle).
		Return([]gateway.TransactionRecord{{TransactionID: "tx-1", Amount: "5", Status: "COMPLETED"}}, nil)
}

func TestAuthenticatedRegisteredFullLoad(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	expectFullLoad(mockGW, "alice", aliceProfile())

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.IsRegistered && snap.User != nil && snap.User.HbarBalance == "100.5" &&
			len(snap.User.Tokens) == 1 && len(snap.Transactions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, "alice", snap.User.TwitterUsername)
	assert.True(t, snap.IsLinked)
	assert.Equal(t, "0.0.12345", snap.User.HederaAccountID)
	assert.Equal(t, models.TxStatusCompleted, snap.Transactions[0].Status)

	mockGW.AssertNumberOfCalls(t, "GetProfile", 1)
	mockGW.AssertNumberOfCalls(t, "GetHbarBalance", 1)
	mockGW.AssertNumberOfCalls(t, "GetTokens", 1)
	mockGW.AssertNumberOfCalls(t, "GetTransactions", 1)
}

func TestUnregisteredSkipsDependentFetches(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(false, nil)

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})

	assert.Eventually(t, func() bool {
		return s.Snapshot().Phase == PhaseUnregistered
	}, 2*time.Second, 10*time.Millisecond)

	mockGW.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	mockGW.AssertNotCalled(t, "GetHbarBalance", mock.Anything, mock.Anything, mock.Anything)
	mockGW.AssertNotCalled(t, "GetTokens", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockGW.AssertNotCalled(t, "GetTransactions", mock.Anything, mock.Anything)
}

func TestLogoutClearsEverything(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	expectFullLoad(mockGW, "alice", aliceProfile())

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.User != nil && snap.User.HbarBalance == "100.5"
	}, 2*time.Second, 10*time.Millisecond)

	s.HandleAuthChange(auth.Change{Status: auth.StatusUnauthenticated})

	snap := s.Snapshot()
	assert.Equal(t, PhaseUnauthenticated, snap.Phase)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Transactions)
	assert.False(t, snap.IsRegistered)
	assert.False(t, snap.IsLinked)
	assert.False(t, snap.IsLoading)
	for _, st := range snap.Fetch {
		assert.Equal(t, "idle", st)
	}
}

func TestRefreshDeduplication(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	expectFullLoad(mockGW, "alice", aliceProfile())

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})
	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.User != nil && snap.User.HbarBalance == "100.5" &&
			len(snap.User.Tokens) == 1 && len(snap.Transactions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Make further balance calls block so concurrent invocations overlap.
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	slow := new(MockGateway)
	slow.On("GetHbarBalance", mock.Anything, "alice", mock.Anything).
		Run(func(args mock.Arguments) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
		}).
		Return(&gateway.HbarBalance{AccountID: "0.0.12345", HbarBalance: "101", Network: "testnet"}, nil)
	s.gw = slow

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RefreshHbarBalance(context.Background())
		}()
	}

	<-started
	time.Sleep(50 * time.Millisecond) // give the other four a chance to collide
	close(release)
	wg.Wait()

	slow.AssertNumberOfCalls(t, "GetHbarBalance", 1)
	assert.Equal(t, "101", s.Snapshot().User.HbarBalance)
}

func TestFailedBalanceRefreshKeepsLastKnownGood(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	expectFullLoad(mockGW, "alice", aliceProfile())

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})
	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.User != nil && snap.User.HbarBalance == "100.5" &&
			len(snap.User.Tokens) == 1 && len(snap.Transactions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	failing := new(MockGateway)
	failing.On("GetHbarBalance", mock.Anything, "alice", mock.Anything).
		Return(nil, &gateway.ConnError{Op: "getHbarBalance", Err: assert.AnError})
	s.gw = failing

	s.RefreshHbarBalance(context.Background())

	snap := s.Snapshot()
	assert.Equal(t, "100.5", snap.User.HbarBalance)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, "error", snap.Fetch[models.CategoryBalance])
}

func TestFailedProfileDuringInitialLoad(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	mockGW.On("GetProfile", mock.Anything, "alice").
		Return(nil, &gateway.APIError{Status: 500, Message: "profile lookup exploded"})
	mockGW.On("GetHbarBalance", mock.Anything, "alice", mock.Anything).
		Return(nil, &gateway.ConnError{Op: "getHbarBalance", Err: assert.AnError})
	mockGW.On("GetTokens", mock.Anything, "alice", mock.Anything, mock.Anything).
		Return(nil, &gateway.ConnError{Op: "getTokens", Err: assert.AnError})
	mockGW.On("GetTransactions", mock.Anything, "alice").
		Return(nil, &gateway.ConnError{Op: "getTransactions", Err: assert.AnError})

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})

	assert.Eventually(t, func() bool {
		return s.Snapshot().LastError != ""
	}, 2*time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	assert.Nil(t, snap.User)
	assert.Equal(t, "profile lookup exploded", snap.LastError)
}

func TestExistenceCheckFailureIsSurfaced(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").
		Return(false, &gateway.ConnError{Op: "checkUserExists", Err: assert.AnError})

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})

	assert.Eventually(t, func() bool {
		return s.Snapshot().LastError != ""
	}, 2*time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, PhaseChecking, snap.Phase)
	mockGW.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
}

func TestRegisterUserTriggersFullLoad(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(false, nil)
	mockGW.On("RegisterUser", mock.Anything, "alice").Return(aliceProfile(), nil)
	expectFullLoad(mockGW, "alice", aliceProfile())

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})
	assert.Eventually(t, func() bool {
		return s.Snapshot().Phase == PhaseUnregistered
	}, 2*time.Second, 10*time.Millisecond)

	err := s.RegisterUser(context.Background())
	assert.NoError(t, err)

	snap := s.Snapshot()
	assert.True(t, snap.IsRegistered)
	assert.Equal(t, "alice", snap.User.TwitterUsername)
	mockGW.AssertNumberOfCalls(t, "GetProfile", 1)
	mockGW.AssertNumberOfCalls(t, "GetHbarBalance", 1)
	mockGW.AssertNumberOfCalls(t, "GetTokens", 1)
	mockGW.AssertNumberOfCalls(t, "GetTransactions", 1)
}

func TestLinkHederaAccount(t *testing.T) {
	unlinked := &gateway.ProfileUser{ID: 1, TwitterUsername: "alice", RegisteredAt: "2025-05-01T10:00:00Z"}

	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	mockGW.On("GetProfile", mock.Anything, "alice").Return(unlinked, nil).Once()
	mockGW.On("GetHbarBalance", mock.Anything, "alice", mock.Anything).
		Return(&gateway.HbarBalance{HbarBalance: "0", Network: "testnet"}, nil)
	mockGW.On("GetTokens", mock.Anything, "alice", mock.Anything, mock.Anything).
		Return(&gateway.TokensPage{}, nil)
	mockGW.On("GetTransactions", mock.Anything, "alice").
		Return([]gateway.TransactionRecord{}, nil)

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})
	assert.Eventually(t, func() bool {
		return s.Snapshot().IsRegistered
	}, 2*time.Second, 10*time.Millisecond)

	mockGW.On("LinkAccount", mock.Anything, "alice", "0.0.12345", "302e...", "testnet", "ED25519").
		Return("linked", nil)
	mockGW.On("GetProfile", mock.Anything, "alice").Return(aliceProfile(), nil)

	err := s.LinkHederaAccount(context.Background(), "0.0.12345", "302e...", "", "")
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		return s.Snapshot().IsLinked
	}, 2*time.Second, 10*time.Millisecond)

	url := s.HashscanAccountURL()
	assert.Contains(t, url, "0.0.12345")
}

func TestLinkValidation(t *testing.T) {
	s := New(new(MockGateway), Options{})

	err := s.LinkHederaAccount(context.Background(), "not-an-id", "key", "", "")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "accountId", vErr.Field)

	err = s.LinkHederaAccount(context.Background(), "0.0.12345", "", "", "")
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "privateKey", vErr.Field)
}

func TestPaymentValidation(t *testing.T) {
	mockGW := new(MockGateway)
	s := New(mockGW, Options{})

	_, err := s.CreatePayment(context.Background(), "", "5", "HBAR")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = s.CreatePayment(context.Background(), "bob", "five", "HBAR")
	assert.ErrorAs(t, err, &vErr)

	_, err = s.CreatePayment(context.Background(), "bob", "-2", "HBAR")
	assert.ErrorAs(t, err, &vErr)

	mockGW.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStaleResponseIsDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	mockGW.On("GetProfile", mock.Anything, "alice").Return(aliceProfile(), nil)
	mockGW.On("GetHbarBalance", mock.Anything, "alice", mock.Anything).
		Run(func(args mock.Arguments) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
		}).
		Return(&gateway.HbarBalance{AccountID: "0.0.11111", HbarBalance: "999", Network: "testnet"}, nil)
	mockGW.On("GetTokens", mock.Anything, "alice", mock.Anything, mock.Anything).Return(&gateway.TokensPage{}, nil)
	mockGW.On("GetTransactions", mock.Anything, "alice").Return([]gateway.TransactionRecord{}, nil)

	bobProfile := &gateway.ProfileUser{
		ID:              2,
		TwitterUsername: "bob",
		HederaAccounts:  []gateway.HederaAccount{{AccountID: "0.0.22222", IsPrimary: true}},
	}
	mockGW.On("CheckUserExists", mock.Anything, "bob").Return(true, nil)
	mockGW.On("GetProfile", mock.Anything, "bob").Return(bobProfile, nil)
	mockGW.On("GetHbarBalance", mock.Anything, "bob", mock.Anything).
		Return(&gateway.HbarBalance{AccountID: "0.0.22222", HbarBalance: "5", Network: "testnet"}, nil)
	mockGW.On("GetTokens", mock.Anything, "bob", mock.Anything, mock.Anything).Return(&gateway.TokensPage{}, nil)
	mockGW.On("GetTransactions", mock.Anything, "bob").Return([]gateway.TransactionRecord{}, nil)

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})
	<-started // alice's balance request is now in flight

	s.HandleAuthChange(auth.Change{Status: auth.StatusUnauthenticated})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "bob"})

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.User != nil && snap.User.HbarBalance == "5"
	}, 2*time.Second, 10*time.Millisecond)

	close(release) // alice's stale response lands now

	time.Sleep(100 * time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, "bob", snap.User.TwitterUsername)
	assert.Equal(t, "5", snap.User.HbarBalance)
	assert.Equal(t, "0.0.22222", snap.User.HederaAccountID)
}

func TestIsLinkedTracksAccountID(t *testing.T) {
	payloads := []*gateway.ProfileUser{
		{TwitterUsername: "alice"},
		{TwitterUsername: "alice", HederaAccounts: []gateway.HederaAccount{{AccountID: "0.0.1"}}},
		{TwitterUsername: "alice"},
		{TwitterUsername: "alice", HederaAccounts: []gateway.HederaAccount{
			{AccountID: "0.0.2"}, {AccountID: "0.0.3", IsPrimary: true},
		}},
	}

	mockGW := new(MockGateway)
	// Unregistered keeps the initial full load out of the way; RefreshProfile
	// still works once a handle is present.
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(false, nil)
	for _, p := range payloads {
		mockGW.On("GetProfile", mock.Anything, "alice").Return(p, nil).Once()
	}

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})
	assert.Eventually(t, func() bool {
		return s.Snapshot().Phase == PhaseUnregistered
	}, 2*time.Second, 10*time.Millisecond)

	wantIDs := []string{"", "0.0.1", "", "0.0.3"}
	for i := range payloads {
		s.RefreshProfile(context.Background())
		snap := s.Snapshot()
		assert.NotNil(t, snap.User)
		assert.Equal(t, wantIDs[i], snap.User.HederaAccountID)
		assert.Equal(t, snap.User.HederaAccountID != "", snap.IsLinked)
	}
}

func TestFailedProfileRefreshKeepsLastKnownGood(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	expectFullLoad(mockGW, "alice", aliceProfile())

	s := New(mockGW, Options{})
	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})
	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.User != nil && snap.User.HbarBalance == "100.5" &&
			len(snap.User.Tokens) == 1 && len(snap.Transactions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	failing := new(MockGateway)
	failing.On("GetProfile", mock.Anything, "alice").
		Return(nil, &gateway.APIError{Status: 500, Message: "profile lookup exploded"})
	s.gw = failing

	s.RefreshProfile(context.Background())

	snap := s.Snapshot()
	assert.Equal(t, "alice", snap.User.TwitterUsername)
	assert.Equal(t, "0.0.12345", snap.User.HederaAccountID)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, "error", snap.Fetch[models.CategoryProfile])
}

func TestPollLoopStopsOnLogout(t *testing.T) {
	var mu sync.Mutex
	balCalls := 0
	count := func() int { mu.Lock(); defer mu.Unlock(); return balCalls }

	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	mockGW.On("GetProfile", mock.Anything, "alice").Return(aliceProfile(), nil)
	mockGW.On("GetHbarBalance", mock.Anything, "alice", mock.Anything).
		Run(func(mock.Arguments) { mu.Lock(); balCalls++; mu.Unlock() }).
		Return(&gateway.HbarBalance{AccountID: "0.0.12345", HbarBalance: "100.5", Network: "testnet"}, nil)
	mockGW.On("GetTokens", mock.Anything, "alice", mock.Anything, mock.Anything).
		Return(&gateway.TokensPage{}, nil)
	mockGW.On("GetTransactions", mock.Anything, "alice").
		Return([]gateway.TransactionRecord{}, nil)

	s := New(mockGW, Options{PollInterval: 20 * time.Millisecond})
	defer s.Stop()
	tracker := auth.NewTracker()
	s.Start(context.Background(), tracker)
	tracker.SetAuthenticated("alice")

	// At least one full load plus two poll rounds.
	assert.Eventually(t, func() bool { return count() >= 3 }, 2*time.Second, 5*time.Millisecond)

	tracker.SetLoggedOut()
	assert.Eventually(t, func() bool {
		return s.Snapshot().Phase == PhaseUnauthenticated
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond) // drain any poll already past the phase gate
	settled := count()
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, settled, count())
}

func TestUnsubscribeDuringBroadcast(t *testing.T) {
	s := New(new(MockGateway), Options{})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				s.notify(Event{Type: EventStatusUpdated})
			}
		}
	}()

	for i := 0; i < 500; i++ {
		sub := s.Subscribe()
		runtime.Gosched()
		s.Unsubscribe(sub)
	}

	close(done)
	wg.Wait()
}

func TestSubscribeReceivesEvents(t *testing.T) {
	mockGW := new(MockGateway)
	mockGW.On("CheckUserExists", mock.Anything, "alice").Return(true, nil)
	expectFullLoad(mockGW, "alice", aliceProfile())

	s := New(mockGW, Options{})
	sub := s.Subscribe()

	s.HandleAuthChange(auth.Change{Status: auth.StatusAuthenticated, Handle: "alice"})

	seen := map[EventType]bool{}
	timeout := time.After(2 * time.Second)
	for !seen[EventBalanceUpdated] || !seen[EventTokensUpdated] || !seen[EventTransactionsUpdated] {
		select {
		case ev := <-sub:
			seen[ev.Type] = true
		case <-timeout:
			t.Fatalf("timed out waiting for events, saw %v", seen)
		}
	}
	assert.True(t, seen[EventAuthChanged])

	s.Unsubscribe(sub)
}
