package syncer

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventAuthChanged         EventType = "auth_changed"
	EventProfileUpdated      EventType = "profile_updated"
	EventBalanceUpdated      EventType = "balance_updated"
	EventTokensUpdated       EventType = "tokens_updated"
	EventTransactionsUpdated EventType = "transactions_updated"
	EventPriceUpdated        EventType = "price_updated"
	EventStatusUpdated       EventType = "status_updated"
)

// Event represents a state change notification.
type Event struct {
	Type EventType
	Data interface{}
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
