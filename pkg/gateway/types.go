package gateway

import "fmt"

// APIError is a logical failure: the backend answered, and the answer says
// no. Message carries the backend's human-readable explanation when one was
// present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (status %d)", e.Status)
}

// NotFound reports whether the failure was a missing resource.
func (e *APIError) NotFound() bool { return e.Status == 404 }

// ConnError is a connectivity failure: no usable response reached the
// client. Callers treat it as transient and keep existing state.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string { return fmt.Sprintf("%s: connection failed: %v", e.Op, e.Err) }
func (e *ConnError) Unwrap() error { return e.Err }

// HederaAccount is one ledger account attached to a backend profile.
type HederaAccount struct {
	AccountID   string `json:"accountId"`
	IsPrimary   bool   `json:"isPrimary"`
	KeyType     string `json:"keyType,omitempty"`
	NetworkType string `json:"networkType,omitempty"`
}

// ProfileUser is the backend's profile record for a handle.
type ProfileUser struct {
	ID              int64           `json:"id"`
	TwitterUsername string          `json:"twitterUsername"`
	RegisteredAt    string          `json:"registeredAt,omitempty"`
	HederaAccounts  []HederaAccount `json:"hederaAccounts,omitempty"`
}

// LinkStatus is the answer to a link-status lookup.
type LinkStatus struct {
	Linked        bool           `json:"linked"`
	HederaAccount *HederaAccount `json:"hederaAccount,omitempty"`
}

// HbarBalance is the ledger balance for a handle on one network.
type HbarBalance struct {
	AccountID   string `json:"accountId"`
	HbarBalance string `json:"hbarBalance"`
	Network     string `json:"network"`
}

// TokenRecord is one token row as returned by the tokens endpoint.
type TokenRecord struct {
	TokenID   string `json:"tokenId"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Balance   string `json:"balance"`
	TokenType string `json:"tokenType"`
	Decimals  int    `json:"decimals"`
}

// TokensPage is one page of the handle's token holdings.
type TokensPage struct {
	Tokens      []TokenRecord `json:"tokens"`
	TotalTokens int           `json:"totalTokens"`
	AccountID   string        `json:"accountId"`
	Network     string        `json:"network"`
}

// TokensQuery carries pagination for a tokens fetch. A zero value asks for
// the backend's default page.
type TokensQuery struct {
	Limit         int
	StartingToken string
}

// TransactionRecord is one history row as returned by the backend.
type TransactionRecord struct {
	TransactionID string `json:"transactionId"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	TokenID       string `json:"tokenId,omitempty"`
	Timestamp     string `json:"timestamp"`
	SenderID      string `json:"senderUsername"`
	RecipientID   string `json:"recipientUsername"`
	Status        string `json:"status"`
	Memo          string `json:"memo,omitempty"`
	ExplorerURL   string `json:"explorerUrl,omitempty"`
}

// PaymentResult is the backend acknowledgement of a payment submission.
type PaymentResult struct {
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

// CommandReply is the assistant's answer to a relayed free-text command.
type CommandReply struct {
	Response string `json:"response"`
	Action   string `json:"action,omitempty"`
	Data     any    `json:"data,omitempty"`
}
