// Package gateway holds the typed HTTP calls against the payment backend.
// It performs no retries and keeps no state; retry and sequencing policy
// belongs to the syncer.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/HederaPayBot/hbarpay/pkg/logging"
)

// RequestTimeout bounds every backend round-trip so a stalled request can
// never leave a refresh category in-flight forever.
var RequestTimeout = 10 * time.Second

type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
	log        zerolog.Logger
}

// NewClient builds a gateway against the given base URL, e.g.
// "http://localhost:3000".
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: RequestTimeout},
		baseURL:    baseURL,
		log:        logging.NewLogger("gateway"),
	}
}

// SetAuthToken attaches a bearer token to every subsequent request.
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// envelope is the common wrapper every backend response carries. Unknown or
// missing success indicators fail closed as logical errors.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) ok() bool { return e.Success != nil && *e.Success }

func (e envelope) reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return "request failed"
}

// do runs one request and decodes the response into out. A transport-level
// failure becomes a *ConnError; a non-2xx status, an unparseable body or a
// missing/false success field becomes an *APIError.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Str("op", op).Err(err).Msg("request failed to reach backend")
		return &ConnError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnError{Op: op, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		// Unexpected shape: fail closed as a logical error.
		c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Msg("unparseable response body")
		return &APIError{Status: resp.StatusCode, Message: "unexpected response from server"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.ok() {
		c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Str("message", env.reason()).Msg("backend rejected request")
		return &APIError{Status: resp.StatusCode, Message: env.reason()}
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return &APIError{Status: resp.StatusCode, Message: "unexpected response from server"}
		}
	}

	c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Msg("ok")
	return nil
}

// CheckUserExists probes the profile endpoint. A not-found answer is a
// regular false result, not an error; only connectivity and other logical
// failures propagate.
func (c *Client) CheckUserExists(ctx context.Context, handle string) (bool, error) {
	var out struct {
		User *ProfileUser `json:"user"`
	}
	err := c.do(ctx, "checkUserExists", http.MethodGet, "/api/users/profile/"+url.PathEscape(handle), nil, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return false, nil
		}
		return false, err
	}
	return out.User != nil, nil
}

// RegisterUser creates a backend profile for the handle.
func (c *Client) RegisterUser(ctx context.Context, handle string) (*ProfileUser, error) {
	in := map[string]string{"twitterUsername": handle}
	var out struct {
		User *ProfileUser `json:"user"`
	}
	if err := c.do(ctx, "registerUser", http.MethodPost, "/api/users/register", in, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return &ProfileUser{TwitterUsername: handle}, nil
	}
	return out.User, nil
}

// GetProfile fetches the full profile for a handle.
func (c *Client) GetProfile(ctx context.Context, handle string) (*ProfileUser, error) {
	var out struct {
		User *ProfileUser `json:"user"`
	}
	if err := c.do(ctx, "getProfile", http.MethodGet, "/api/users/profile/"+url.PathEscape(handle), nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &APIError{Status: http.StatusOK, Message: "profile missing from response"}
	}
	return out.User, nil
}

// GetLinkStatus asks whether the handle has a linked ledger account.
func (c *Client) GetLinkStatus(ctx context.Context, handle string) (*LinkStatus, error) {
	var out LinkStatus
	if err := c.do(ctx, "getLinkStatus", http.MethodGet, "/api/users/link-status/"+url.PathEscape(handle), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LinkAccount records a ledger account against the handle's profile.
func (c *Client) LinkAccount(ctx context.Context, handle, accountID, privateKey, networkType, keyType string) (string, error) {
	in := map[string]string{
		"accountId":   accountID,
		"privateKey":  privateKey,
		"networkType": networkType,
		"keyType":     keyType,
	}
	var out envelope
	if err := c.do(ctx, "linkAccount", http.MethodPut, "/api/users/"+url.PathEscape(handle)+"/link-hedera", in, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// GetHbarBalance fetches the ledger balance for a handle on one network.
func (c *Client) GetHbarBalance(ctx context.Context, handle, network string) (*HbarBalance, error) {
	path := "/api/users/hbar-balance/" + url.PathEscape(handle) + "?network=" + url.QueryEscape(network)
	var out HbarBalance
	if err := c.do(ctx, "getHbarBalance", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTokens fetches one page of the handle's token holdings.
func (c *Client) GetTokens(ctx context.Context, handle, network string, q TokensQuery) (*TokensPage, error) {
	v := url.Values{}
	v.Set("network", network)
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.StartingToken != "" {
		v.Set("startingToken", q.StartingToken)
	}
	path := "/api/users/tokens/" + url.PathEscape(handle) + "?" + v.Encode()

	var out TokensPage
	if err := c.do(ctx, "getTokens", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransactions fetches the full transaction history for a handle.
func (c *Client) GetTransactions(ctx context.Context, handle string) ([]TransactionRecord, error) {
	var out struct {
		Transactions []TransactionRecord `json:"transactions"`
	}
	if err := c.do(ctx, "getTransactions", http.MethodGet, "/api/users/transactions/"+url.PathEscape(handle), nil, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// CreatePayment submits a payment from one handle to another.
func (c *Client) CreatePayment(ctx context.Context, sender, recipient, amount, assetType string) (*PaymentResult, error) {
	in := map[string]string{
		"senderUsername":    sender,
		"recipientUsername": recipient,
		"amount":            amount,
		"assetType":         assetType,
	}
	var out PaymentResult
	if err := c.do(ctx, "createPayment", http.MethodPost, "/api/payments", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendCommand relays a free-text command to the assistant on behalf of the
// handle.
func (c *Client) SendCommand(ctx context.Context, text, handle string) (*CommandReply, error) {
	in := map[string]string{"text": text, "twitterUsername": handle}
	var out CommandReply
	if err := c.do(ctx, "sendCommand", http.MethodPost, "/api/eliza/message", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health probes the backend root; used by the config test mode.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users/profile/health-probe", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnError{Op: "health", Err: err}
	}
	_ = resp.Body.Close()
	return nil
}
