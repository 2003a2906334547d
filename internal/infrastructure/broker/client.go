// Package broker is the TradeStation brokerage adapter: REST order entry,
// OAuth token refresh, and the line-delimited order/quote stream readers that
// feed the accounting engine.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	APIBaseURL    string
	SigninBaseURL string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	RefreshToken  string
	StreamRetries int
	StreamBackoff time.Duration
}

type Client struct {
	opts   Options
	logger *zap.Logger

	// httpClient serves request/response calls; streamClient carries no
	// timeout because stream reads are long-lived by design.
	httpClient   *http.Client
	streamClient *http.Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	accountID    string
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.StreamRetries == 0 {
		opts.StreamRetries = 3
	}
	if opts.StreamBackoff == 0 {
		opts.StreamBackoff = 2 * time.Second
	}
	return &Client{
		opts:         opts,
		logger:       logger,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		streamClient: &http.Client{},
		refreshToken: opts.RefreshToken,
	}
}

// UseAccount pins the account all order entry goes through.
func (c *Client) UseAccount(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountID = accountID
}

func (c *Client) account() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountID
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return "Bearer " + c.accessToken
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshAccessToken trades the refresh token for a fresh access token.
func (c *Client) RefreshAccessToken(ctx context.Context) error {
	c.mu.RLock()
	refresh := c.refreshToken
	c.mu.RUnlock()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.opts.ClientID},
		"client_secret": {c.opts.ClientSecret},
		"refresh_token": {refresh},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.opts.SigninBaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("refresh token: status %d: %s", resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("refresh token: decode: %w", err)
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	c.mu.Unlock()
	return nil
}

// RunTokenRefresher refreshes the access token on an interval until the
// context ends. A failed refresh is logged and retried on the next tick.
func (c *Client) RunTokenRefresher(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.RefreshAccessToken(ctx); err != nil {
				c.logger.Warn("token refresh failed", zap.Error(err))
				continue
			}
			c.logger.Info("access token refreshed")
		}
	}
}

type Account struct {
	AccountID   string `json:"AccountID"`
	AccountType string `json:"AccountType"`
	Status      string `json:"Status"`
}

type accountsResponse struct {
	Accounts []Account `json:"Accounts"`
}

// GetAccounts returns the active accounts keyed by account type.
func (c *Client) GetAccounts(ctx context.Context) (map[string]Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.opts.APIBaseURL+"/brokerage/accounts", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.bearer())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get accounts: status %d: %s", resp.StatusCode, body)
	}

	var parsed accountsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("get accounts: decode: %w", err)
	}

	accounts := make(map[string]Account)
	for _, account := range parsed.Accounts {
		if account.Status == "Active" {
			accounts[account.AccountType] = account
		}
	}
	return accounts, nil
}
