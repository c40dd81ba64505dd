package yolink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ExpiryBuffer is subtracted from the server-declared lifetime so a token
// is renewed well before the broker would reject it.
const ExpiryBuffer = 10 * time.Minute

// Token is one OAuth2 grant from the YoLink token endpoint.
type Token struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    time.Duration
	RefreshToken string
	Scope        string

	// IssuedAt is when the exchange completed. Zero means never issued.
	IssuedAt time.Time
}

// Expired reports whether the token must be renewed at now.
// A token that was never issued is always expired.
func (t Token) Expired(now time.Time) bool {
	if t.IssuedAt.IsZero() || t.AccessToken == "" {
		return true
	}
	return now.Sub(t.IssuedAt) > t.ExpiresIn-ExpiryBuffer
}

// TokenManager holds the current YoLink access token and renews it.
//
// The first exchange uses the client-credentials grant with HTTP basic
// auth; renewals use the refresh-token grant with client_id in the form
// body. A failed exchange never clears the stored token.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Exchanges are serialised.
type TokenManager struct {
	credentials clientcredentials.Config
	refresher   oauth2.Config
	httpClient  *http.Client
	now         func() time.Time
	logger      Logger

	// exchangeMu serialises network exchanges; mu guards token.
	exchangeMu sync.Mutex
	mu         sync.RWMutex
	token      Token
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithHTTPClient sets the HTTP client used for token exchanges.
func WithHTTPClient(client *http.Client) TokenOption {
	return func(m *TokenManager) { m.httpClient = client }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

// WithLogger sets the logger for exchange outcomes.
func WithLogger(logger Logger) TokenOption {
	return func(m *TokenManager) { m.logger = logger }
}

// NewTokenManager creates a manager for the given token endpoint and
// application credentials. No request is made until Acquire.
func NewTokenManager(tokenURL, clientID, clientSecret string, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		credentials: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		refresher: oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire performs the client-credentials exchange.
//
// On success the new token replaces the stored one. On failure the stored
// token is left untouched and returned alongside an ErrAuth-wrapped error.
func (m *TokenManager) Acquire(ctx context.Context) (Token, error) {
	m.exchangeMu.Lock()
	defer m.exchangeMu.Unlock()

	tok, err := m.credentials.Token(m.httpContext(ctx))
	if err != nil {
		m.logger.Error("failed to acquire access token", "error", err)
		return m.Current(), fmt.Errorf("%w: client credentials: %w", ErrAuth, err)
	}

	return m.store(tok)
}

// Renew refreshes the token if it has expired.
//
// When the current token is still valid it is returned unchanged and no
// request is made. A manager that has never obtained a refresh token falls
// back to Acquire.
func (m *TokenManager) Renew(ctx context.Context) (Token, error) {
	current := m.Current()
	if !current.Expired(m.now()) {
		m.logger.Debug("access token is not expired")
		return current, nil
	}
	if current.RefreshToken == "" {
		return m.Acquire(ctx)
	}

	m.exchangeMu.Lock()
	defer m.exchangeMu.Unlock()

	// Another caller may have renewed while we waited.
	if latest := m.Current(); !latest.Expired(m.now()) {
		return latest, nil
	}

	src := m.refresher.TokenSource(m.httpContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		m.logger.Error("failed to refresh access token", "error", err)
		return current, fmt.Errorf("%w: refresh: %w", ErrAuth, err)
	}

	return m.store(tok)
}

// AccessToken renews if needed and returns the bearer string.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	tok, err := m.Renew(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Current returns a copy of the stored token.
func (m *TokenManager) Current() Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Run renews the token on every tick until ctx is cancelled.
// Failures are logged and retried on the next tick.
func (m *TokenManager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Renew logs its own failures.
			_, _ = m.Renew(ctx) //nolint:errcheck // retried next tick
		}
	}
}

// store validates an oauth2 token and makes it current.
func (m *TokenManager) store(tok *oauth2.Token) (Token, error) {
	expiresIn, ok := expiresInFrom(tok)
	if tok.AccessToken == "" || !ok {
		m.logger.Error("token response missing access_token or expires_in")
		return m.Current(), fmt.Errorf("%w: response missing access_token or expires_in", ErrAuth)
	}

	next := Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: tok.RefreshToken,
		Scope:        extraString(tok, "scope"),
		IssuedAt:     m.now(),
	}

	m.mu.Lock()
	m.token = next
	m.mu.Unlock()

	m.logger.Info("obtained yolink access token", "expires_in", expiresIn)
	return next, nil
}

func (m *TokenManager) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// expiresInFrom reads the raw expires_in field of the token response.
func expiresInFrom(tok *oauth2.Token) (time.Duration, bool) {
	var seconds float64
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		seconds = v
	case int64:
		seconds = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		seconds = f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		seconds = f
	default:
		if tok.ExpiresIn <= 0 {
			return 0, false
		}
		seconds = float64(tok.ExpiresIn)
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func extraString(tok *oauth2.Token, key string) string {
	if s, ok := tok.Extra(key).(string); ok {
		return s
	}
	return ""
}
