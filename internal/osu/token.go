package osu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// TokenSource supplies bearer tokens for API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops any cached token after the API rejected it.
	Invalidate()
}

// StaticToken always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

func (StaticToken) Invalidate() {}

// tokenEarlyExpiry is subtracted from the advertised lifetime.
const tokenEarlyExpiry = time.Hour

// ClientCredentials fetches and caches an OAuth client-credentials token.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewClientCredentials(tokenURL, clientID, clientSecret string, hc *http.Client) *ClientCredentials {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &ClientCredentials{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   hc,
		now:          time.Now,
	}
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Scope        string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	body, err := json.Marshal(tokenRequest{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		GrantType:    "client_credentials",
		Scope:        "public",
	})
	if err != nil {
		return "", fmt.Errorf("encoding token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", &FetchError{Op: "token", URL: c.TokenURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{Op: "token", URL: c.TokenURL, Status: resp.StatusCode}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response has no access_token")
	}

	c.token = tr.AccessToken
	c.expires = c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenEarlyExpiry)
	return c.token, nil
}

func (c *ClientCredentials) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expires = time.Time{}
}
