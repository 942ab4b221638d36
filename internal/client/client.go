package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned when the refresh token is rejected and
// the session has been cleared. The caller must log in again.
var ErrSessionExpired = errors.New("session expired, log in again")

// Client calls the API on behalf of one session. On a 401 it refreshes
// the session once and replays the request; concurrent 401s share a
// single refresh through singleflight.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	refreshing singleflight.Group

	// OnSignOut fires once when a refresh fails terminally and the
	// session is cleared. Optional.
	OnSignOut func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a client rooted at baseURL (e.g. "https://api.example.com").
func New(baseURL string, session *Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRequest builds an API request with a replayable JSON body, so the
// retry after a token refresh can resend it.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}
	return req, nil
}

// Do sends the request with the session's bearer token. A 401 response
// triggers one token refresh and one replay. If the replay is rejected
// too the session is dead: it is cleared, OnSignOut fires and the call
// returns ErrSessionExpired. Non-401 responses pass through unchanged.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	access := c.session.Tokens().AccessToken
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// The response body is replaced by the retry; drain this one so
	// the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	newAccess, err := c.refreshAccessToken(req.Context(), access)
	if err != nil {
		return nil, err
	}

	retry, err := replayableRequest(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+newAccess)
	resp, err = c.httpClient.Do(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Even a freshly minted token is rejected, so retrying cannot
		// help. End the session instead of handing the caller a 401
		// it would retry forever.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, c.signOut(errors.New("request rejected after token refresh"))
	}
	return resp, nil
}

// replayableRequest clones req with a fresh body.
func replayableRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		retry.Body = body
	}
	return retry, nil
}

// refreshAccessToken exchanges the refresh token for a new pair. All
// concurrent callers collapse onto one upstream call; callers whose
// stale token was already replaced reuse the fresh one without a new
// round trip.
func (c *Client) refreshAccessToken(ctx context.Context, staleAccess string) (string, error) {
	v, err, _ := c.refreshing.Do("refresh", func() (any, error) {
		tokens := c.session.Tokens()
		if tokens.AccessToken != "" && tokens.AccessToken != staleAccess {
			return tokens.AccessToken, nil
		}
		if tokens.RefreshToken == "" {
			return nil, c.signOut(nil)
		}

		fresh, err := c.callRefresh(ctx, tokens.RefreshToken)
		if err != nil {
			return nil, c.signOut(err)
		}
		if err := c.session.SetTokens(fresh); err != nil {
			return nil, err
		}
		return fresh.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// signOut clears the session and fires the hook, returning the error
// every queued waiter will see.
func (c *Client) signOut(cause error) error {
	_ = c.session.Clear()
	if c.OnSignOut != nil {
		c.OnSignOut()
	}
	if cause != nil {
		return fmt.Errorf("%w: %v", ErrSessionExpired, cause)
	}
	return ErrSessionExpired
}

func (c *Client) callRefresh(ctx context.Context, refreshToken string) (Tokens, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return Tokens{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return Tokens{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Tokens{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Tokens{}, fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	var body struct {
		Success bool   `json:"success"`
		Data    Tokens `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Tokens{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if !body.Success || body.Data.AccessToken == "" {
		return Tokens{}, errors.New("refresh response missing tokens")
	}
	return body.Data, nil
}
