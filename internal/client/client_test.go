package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeAPI simulates the server side of token rotation: requests bearing
// validToken succeed, anything else is 401. The refresh endpoint swaps
// the valid token and counts how often it is called.
type fakeAPI struct {
	mu           sync.Mutex
	validToken   string
	refreshToken string
	refreshCalls atomic.Int64
	failRefresh  bool
	rejectAll    bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		if f.failRefresh {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "TOKEN_EXPIRED"})
			return
		}

		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		if req.RefreshToken != f.refreshToken {
			f.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "TOKEN_EXPIRED"})
			return
		}
		f.validToken = fmt.Sprintf("access-%d", f.refreshCalls.Load())
		f.refreshToken = fmt.Sprintf("refresh-%d", f.refreshCalls.Load())
		resp := map[string]any{
			"success": true,
			"data":    map[string]string{"accessToken": f.validToken, "refreshToken": f.refreshToken},
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := "Bearer " + f.validToken
		f.mu.Unlock()
		if f.rejectAll || r.Header.Get("Authorization") != valid {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "UNAUTHORIZED"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"id": 1}})
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI, tokens Tokens) *Client {
	t.Helper()
	ts := httptest.NewServer(api.handler())
	t.Cleanup(ts.Close)

	session, err := NewSession(NewMemoryStore())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.SetTokens(tokens); err != nil {
		t.Fatalf("set tokens: %v", err)
	}
	return New(ts.URL, session)
}

func TestConcurrentRequestsShareOneRefresh(t *testing.T) {
	api := &fakeAPI{validToken: "fresh", refreshToken: "refresh-0"}
	// Session starts with a stale access token, forcing a 401.
	c := newTestClient(t, api, Tokens{AccessToken: "stale", RefreshToken: "refresh-0"})

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := c.NewRequest(context.Background(), http.MethodGet, "/api/v1/users/me", nil)
			if err != nil {
				errs <- err
				return
			}
			resp, err := c.Do(req)
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("request failed: %v", err)
	}

	if calls := api.refreshCalls.Load(); calls != 1 {
		t.Fatalf("expected exactly one refresh, got %d", calls)
	}
	if got := c.session.Tokens().AccessToken; got != "access-1" {
		t.Fatalf("session should hold rotated token, got %q", got)
	}
}

func TestFailedRefreshClearsSessionAndFiresHook(t *testing.T) {
	api := &fakeAPI{validToken: "fresh", refreshToken: "refresh-0", failRefresh: true}
	c := newTestClient(t, api, Tokens{AccessToken: "stale", RefreshToken: "refresh-0"})

	var signedOut atomic.Bool
	c.OnSignOut = func() { signedOut.Store(true) }

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/api/v1/users/me", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if _, err := c.Do(req); err == nil {
		t.Fatal("expected an error after failed refresh")
	}
	if !signedOut.Load() {
		t.Fatal("OnSignOut should fire")
	}
	if c.session.Authenticated() {
		t.Fatal("session should be cleared")
	}
}

func TestReplayed401SignsOut(t *testing.T) {
	// The refresh itself succeeds, but the server keeps rejecting the
	// replayed request. Retrying cannot help, so the session must end.
	api := &fakeAPI{validToken: "fresh", refreshToken: "refresh-0", rejectAll: true}
	c := newTestClient(t, api, Tokens{AccessToken: "stale", RefreshToken: "refresh-0"})

	var signedOut atomic.Bool
	c.OnSignOut = func() { signedOut.Store(true) }

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/api/v1/users/me", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if _, err := c.Do(req); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if calls := api.refreshCalls.Load(); calls != 1 {
		t.Fatalf("expected one refresh attempt, got %d", calls)
	}
	if !signedOut.Load() {
		t.Fatal("OnSignOut should fire")
	}
	if c.session.Authenticated() {
		t.Fatal("session should be cleared")
	}
}

func TestNon401ResponsesPassThrough(t *testing.T) {
	api := &fakeAPI{validToken: "good", refreshToken: "refresh-0"}
	c := newTestClient(t, api, Tokens{AccessToken: "good", RefreshToken: "refresh-0"})

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/api/v1/users/me", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if calls := api.refreshCalls.Load(); calls != 0 {
		t.Fatalf("no refresh expected, got %d", calls)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewFileStore(path)

	want := Tokens{AccessToken: "a", RefreshToken: "r"}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	session, err := NewSession(store)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if got := session.Tokens(); got != want {
		t.Fatalf("loaded %+v, want %+v", got, want)
	}

	if err := session.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if reloaded != (Tokens{}) {
		t.Fatalf("store should be empty after clear, got %+v", reloaded)
	}
}
