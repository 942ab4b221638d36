// Package client is a Go client for the fintrack API. It attaches
// bearer tokens to outgoing requests and transparently refreshes an
// expired session, collapsing concurrent refreshes into one.
package client

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
)

// Tokens is the credential pair held by a session.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenStore persists tokens across sessions. Implementations must be
// safe for concurrent use.
type TokenStore interface {
	Load() (Tokens, error)
	Save(Tokens) error
	Clear() error
}

// Session holds the current credentials for one authenticated user and
// mirrors every change to its TokenStore. There are no package-level
// globals: callers create as many independent sessions as they need.
type Session struct {
	mu     sync.Mutex
	tokens Tokens
	store  TokenStore
}

// NewSession builds a session backed by store. A nil store keeps the
// tokens in memory only. Previously persisted tokens are loaded.
func NewSession(store TokenStore) (*Session, error) {
	s := &Session{store: store}
	if store != nil {
		tokens, err := store.Load()
		if err != nil {
			return nil, err
		}
		s.tokens = tokens
	}
	return s, nil
}

// SetTokens replaces the session credentials and persists them.
func (s *Session) SetTokens(tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
	if s.store != nil {
		return s.store.Save(tokens)
	}
	return nil
}

// Tokens returns a copy of the current credentials.
func (s *Session) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// Clear wipes the credentials, both in memory and in the store.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	if s.store != nil {
		return s.store.Clear()
	}
	return nil
}

// Authenticated reports whether the session holds an access token.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.AccessToken != ""
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	tokens Tokens
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens, nil
}

func (m *MemoryStore) Save(tokens Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	return nil
}

func (m *MemoryStore) Clear() error {
	return m.Save(Tokens{})
}

// FileStore persists tokens as JSON in a mode-0600 file, suitable for
// CLI tools keeping a login between runs.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Tokens{}, nil
	}
	if err != nil {
		return Tokens{}, err
	}
	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, err
	}
	return tokens, nil
}

func (f *FileStore) Save(tokens Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
