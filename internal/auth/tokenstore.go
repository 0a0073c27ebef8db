// Package auth manages the session token lifecycle and the HTTP gateway that
// exchanges credentials for a token.
package auth

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// TokenStore holds the single opaque authentication token for a session.
type TokenStore interface {
	// SetToken stores the token, replacing any existing one.
	SetToken(token string) error
	// Token returns the stored token and whether one is present.
	Token() (string, bool)
	// ClearToken removes the stored token. Clearing an empty store is a no-op.
	ClearToken() error
	// IsAuthenticated reports whether a token is present.
	IsAuthenticated() bool
}

// MemoryTokenStore keeps the token in process memory. Intended for tests and
// ephemeral sessions.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// NewMemoryTokenStore returns an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore { return &MemoryTokenStore{} }

// SetToken stores the token.
func (s *MemoryTokenStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

// Token returns the stored token.
func (s *MemoryTokenStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.set
}

// ClearToken removes the stored token.
func (s *MemoryTokenStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}

// IsAuthenticated reports whether a token is present.
func (s *MemoryTokenStore) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

var (
	tokenBucket = []byte("session")
	tokenKey    = []byte("token")
)

// BoltTokenStore persists the token in a bbolt file, surviving process
// restarts the way browser-local storage survives page loads.
type BoltTokenStore struct {
	db *bolt.DB
}

// OpenBoltTokenStore opens (creating if needed) the token database at path.
func OpenBoltTokenStore(path string) (*BoltTokenStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token store path required")
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tokenBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init token store: %w", err)
	}
	return &BoltTokenStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *BoltTokenStore) Close() error { return s.db.Close() }

// SetToken stores the token durably.
func (s *BoltTokenStore) SetToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokenBucket).Put(tokenKey, []byte(token))
	})
}

// Token returns the stored token.
func (s *BoltTokenStore) Token() (string, bool) {
	var token string
	var present bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(tokenBucket).Get(tokenKey); v != nil {
			token = string(v)
			present = true
		}
		return nil
	})
	return token, present
}

// ClearToken removes the stored token.
func (s *BoltTokenStore) ClearToken() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokenBucket).Delete(tokenKey)
	})
}

// IsAuthenticated reports whether a token is present.
func (s *BoltTokenStore) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}
