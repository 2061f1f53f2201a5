package login

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

// TokenStore persists one session token per caller.
// Load returns (nil, nil) when the caller has no token.
type TokenStore interface {
	Load(ctx context.Context, caller string) (*types.SessionToken, error)
	Save(ctx context.Context, caller string, token *types.SessionToken) error
	Delete(ctx context.Context, caller string) error
}

// FileStore keeps tokens as JSON files in a directory, one per caller.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(caller string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(caller)
	return filepath.Join(s.dir, safe+".session.json")
}

// Load reads the caller's token.
func (s *FileStore) Load(_ context.Context, caller string) (*types.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(caller))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}
	return DecodeToken(data)
}

// Save writes the caller's token, replacing any previous one.
func (s *FileStore) Save(_ context.Context, caller string, token *types.SessionToken) error {
	data, err := EncodeToken(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path(caller) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session token: %w", err)
	}
	if err := os.Rename(tmp, s.path(caller)); err != nil {
		return fmt.Errorf("failed to write session token: %w", err)
	}
	return nil
}

// Delete removes the caller's token. Deleting a missing token is not an error.
func (s *FileStore) Delete(_ context.Context, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(caller)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

// MemoryStore is an in-process TokenStore.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, caller string) (*types.SessionToken, error) {
	s.mu.Lock()
	data, ok := s.tokens[caller]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return DecodeToken(data)
}

func (s *MemoryStore) Save(_ context.Context, caller string, token *types.SessionToken) error {
	data, err := EncodeToken(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[caller] = data
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, caller)
	return nil
}

// Has reports whether a token is stored for caller.
func (s *MemoryStore) Has(caller string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[caller]
	return ok
}
