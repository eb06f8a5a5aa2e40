package provider

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// MemoryTokenStore is a process-local TokenStore. Until an OAuth linking
// flow exists (out of scope), operators seed tokens directly via Put — e.g.
// from a one-off admin script after completing the Google consent flow by
// hand.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*oauth2.Token
}

// NewMemoryTokenStore builds an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*oauth2.Token)}
}

// Put seeds a token for a provider-linked calendar.
func (s *MemoryTokenStore) Put(providerKind, providerCalendarID string, token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key(providerKind, providerCalendarID)] = token
}

// Token implements TokenStore.
func (s *MemoryTokenStore) Token(_ context.Context, providerKind, providerCalendarID string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[key(providerKind, providerCalendarID)]
	if !ok {
		return nil, fmt.Errorf("provider: no token for %s calendar %s", providerKind, providerCalendarID)
	}
	return token, nil
}

func key(providerKind, providerCalendarID string) string {
	return providerKind + ":" + providerCalendarID
}
