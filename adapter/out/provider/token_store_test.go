package provider

import (
	"context"
	"testing"

	"golang.org/x/oauth2"
)

func TestMemoryTokenStoreRoundTrip(t *testing.T) {
	store := NewMemoryTokenStore()
	token := &oauth2.Token{AccessToken: "abc"}
	store.Put("google", "primary", token)

	got, err := store.Token(context.Background(), "google", "primary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccessToken != "abc" {
		t.Errorf("expected access token %q, got %q", "abc", got.AccessToken)
	}
}

func TestMemoryTokenStoreMissingTokenErrors(t *testing.T) {
	store := NewMemoryTokenStore()
	if _, err := store.Token(context.Background(), "google", "unknown"); err == nil {
		t.Error("expected an error for an unseeded calendar")
	}
}

func TestMemoryTokenStoreDistinguishesProviderKind(t *testing.T) {
	store := NewMemoryTokenStore()
	store.Put("google", "cal-1", &oauth2.Token{AccessToken: "google-token"})

	if _, err := store.Token(context.Background(), "outlook", "cal-1"); err == nil {
		t.Error("expected no token stored under a different provider kind for the same calendar id")
	}
}
