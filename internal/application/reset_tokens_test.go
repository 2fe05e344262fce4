package application

import (
	"testing"
	"time"
)

func TestResetTokenStoreConsumesOnce(t *testing.T) {
	current := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	store := NewResetTokenStore(time.Minute, 4, func() time.Time { return current })

	expiry := store.Issue("tok", "user-1")
	if !expiry.Equal(current.Add(time.Minute)) {
		t.Fatalf("unexpected expiry %s", expiry)
	}

	userID, ok := store.Consume("tok")
	if !ok || userID != "user-1" {
		t.Fatalf("expected token to resolve to user-1, got %q %v", userID, ok)
	}
	if _, ok := store.Consume("tok"); ok {
		t.Fatalf("expected second consume to fail")
	}
}

func TestResetTokenStoreExpiresEntries(t *testing.T) {
	current := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	store := NewResetTokenStore(time.Second, 4, func() time.Time { return current })

	store.Issue("tok", "user-1")
	current = current.Add(time.Second)
	if _, ok := store.Consume("tok"); ok {
		t.Fatalf("expected token to expire at its deadline")
	}
}

func TestResetTokenStoreSweep(t *testing.T) {
	current := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	store := NewResetTokenStore(time.Minute, 8, func() time.Time { return current })

	store.Issue("a", "user-1")
	store.Issue("b", "user-2")
	current = current.Add(30 * time.Second)
	store.Issue("c", "user-3")
	current = current.Add(45 * time.Second)

	if removed := store.Sweep(); removed != 2 {
		t.Fatalf("expected 2 expired tokens, got %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 remaining token, got %d", store.Len())
	}
}

func TestResetTokenStoreReplacesUserTokens(t *testing.T) {
	store := NewResetTokenStore(time.Minute, 8, nil)

	store.Issue("first", "user-1")
	store.Issue("second", "user-1")

	if _, ok := store.Consume("first"); ok {
		t.Fatalf("expected earlier token to be discarded")
	}
	if _, ok := store.Consume("second"); !ok {
		t.Fatalf("expected latest token to be valid")
	}
}

func TestResetTokenStoreEvictsOldestWhenFull(t *testing.T) {
	current := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	store := NewResetTokenStore(time.Hour, 2, func() time.Time { return current })

	store.Issue("a", "user-1")
	current = current.Add(time.Minute)
	store.Issue("b", "user-2")
	current = current.Add(time.Minute)
	store.Issue("c", "user-3")

	if _, ok := store.Consume("a"); ok {
		t.Fatalf("expected oldest token to be evicted")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 tokens, got %d", store.Len())
	}
}
