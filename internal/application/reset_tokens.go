package application

import (
	"sync"
	"time"
)

// ResetTokenStore holds outstanding password reset tokens in process memory.
// Expired entries are dropped lazily on access and by Sweep.
type ResetTokenStore struct {
	mu         sync.Mutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]resetTokenEntry
}

type resetTokenEntry struct {
	userID    string
	expiresAt time.Time
}

// NewResetTokenStore creates a store whose tokens live for ttl.
func NewResetTokenStore(ttl time.Duration, maxEntries int, now func() time.Time) *ResetTokenStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &ResetTokenStore{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]resetTokenEntry),
	}
}

// TTL reports how long issued tokens stay valid.
func (c *ResetTokenStore) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Issue records token for userID and returns its expiry. Earlier tokens of the
// same user are discarded.
func (c *ResetTokenStore) Issue(token, userID string) time.Time {
	if c == nil {
		return time.Time{}
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	for key, entry := range c.entries {
		if entry.userID == userID {
			delete(c.entries, key)
		}
	}
	if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[token] = resetTokenEntry{userID: userID, expiresAt: expiry}
	return expiry
}

// Consume returns the user a live token was issued for and removes it, so a
// token can be redeemed once.
func (c *ResetTokenStore) Consume(token string) (string, bool) {
	if c == nil || token == "" {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return "", false
	}
	delete(c.entries, token)
	if !c.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.userID, true
}

// Sweep drops expired tokens and reports how many were removed.
func (c *ResetTokenStore) Sweep() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

// Len reports the number of stored tokens, expired or not.
func (c *ResetTokenStore) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResetTokenStore) sweepLocked() int {
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *ResetTokenStore) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}
