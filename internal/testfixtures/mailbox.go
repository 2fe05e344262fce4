package testfixtures

import (
	"context"
	"sync"
	"time"

	"github.com/example/event-booking/internal/application"
)

// ResetMessage is one password reset token delivered to a user.
type ResetMessage struct {
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Mailbox records reset tokens instead of sending them.
type Mailbox struct {
	mu       sync.Mutex
	messages []ResetMessage
}

// Deliver implements application.ResetNotifier.
func (m *Mailbox) Deliver(_ context.Context, user application.User, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, ResetMessage{UserID: user.ID, Email: user.Email, Token: token, ExpiresAt: expiresAt})
	return nil
}

// Last returns the most recent message and whether one exists.
func (m *Mailbox) Last() (ResetMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return ResetMessage{}, false
	}
	return m.messages[len(m.messages)-1], true
}

// Len reports how many messages were delivered.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
