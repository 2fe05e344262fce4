package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/event-booking/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const sessionColumns = `id, user_id, token_hash, expires_at, created_at, revoked_at`

// CreateSession stores a new session for a user
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session.TokenHash = strings.TrimSpace(session.TokenHash)
	if session.ID == "" || session.UserID == "" || session.TokenHash == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	session.CreatedAt = nowIfZero(session.CreatedAt)
	session.ExpiresAt = session.ExpiresAt.UTC()

	_, err := r.helper.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		session.TokenHash,
		r.helper.Time(session.ExpiresAt),
		r.helper.Time(session.CreatedAt),
		r.helper.NullTime(session.RevokedAt),
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// GetSession retrieves a session by the hash of its token
func (r *SessionRepository) GetSession(ctx context.Context, tokenHash string) (persistence.Session, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session, err := scanSession(r.helper.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, tokenHash))
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// RevokeSession marks a session as revoked. Revoking twice keeps the first timestamp.
func (r *SessionRepository) RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) (persistence.Session, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	var revoked persistence.Session
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(ctx, tx,
			`UPDATE sessions SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
			r.helper.Time(revokedAt), tokenHash,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		revoked, err = scanSession(r.helper.QueryRowTx(ctx, tx,
			`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, tokenHash))
		return r.mapper.MapError(err)
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return revoked, nil
}

// DeleteExpiredSessions removes sessions that expired on or before the provided timestamp
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, r.helper.Time(reference))
	return r.mapper.MapError(err)
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session          persistence.Session
		expires, created timeColumn
		revokedAt        timeColumn
	)
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&expires,
		&created,
		&revokedAt,
	); err != nil {
		return persistence.Session{}, err
	}
	session.ExpiresAt = expires.Time
	session.CreatedAt = created.Time
	session.RevokedAt = revokedAt.Ptr()
	return session, nil
}
