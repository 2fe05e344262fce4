package application

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials is returned when an email, password or token does not authenticate.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a disabled account tries to sign in.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a session is past its expiry or revoked.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrInvalidResetToken is returned when a password reset token is unknown, expired or used.
	ErrInvalidResetToken = errors.New("application: invalid reset token")
)

// CredentialStore exposes the user lookups and password writes needed by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUserCredentials(ctx context.Context, id string) (UserCredentials, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error
}

// SessionRepository captures the persistence interactions for issued sessions.
// Sessions are addressed by the keyed hash of their token; the token itself is
// never stored.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session, tokenHash string) (Session, error)
	GetSession(ctx context.Context, tokenHash string) (Session, error)
	RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// ResetNotifier delivers a password reset token to its user.
type ResetNotifier func(ctx context.Context, user User, token string, expiresAt time.Time) error

// AuthServiceDeps lists the collaborators of AuthService. Only Credentials,
// Sessions and SessionSecret are required.
type AuthServiceDeps struct {
	Credentials    CredentialStore
	Sessions       SessionRepository
	ResetTokens    *ResetTokenStore
	Verify         PasswordVerifier
	Hash           PasswordHasher
	Notify         ResetNotifier
	TokenGenerator func() (string, error)
	IDGenerator    func() string
	Now            func() time.Time
	SessionSecret  []byte
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// AuthService coordinates sign in, session resolution and password resets.
type AuthService struct {
	credentials    CredentialStore
	sessions       SessionRepository
	resetTokens    *ResetTokenStore
	verifyPassword PasswordVerifier
	hashPassword   PasswordHasher
	notify         ResetNotifier
	tokenGenerator func() (string, error)
	idGenerator    func() string
	now            func() time.Time
	secret         []byte
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService from deps.
func NewAuthService(deps AuthServiceDeps) *AuthService {
	s := &AuthService{
		credentials:    deps.Credentials,
		sessions:       deps.Sessions,
		resetTokens:    deps.ResetTokens,
		verifyPassword: deps.Verify,
		hashPassword:   deps.Hash,
		notify:         deps.Notify,
		tokenGenerator: deps.TokenGenerator,
		idGenerator:    deps.IDGenerator,
		now:            deps.Now,
		secret:         append([]byte(nil), deps.SessionSecret...),
		sessionTTL:     deps.SessionTTL,
		logger:         defaultLogger(deps.Logger),
	}
	if s.verifyPassword == nil {
		s.verifyPassword = VerifyPassword
	}
	if s.hashPassword == nil {
		s.hashPassword = HashPassword
	}
	if s.tokenGenerator == nil {
		s.tokenGenerator = RandomToken
	}
	if s.idGenerator == nil {
		s.idGenerator = func() string { return "" }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}
	if s.resetTokens == nil {
		s.resetTokens = NewResetTokenStore(0, 0, s.now)
	}
	if s.notify == nil {
		s.notify = s.logResetToken
	}
	return s
}

// RandomToken returns 32 random bytes encoded for use in URLs.
func RandomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// TokenHash returns the keyed hash under which a session token is stored.
func (s *AuthService) TokenHash(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate validates credentials and issues a new session. The returned
// session carries the plain token; only its hash is persisted.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil || s.sessions == nil {
		err = fmt.Errorf("auth stores not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	password := params.Password

	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			err = ErrInvalidCredentials
			return
		}
		err = translateStorageError(err)
		return
	}

	if creds.Disabled {
		err = ErrAccountDisabled
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	var token string
	if token, err = s.tokenGenerator(); err != nil {
		return
	}

	now := s.now()
	session := Session{
		ID:        s.idGenerator(),
		UserID:    creds.User.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	if err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		err = translateStorageError(err)
		return
	}

	var persisted Session
	persisted, err = s.sessions.CreateSession(ctx, session, s.TokenHash(token))
	if err != nil {
		err = translateStorageError(err)
		return
	}
	persisted.Token = token

	result = AuthenticateResult{User: creds.User, Session: persisted}
	return
}

// Logout revokes the session identified by token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "Logout")

	session, err := s.sessions.RevokeSession(ctx, s.TokenHash(trimmed), s.now())
	if err != nil {
		if isNotFound(err) {
			err = ErrInvalidCredentials
		} else {
			err = translateStorageError(err)
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.With("session_id", session.ID, "user_id", session.UserID).InfoContext(ctx, "session revoked")
	return nil
}

// ResolveSession verifies that token names a live session and returns the
// principal of its user.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil || s.credentials == nil {
		err = fmt.Errorf("auth stores not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ResolveSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.DebugContext(ctx, "session rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if trimmed == "" {
		err = ErrUnauthorized
		return
	}

	var session Session
	session, err = s.sessions.GetSession(ctx, s.TokenHash(trimmed))
	if err != nil {
		if isNotFound(err) {
			err = ErrUnauthorized
			return
		}
		err = translateStorageError(err)
		return
	}

	if session.RevokedAt != nil || !session.ExpiresAt.After(s.now()) {
		err = ErrSessionExpired
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentials(ctx, session.UserID)
	if err != nil {
		if isNotFound(err) {
			err = ErrUnauthorized
			return
		}
		err = translateStorageError(err)
		return
	}
	if creds.Disabled {
		err = ErrAccountDisabled
		return
	}

	principal = creds.User.Principal()
	return
}

// RequestPasswordReset issues a reset token for the account registered under
// email and hands it to the notifier. Unknown or disabled accounts produce no
// token and no error, so callers cannot learn which emails exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil {
		return fmt.Errorf("credential store not configured")
	}

	email = strings.TrimSpace(strings.ToLower(email))
	logger := s.loggerWith(ctx, "RequestPasswordReset", "email", email)
	if email == "" {
		return nil
	}

	creds, err := s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		err = translateStorageError(err)
		logger.ErrorContext(ctx, "failed to look up user", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if creds.Disabled {
		logger.InfoContext(ctx, "password reset requested for disabled account", "user_id", creds.User.ID)
		return nil
	}

	token, err := s.tokenGenerator()
	if err != nil {
		return err
	}
	expiresAt := s.resetTokens.Issue(token, creds.User.ID)

	if err := s.notify(ctx, creds.User, token, expiresAt); err != nil {
		logger.ErrorContext(ctx, "failed to deliver reset token", "error", err, "user_id", creds.User.ID)
		return err
	}
	return nil
}

// ConfirmPasswordReset consumes token and replaces the password of its user.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil {
		return fmt.Errorf("credential store not configured")
	}

	logger := s.loggerWith(ctx, "ConfirmPasswordReset")
	var userID string
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password reset failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password reset", "user_id", userID)
	}()

	if len(newPassword) < MinPasswordLength {
		vErr := &ValidationError{}
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
		return vErr
	}

	userID, ok := s.resetTokens.Consume(strings.TrimSpace(token))
	if !ok {
		return ErrInvalidResetToken
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err = s.credentials.UpdatePassword(ctx, userID, hash, s.now()); err != nil {
		if isNotFound(err) {
			return ErrInvalidResetToken
		}
		return translateStorageError(err)
	}
	return nil
}

// ChangePasswordParams carries a signed-in user's password change.
type ChangePasswordParams struct {
	Principal       Principal
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// ChangePassword replaces the principal's own password after checking the
// current one. The new password must match its confirmation and be at least
// MinPasswordLength characters long.
func (s *AuthService) ChangePassword(ctx context.Context, params ChangePasswordParams) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil {
		return fmt.Errorf("credential store not configured")
	}

	logger := s.loggerWith(ctx, "ChangePassword", "user_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password change failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password changed")
	}()

	if params.Principal.UserID == "" {
		return ErrUnauthorized
	}

	vErr := &ValidationError{}
	if params.CurrentPassword == "" {
		vErr.add("current_password", "current password is required")
	}
	if len(params.NewPassword) < MinPasswordLength {
		vErr.add("new_password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if params.NewPassword != params.ConfirmPassword {
		vErr.add("confirm_password", "new password and confirmation do not match")
	}
	if vErr.HasErrors() {
		return vErr
	}

	creds, err := s.credentials.GetUserCredentials(ctx, params.Principal.UserID)
	if err != nil {
		if isNotFound(err) {
			return ErrUnauthorized
		}
		return translateStorageError(err)
	}
	if creds.Disabled {
		return ErrAccountDisabled
	}
	if s.verifyPassword(creds.PasswordHash, params.CurrentPassword) != nil {
		vErr.add("current_password", "current password is incorrect")
		return vErr
	}

	hash, err := s.hashPassword(params.NewPassword)
	if err != nil {
		return err
	}
	if err = s.credentials.UpdatePassword(ctx, creds.User.ID, hash, s.now()); err != nil {
		return translateStorageError(err)
	}
	return nil
}

// SweepResetTokens drops expired reset tokens.
func (s *AuthService) SweepResetTokens() int {
	if s == nil {
		return 0
	}
	return s.resetTokens.Sweep()
}

// logResetToken is the notifier used when no delivery channel is configured.
// The token itself is only written at debug level.
func (s *AuthService) logResetToken(ctx context.Context, user User, token string, expiresAt time.Time) error {
	logger := s.loggerWith(ctx, "RequestPasswordReset", "user_id", user.ID, "expires_at", expiresAt)
	logger.InfoContext(ctx, "password reset token issued")
	logger.DebugContext(ctx, "password reset token for manual delivery", "reset_token", token)
	return nil
}
