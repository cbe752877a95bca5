package store

import (
	"context"
	"log/slog"

	"github.com/convertly/convertly-agent/internal/backend"
	"github.com/convertly/convertly-agent/internal/logging"
)

const (
	keyAuthenticated = "session.authenticated"
	keyUserID        = "session.user_id"
)

// SessionStore owns the durable authenticated/identity pair. All other
// components read session state only through its accessors. Sessions live
// until explicit logout; there is no implicit expiry.
type SessionStore struct {
	kv     KV
	client backend.Client
	logger *slog.Logger
}

func NewSessionStore(kv KV, client backend.Client, logger *slog.Logger) *SessionStore {
	return &SessionStore{kv: kv, client: client, logger: logger}
}

// Login delegates the credential check to the backend. On success both
// session keys are persisted in one transaction; on any failure the store is
// left unchanged.
func (s *SessionStore) Login(ctx context.Context, email, password string) error {
	userID, err := s.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if userID == "" {
		return backend.ErrNoIdentity
	}

	if err := s.kv.SetMany(ctx, map[string]string{
		keyAuthenticated: "true",
		keyUserID:        userID,
	}); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("session established", "user_id", userID, "email", logging.SanitizeEmail(email))
	}
	return nil
}

// Logout clears both session keys atomically. Idempotent.
func (s *SessionStore) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, keyAuthenticated, keyUserID); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("session cleared")
	}
	return nil
}

// IsAuthenticated is true only when both keys are present and consistent.
// A corrupted state where one key exists without the other reads as logged out.
func (s *SessionStore) IsAuthenticated(ctx context.Context) bool {
	auth, err := s.kv.Get(ctx, keyAuthenticated)
	if err != nil || auth != "true" {
		return false
	}
	userID, err := s.kv.Get(ctx, keyUserID)
	return err == nil && userID != ""
}

// CurrentUserID returns the persisted identity, or "" when logged out.
func (s *SessionStore) CurrentUserID(ctx context.Context) string {
	if !s.IsAuthenticated(ctx) {
		return ""
	}
	userID, err := s.kv.Get(ctx, keyUserID)
	if err != nil {
		return ""
	}
	return userID
}
