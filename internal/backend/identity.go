package backend

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoIdentity means login succeeded but no acting user could be resolved.
// The session must treat this as a failed login.
var ErrNoIdentity = errors.New("no user identity available")

// IdentityResolver resolves the acting user's id after a successful
// credential check. The backend exposes two divergent identity models, so
// resolution is a strategy rather than a fixed behavior.
type IdentityResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// FirstUserResolver asks the backend for its user listing and takes the first
// record's id, standing in for true multi-user auth.
type FirstUserResolver struct {
	client *HTTPClient
}

func NewFirstUserResolver(client *HTTPClient) *FirstUserResolver {
	return &FirstUserResolver{client: client}
}

func (r *FirstUserResolver) Resolve(ctx context.Context) (string, error) {
	users, err := r.client.listUsers(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.ID != "" {
			return u.ID, nil
		}
	}
	return "", ErrNoIdentity
}

// StaticResolver returns a fixed user id, for deployments with a single
// global identity.
type StaticResolver struct {
	userID string
	logger *slog.Logger
}

func NewStaticResolver(userID string, logger *slog.Logger) *StaticResolver {
	return &StaticResolver{userID: userID, logger: logger}
}

func (r *StaticResolver) Resolve(ctx context.Context) (string, error) {
	if r.userID == "" {
		return "", ErrNoIdentity
	}
	if r.logger != nil {
		r.logger.Debug("static identity resolved", "user_id", r.userID)
	}
	return r.userID, nil
}
