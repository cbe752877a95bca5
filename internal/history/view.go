// Package history is the read-only projection of past conversions. It shares
// the session-gating contract with the workflow but owns no backend state:
// entries are fetched, filtered locally, and at most optimistically removed.
package history

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/convertly/convertly-agent/internal/backend"
	"github.com/convertly/convertly-agent/internal/store"
)

// ErrNotAuthenticated refuses a load before any network call is made.
var ErrNotAuthenticated = errors.New("not authenticated")

type Status string

const (
	StatusLoading    Status = "loading"
	StatusLoaded     Status = "loaded"
	StatusLoadFailed Status = "load_failed"
)

// Snapshot is a consistent read of the view. Entries is nil unless Loaded;
// an empty non-nil slice is the "no conversions yet" terminal, not an error.
type Snapshot struct {
	Status  Status
	Entries []backend.HistoryEntry
	Err     error
}

type View struct {
	client  backend.Client
	session *store.SessionStore
	logger  *slog.Logger

	mu      sync.Mutex
	status  Status
	entries []backend.HistoryEntry
	err     error
}

func NewView(client backend.Client, session *store.SessionStore, logger *slog.Logger) *View {
	return &View{
		client:  client,
		session: session,
		logger:  logger,
		status:  StatusLoading,
	}
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{Status: v.status, Entries: v.entries, Err: v.err}
}

// Load fetches the history once. Without a valid session it refuses before
// making any network call.
func (v *View) Load(ctx context.Context) error {
	if !v.session.IsAuthenticated(ctx) {
		return ErrNotAuthenticated
	}

	v.mu.Lock()
	v.status = StatusLoading
	v.err = nil
	v.mu.Unlock()

	entries, err := v.client.ListHistory(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.status = StatusLoadFailed
		v.err = err
		if v.logger != nil {
			v.logger.Warn("history load failed", "error", err)
		}
		return err
	}

	if entries == nil {
		entries = []backend.HistoryEntry{}
	}
	v.status = StatusLoaded
	v.entries = entries

	if v.logger != nil {
		v.logger.Info("history loaded", "count", len(entries))
	}
	return nil
}

// FilterByTitle is a pure projection over the last successfully loaded
// entries. It never triggers a fetch. Empty query returns everything.
func (v *View) FilterByTitle(query string) []backend.HistoryEntry {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.status != StatusLoaded {
		return nil
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return append([]backend.HistoryEntry(nil), v.entries...)
	}

	filtered := make([]backend.HistoryEntry, 0, len(v.entries))
	for _, entry := range v.entries {
		if strings.Contains(strings.ToLower(entry.Title), query) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// Remove drops an entry locally. The delete is optimistic: there is no
// backend call behind it yet.
func (v *View) Remove(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.status != StatusLoaded {
		return false
	}

	for i, entry := range v.entries {
		if entry.ID == id {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			return true
		}
	}
	return false
}
