// Package conversion drives one conversion attempt through its states:
// Idle -> Ready -> Submitting -> Succeeded/Failed -> Idle.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/convertly/convertly-agent/internal/backend"
	"github.com/convertly/convertly-agent/internal/logging"
	"github.com/convertly/convertly-agent/internal/store"
)

type State string

const (
	StateIdle       State = "idle"
	StateReady      State = "ready"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var (
	// ErrSubmissionInFlight refuses intents while a submission is settling.
	// Submitting is non-preemptible: at most one SubmitVideo call is ever in
	// flight per workflow instance.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	// ErrNotAuthenticated refuses Confirm without a valid session; the caller
	// redirects to re-authenticate instead of entering Submitting.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoAsset refuses Confirm before any asset was selected.
	ErrNoAsset = errors.New("no asset selected")
)

// Snapshot is a consistent read of the workflow for presentation.
type Snapshot struct {
	State  State
	Asset  *Asset
	Result *backend.ConversionResult
	Err    error
}

type Workflow struct {
	client  backend.Client
	session *store.SessionStore
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	asset   *Asset
	result  *backend.ConversionResult
	lastErr error

	// attempt is the submission generation. A settling goroutine only applies
	// its outcome while its generation is still current; anything else is a
	// late arrival and is discarded.
	attempt uint64
	cancel  context.CancelFunc
}

func NewWorkflow(client backend.Client, session *store.SessionStore, logger *slog.Logger) *Workflow {
	return &Workflow{
		client:  client,
		session: session,
		logger:  logger,
		state:   StateIdle,
	}
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{State: w.state, Asset: w.asset, Result: w.result, Err: w.lastErr}
}

// SelectAsset replaces the live asset and moves to Ready. The previous
// asset's preview token stops resolving. Refused while Submitting, leaving
// the tracked asset unchanged.
func (w *Workflow) SelectAsset(asset *Asset) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateSubmitting {
		return ErrSubmissionInFlight
	}

	w.asset = asset
	w.result = nil
	w.lastErr = nil
	w.state = StateReady

	if w.logger != nil {
		w.logger.Info("asset selected", "asset_id", asset.ID, "name", asset.DisplayName, "size", asset.SizeBytes, "path", logging.SanitizePath(asset.Path))
	}
	return nil
}

// ClearAsset drops the live asset and returns to Idle. Refused while
// Submitting. Idempotent otherwise.
func (w *Workflow) ClearAsset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateSubmitting {
		return ErrSubmissionInFlight
	}

	w.asset = nil
	w.result = nil
	w.lastErr = nil
	w.state = StateIdle
	return nil
}

// Confirm starts the single in-flight submission. It requires an
// authenticated session and a selected asset, transitions to Submitting
// synchronously and settles to Succeeded or Failed exactly when the backend
// call does.
func (w *Workflow) Confirm(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateSubmitting {
		return ErrSubmissionInFlight
	}
	if w.asset == nil {
		return ErrNoAsset
	}
	if !w.session.IsAuthenticated(ctx) {
		return ErrNotAuthenticated
	}
	userID := w.session.CurrentUserID(ctx)

	file, err := os.Open(w.asset.Path)
	if err != nil {
		return fmt.Errorf("open selected asset: %w", err)
	}

	w.attempt++
	gen := w.attempt

	// The submission outlives the confirm intent, so it runs under its own
	// cancellable context rather than the caller's.
	subCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	upload := backend.Upload{
		Filename:    w.asset.DisplayName,
		Size:        w.asset.SizeBytes,
		ContentType: w.asset.ContentType,
		Content:     file,
	}

	w.result = nil
	w.lastErr = nil
	w.state = StateSubmitting

	if w.logger != nil {
		w.logger.Info("submission started", "attempt", gen, "asset_id", w.asset.ID, "user_id", userID)
	}

	go w.submit(subCtx, gen, file, upload, userID)
	return nil
}

func (w *Workflow) submit(ctx context.Context, gen uint64, file *os.File, upload backend.Upload, userID string) {
	defer file.Close()

	result, err := w.client.SubmitVideo(ctx, upload, userID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.attempt || w.state != StateSubmitting {
		if w.logger != nil {
			w.logger.Info("stale settlement discarded", "attempt", gen)
		}
		return
	}

	if err != nil {
		// The selected asset is retained so the user can retry without
		// re-selecting.
		w.lastErr = err
		w.state = StateFailed
		if w.logger != nil {
			w.logger.Warn("submission failed", "attempt", gen, "error", err)
		}
		return
	}

	w.result = result
	w.state = StateSucceeded
	if w.logger != nil {
		w.logger.Info("submission succeeded", "attempt", gen, "title", result.Title)
	}
}

// Reset starts a new conversion: the result and any residual asset are
// discarded and an in-flight submission is detached, so its late settlement
// is discarded rather than applied.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.attempt++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}

	w.asset = nil
	w.result = nil
	w.lastErr = nil
	w.state = StateIdle
}

// AssetForPreviewToken resolves the live asset by its preview token. Stale
// tokens from cleared or replaced assets resolve to nothing.
func (w *Workflow) AssetForPreviewToken(token string) (*Asset, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if token == "" || w.asset == nil || w.asset.PreviewToken != token {
		return nil, false
	}
	return w.asset, true
}
