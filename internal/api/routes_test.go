package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/convertly/convertly-agent/internal/backend"
	"github.com/convertly/convertly-agent/internal/conversion"
	"github.com/convertly/convertly-agent/internal/db"
	"github.com/convertly/convertly-agent/internal/history"
	"github.com/convertly/convertly-agent/internal/preview"
	"github.com/convertly/convertly-agent/internal/store"
)

type fakeBackend struct {
	userID     string
	loginErr   error
	result     *backend.ConversionResult
	submitErr  error
	submitGate chan struct{}
	entries    []backend.HistoryEntry
	historyErr error

	historyCalls int
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.userID, nil
}

func (f *fakeBackend) SubmitVideo(ctx context.Context, video backend.Upload, userID string) (*backend.ConversionResult, error) {
	if f.submitGate != nil {
		<-f.submitGate
	}
	return f.result, f.submitErr
}

func (f *fakeBackend) ListHistory(ctx context.Context) ([]backend.HistoryEntry, error) {
	f.historyCalls++
	return f.entries, f.historyErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRouter(t *testing.T, client backend.Client) (http.Handler, ServerConfig) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	kv := store.NewSQLiteKV(database.Conn())
	session := store.NewSessionStore(kv, client, nil)
	workflow := conversion.NewWorkflow(client, session, nil)

	cfg := ServerConfig{
		Port:          0,
		AllowedOrigin: "http://localhost:5173",
		Session:       session,
		Prefs:         store.NewPrefsStore(kv, nil),
		Workflow:      workflow,
		History:       history.NewView(client, session, nil),
		Preview:       preview.NewServer(workflow, nil),
		Logger:        testLogger(),
		StartTime:     time.Now(),
	}

	return NewRouter(cfg), cfg
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router http.Handler) {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/login", LoginRequest{Email: "admin@example.com", Password: "123456"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeBackend{userID: "u-1"})

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestLoginLogoutSession(t *testing.T) {
	router, _ := newTestRouter(t, &fakeBackend{userID: "u-1"})

	rec := doJSON(t, router, http.MethodGet, "/session", nil)
	var sess SessionResponse
	json.Unmarshal(rec.Body.Bytes(), &sess)
	if sess.Authenticated {
		t.Error("fresh agent should not be authenticated")
	}

	login(t, router)

	rec = doJSON(t, router, http.MethodGet, "/session", nil)
	json.Unmarshal(rec.Body.Bytes(), &sess)
	if !sess.Authenticated || sess.UserID != "u-1" {
		t.Errorf("session = %+v, want authenticated u-1", sess)
	}

	if rec := doJSON(t, router, http.MethodPost, "/logout", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/session", nil)
	json.Unmarshal(rec.Body.Bytes(), &sess)
	if sess.Authenticated {
		t.Error("session should be cleared after logout")
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	client := &fakeBackend{loginErr: &backend.APIError{Kind: backend.KindUnauthorized, StatusCode: 401}}
	router, _ := newTestRouter(t, client)

	rec := doJSON(t, router, http.MethodPost, "/login", LoginRequest{Email: "a@b.c", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogin_BackendUnreachable(t *testing.T) {
	client := &fakeBackend{loginErr: &backend.APIError{Kind: backend.KindNetworkUnreachable}}
	router, _ := newTestRouter(t, client)

	rec := doJSON(t, router, http.MethodPost, "/login", LoginRequest{Email: "a@b.c", Password: "x"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "BACKEND_UNREACHABLE" {
		t.Errorf("code = %q, want BACKEND_UNREACHABLE", resp.Code)
	}
}

func TestGatedRoutesRequireSession(t *testing.T) {
	client := &fakeBackend{userID: "u-1", entries: []backend.HistoryEntry{{ID: "v1", Title: "t"}}}
	router, _ := newTestRouter(t, client)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/prefs"},
		{http.MethodGet, "/workflow"},
		{http.MethodGet, "/history"},
		{http.MethodPost, "/workflow/confirm"},
	}

	for _, p := range paths {
		rec := doJSON(t, router, p.method, p.path, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", p.method, p.path, rec.Code)
		}
	}

	if client.historyCalls != 0 {
		t.Errorf("history fetched %d times before authentication", client.historyCalls)
	}
}

func TestPrefsRoundtrip(t *testing.T) {
	router, _ := newTestRouter(t, &fakeBackend{userID: "u-1"})
	login(t, router)

	rec := doJSON(t, router, http.MethodGet, "/prefs", nil)
	var prefs store.Prefs
	json.Unmarshal(rec.Body.Bytes(), &prefs)
	if prefs.Format != store.FormatReels {
		t.Errorf("default format = %q, want reels", prefs.Format)
	}

	prefs.Format = store.FormatTikTok
	prefs.HighContrast = true
	if rec := doJSON(t, router, http.MethodPut, "/prefs", prefs); rec.Code != http.StatusNoContent {
		t.Fatalf("save status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/prefs", nil)
	json.Unmarshal(rec.Body.Bytes(), &prefs)
	if prefs.Format != store.FormatTikTok || !prefs.HighContrast {
		t.Errorf("prefs = %+v, want saved values", prefs)
	}
}

func TestPrefs_InvalidCustomDimensions(t *testing.T) {
	router, _ := newTestRouter(t, &fakeBackend{userID: "u-1"})
	login(t, router)

	bad := store.Prefs{Format: store.FormatCustom, Quality: store.Quality1080p, CustomWidth: 0, CustomHeight: 1920}
	rec := doJSON(t, router, http.MethodPut, "/prefs", bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "VALIDATION" {
		t.Errorf("code = %q, want VALIDATION", resp.Code)
	}
}

func TestWorkflowLifecycleOverHTTP(t *testing.T) {
	client := &fakeBackend{
		userID: "u-1",
		result: &backend.ConversionResult{VideoURL: "https://x/video.mp4", Title: "T", Description: "D"},
	}
	router, _ := newTestRouter(t, client)
	login(t, router)

	videoPath := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(videoPath, []byte("fake video"), 0644); err != nil {
		t.Fatalf("write test video: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/workflow/asset", SelectAssetRequest{Path: videoPath})
	if rec.Code != http.StatusCreated {
		t.Fatalf("select status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var wf WorkflowResponse
	json.Unmarshal(rec.Body.Bytes(), &wf)
	if wf.State != "ready" || wf.Asset == nil || wf.Asset.PreviewToken == "" {
		t.Fatalf("workflow = %+v, want ready with preview token", wf)
	}

	if rec := doJSON(t, router, http.MethodPost, "/workflow/confirm", nil); rec.Code != http.StatusAccepted {
		t.Fatalf("confirm status = %d, body = %s", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = doJSON(t, router, http.MethodGet, "/workflow", nil)
		json.Unmarshal(rec.Body.Bytes(), &wf)
		if wf.State == "succeeded" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("workflow never succeeded, last state %q", wf.State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if wf.Result == nil || wf.Result.VideoURL != "https://x/video.mp4" || wf.Result.Title != "T" {
		t.Errorf("result = %+v, want exact backend payload", wf.Result)
	}

	if rec := doJSON(t, router, http.MethodPost, "/workflow/reset", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/workflow", nil)
	wf = WorkflowResponse{}
	json.Unmarshal(rec.Body.Bytes(), &wf)
	if wf.State != "idle" || wf.Result != nil {
		t.Errorf("workflow after reset = %+v, want empty idle", wf)
	}
}

func TestConfirm_ConflictWhileSubmitting(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeBackend{
		userID:     "u-1",
		result:     &backend.ConversionResult{VideoURL: "https://x/video.mp4"},
		submitGate: gate,
	}
	router, _ := newTestRouter(t, client)
	login(t, router)

	videoPath := filepath.Join(t.TempDir(), "clip.mp4")
	os.WriteFile(videoPath, []byte("fake video"), 0644)

	doJSON(t, router, http.MethodPost, "/workflow/asset", SelectAssetRequest{Path: videoPath})
	if rec := doJSON(t, router, http.MethodPost, "/workflow/confirm", nil); rec.Code != http.StatusAccepted {
		t.Fatalf("first confirm status = %d", rec.Code)
	}

	rec := doJSON(t, router, http.MethodPost, "/workflow/confirm", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second confirm status = %d, want 409", rec.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "SUBMISSION_IN_FLIGHT" {
		t.Errorf("code = %q, want SUBMISSION_IN_FLIGHT", resp.Code)
	}

	close(gate)
}

func TestSelectAsset_RejectsNonVideo(t *testing.T) {
	router, _ := newTestRouter(t, &fakeBackend{userID: "u-1"})
	login(t, router)

	notesPath := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(notesPath, []byte("text"), 0644)

	rec := doJSON(t, router, http.MethodPost, "/workflow/asset", SelectAssetRequest{Path: notesPath})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	client := &fakeBackend{
		userID: "u-1",
		entries: []backend.HistoryEntry{
			{ID: "v1", Title: "Reportagem sobre clima"},
			{ID: "v2", Title: "Entrevista"},
		},
	}
	router, _ := newTestRouter(t, client)
	login(t, router)

	rec := doJSON(t, router, http.MethodGet, "/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp HistoryResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "loaded" || len(resp.Entries) != 2 {
		t.Fatalf("history = %+v, want 2 loaded entries", resp)
	}
	fetches := client.historyCalls

	// Filtering is served from the loaded snapshot, not a new fetch.
	rec = doJSON(t, router, http.MethodGet, "/history?q=entrevista", nil)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Entries) != 1 || resp.Entries[0].ID != "v2" {
		t.Errorf("filtered = %+v, want the single match", resp.Entries)
	}
	if client.historyCalls != fetches {
		t.Error("filter query must not re-trigger a fetch")
	}

	if rec := doJSON(t, router, http.MethodDelete, "/history/v1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodDelete, "/history/v1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHistoryEndpoint_Empty(t *testing.T) {
	router, _ := newTestRouter(t, &fakeBackend{userID: "u-1", entries: nil})
	login(t, router)

	rec := doJSON(t, router, http.MethodGet, "/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, empty history is not an error", rec.Code)
	}

	var resp HistoryResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "loaded" || len(resp.Entries) != 0 {
		t.Errorf("history = %+v, want loaded with no entries", resp)
	}
}

func TestPreviewEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeBackend{userID: "u-1"})
	login(t, router)

	videoPath := filepath.Join(t.TempDir(), "clip.mp4")
	os.WriteFile(videoPath, []byte("previewbytes"), 0644)

	rec := doJSON(t, router, http.MethodPost, "/workflow/asset", SelectAssetRequest{Path: videoPath})
	var wf WorkflowResponse
	json.Unmarshal(rec.Body.Bytes(), &wf)

	rec = doJSON(t, router, http.MethodGet, "/preview?token="+wf.Asset.PreviewToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d", rec.Code)
	}
	if rec.Body.String() != "previewbytes" {
		t.Errorf("preview body = %q", rec.Body.String())
	}

	// Clearing the asset releases the token.
	doJSON(t, router, http.MethodDelete, "/workflow/asset", nil)
	rec = doJSON(t, router, http.MethodGet, "/preview?token="+wf.Asset.PreviewToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("stale preview status = %d, want 404", rec.Code)
	}
}
