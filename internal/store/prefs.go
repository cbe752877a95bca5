package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

const keyPrefs = "prefs"

type Format string

const (
	FormatReels  Format = "reels"
	FormatTikTok Format = "tiktok"
	FormatShorts Format = "shorts"
	FormatCustom Format = "custom"
)

type Quality string

const (
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
	Quality1440p Quality = "1440p"
	Quality2160p Quality = "2160p"
)

// Prefs are the persisted user preferences parameterizing future conversions.
type Prefs struct {
	Format            Format  `json:"format"`
	CustomWidth       int     `json:"custom_width"`
	CustomHeight      int     `json:"custom_height"`
	Quality           Quality `json:"quality"`
	HighContrast      bool    `json:"high_contrast"`
	LargeFont         bool    `json:"large_font"`
	AICaptionsEnabled bool    `json:"ai_captions_enabled"`
}

// DefaultPrefs returns the preferences used before anything was saved.
func DefaultPrefs() Prefs {
	return Prefs{
		Format:       FormatReels,
		CustomWidth:  1080,
		CustomHeight: 1920,
		Quality:      Quality1080p,
	}
}

// ValidationError reports a locally rejected preference write. It never
// reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PrefsStore persists the single preferences blob in the KV store.
type PrefsStore struct {
	kv     KV
	logger *slog.Logger
}

func NewPrefsStore(kv KV, logger *slog.Logger) *PrefsStore {
	return &PrefsStore{kv: kv, logger: logger}
}

// Load returns defaults merged over whatever persisted fields parse. Missing
// or malformed fields fall back to their default one by one; a load never
// fails because of bad stored state.
func (s *PrefsStore) Load(ctx context.Context) Prefs {
	prefs := DefaultPrefs()

	blob, err := s.kv.Get(ctx, keyPrefs)
	if err != nil || blob == "" {
		return prefs
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		if s.logger != nil {
			s.logger.Warn("stored preferences unreadable, using defaults", "error", err)
		}
		return prefs
	}

	if f, ok := decodeString(raw["format"]); ok && validFormat(Format(f)) {
		prefs.Format = Format(f)
	}
	if q, ok := decodeString(raw["quality"]); ok && validQuality(Quality(q)) {
		prefs.Quality = Quality(q)
	}
	if w, ok := decodeInt(raw["custom_width"]); ok && w > 0 {
		prefs.CustomWidth = w
	}
	if h, ok := decodeInt(raw["custom_height"]); ok && h > 0 {
		prefs.CustomHeight = h
	}
	if b, ok := decodeBool(raw["high_contrast"]); ok {
		prefs.HighContrast = b
	}
	if b, ok := decodeBool(raw["large_font"]); ok {
		prefs.LargeFont = b
	}
	if b, ok := decodeBool(raw["ai_captions_enabled"]); ok {
		prefs.AICaptionsEnabled = b
	}

	return prefs
}

// Save validates and persists the full preferences object as one write.
// Invalid input leaves the previously stored blob untouched.
func (s *PrefsStore) Save(ctx context.Context, prefs Prefs) error {
	if err := validate(prefs); err != nil {
		return err
	}

	blob, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	if err := s.kv.Set(ctx, keyPrefs, string(blob)); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("preferences saved", "format", prefs.Format, "quality", prefs.Quality)
	}
	return nil
}

func validate(prefs Prefs) error {
	if !validFormat(prefs.Format) {
		return &ValidationError{Field: "format", Reason: "unknown output format"}
	}
	if !validQuality(prefs.Quality) {
		return &ValidationError{Field: "quality", Reason: "unknown quality level"}
	}
	if prefs.Format == FormatCustom {
		if prefs.CustomWidth <= 0 {
			return &ValidationError{Field: "custom_width", Reason: "must be a positive integer for custom format"}
		}
		if prefs.CustomHeight <= 0 {
			return &ValidationError{Field: "custom_height", Reason: "must be a positive integer for custom format"}
		}
	}
	return nil
}

func validFormat(f Format) bool {
	switch f {
	case FormatReels, FormatTikTok, FormatShorts, FormatCustom:
		return true
	}
	return false
}

func validQuality(q Quality) bool {
	switch q {
	case Quality720p, Quality1080p, Quality1440p, Quality2160p:
		return true
	}
	return false
}

func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeInt(raw json.RawMessage) (int, bool) {
	if raw == nil {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func decodeBool(raw json.RawMessage) (bool, bool) {
	if raw == nil {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}
