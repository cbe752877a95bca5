// Package backend is the typed contract to the remote conversion service.
// Every remote failure is classified here into the APIError taxonomy; loose
// wire shapes are normalized here and never leak past this boundary.
package backend

import (
	"context"
	"log/slog"
	"time"
)

type Client interface {
	// Login verifies credentials and resolves the acting user's id.
	Login(ctx context.Context, email, password string) (string, error)
	// SubmitVideo uploads the payload and blocks until the backend has
	// produced a result. May take an unbounded amount of time; cancel via ctx.
	SubmitVideo(ctx context.Context, video Upload, userID string) (*ConversionResult, error)
	// ListHistory fetches the normalized list of past conversions.
	ListHistory(ctx context.Context) ([]HistoryEntry, error)
}

// StubClient is an offline no-network client used when no backend URL is
// configured. It accepts any credentials and fabricates a result.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) Login(ctx context.Context, email, password string) (string, error) {
	c.logger.Info("backend stub: login requested", "email", email)
	return "stub-user-id", nil
}

func (c *StubClient) SubmitVideo(ctx context.Context, video Upload, userID string) (*ConversionResult, error) {
	c.logger.Info("backend stub: video submission requested",
		"filename", video.Filename,
		"size", video.Size,
		"user_id", userID,
	)
	return &ConversionResult{
		VideoURL:    "https://example.invalid/converted/" + video.Filename,
		Title:       "Converted: " + video.Filename,
		Description: "Stub conversion result",
	}, nil
}

func (c *StubClient) ListHistory(ctx context.Context) ([]HistoryEntry, error) {
	c.logger.Info("backend stub: history requested")
	return []HistoryEntry{
		{
			ID:        "stub-entry-1",
			Title:     "Stub conversion",
			CreatedAt: time.Now().Add(-24 * time.Hour),
		},
	}, nil
}
