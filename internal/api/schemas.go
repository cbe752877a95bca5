package api

import (
	"time"

	"github.com/convertly/convertly-agent/internal/backend"
	"github.com/convertly/convertly-agent/internal/conversion"
	"github.com/convertly/convertly-agent/internal/history"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
}

type SelectAssetRequest struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type AssetResponse struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	SizeBytes    int64  `json:"size_bytes"`
	ContentType  string `json:"content_type"`
	PreviewToken string `json:"preview_token"`
}

type ResultResponse struct {
	VideoURL    string `json:"video_url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type WorkflowResponse struct {
	State  string          `json:"state"`
	Asset  *AssetResponse  `json:"asset,omitempty"`
	Result *ResultResponse `json:"result,omitempty"`
	Error  *ErrorResponse  `json:"error,omitempty"`
}

type HistoryEntryResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type HistoryResponse struct {
	Status  string                 `json:"status"`
	Entries []HistoryEntryResponse `json:"entries"`
	Error   *ErrorResponse         `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func WorkflowToResponse(snap conversion.Snapshot) WorkflowResponse {
	resp := WorkflowResponse{State: string(snap.State)}

	if snap.Asset != nil {
		resp.Asset = &AssetResponse{
			ID:           snap.Asset.ID,
			DisplayName:  snap.Asset.DisplayName,
			SizeBytes:    snap.Asset.SizeBytes,
			ContentType:  snap.Asset.ContentType,
			PreviewToken: snap.Asset.PreviewToken,
		}
	}
	if snap.Result != nil {
		resp.Result = &ResultResponse{
			VideoURL:    snap.Result.VideoURL,
			Title:       snap.Result.Title,
			Description: snap.Result.Description,
		}
	}
	if snap.Err != nil {
		e := classifyError(snap.Err)
		resp.Error = &e
	}
	return resp
}

func HistoryToResponse(snap history.Snapshot) HistoryResponse {
	resp := HistoryResponse{
		Status:  string(snap.Status),
		Entries: entriesToResponse(snap.Entries),
	}
	if snap.Err != nil {
		e := classifyError(snap.Err)
		resp.Error = &e
	}
	return resp
}

func entriesToResponse(entries []backend.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = HistoryEntryResponse{
			ID:          entry.ID,
			Title:       entry.Title,
			Description: entry.Description,
			VideoURL:    entry.VideoURL,
		}
		if !entry.CreatedAt.IsZero() {
			out[i].CreatedAt = entry.CreatedAt.Format(time.RFC3339)
		}
	}
	return out
}
