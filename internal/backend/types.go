package backend

import (
	"io"
	"strings"
	"time"
)

// Upload describes the video payload handed to SubmitVideo. Content is
// streamed to the wire; the caller retains ownership and closes it.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Content     io.Reader
}

// ConversionResult is the backend's output artifact reference plus the
// generated metadata. Immutable once produced.
type ConversionResult struct {
	VideoURL    string `json:"video_url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// HistoryEntry is a read-only projection of one past conversion.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	VideoURL    string    `json:"video_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Wire shapes. The backend emits loosely-typed records with Portuguese field
// names and optional fields; they are normalized here and nowhere else.

type processVideoResponse struct {
	VideoURL    string `json:"videoUrl"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type historyRecord struct {
	ID        string `json:"_id"`
	Titulo    string `json:"titulo"`
	Descricao string `json:"descricao"`
	VideoURL  string `json:"videoUrl"`
	CreatedAt string `json:"createdAt"`
}

type userRecord struct {
	ID string `json:"_id"`
}

func (r historyRecord) normalize() (HistoryEntry, bool) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return HistoryEntry{}, false
	}

	entry := HistoryEntry{
		ID:          id,
		Title:       strings.TrimSpace(r.Titulo),
		Description: strings.TrimSpace(r.Descricao),
		VideoURL:    strings.TrimSpace(r.VideoURL),
	}

	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		entry.CreatedAt = t
	}

	return entry, true
}
