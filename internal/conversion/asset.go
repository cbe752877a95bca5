package conversion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotVideo rejects payloads whose declared media type is not video/*.
var ErrNotVideo = errors.New("selected file is not a video")

var videoTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".avi": "video/x-msvideo",
	".mkv": "video/x-matroska",
}

// Asset is the user-selected video pending or being converted. PreviewToken
// is the transient playable reference; it rotates on every selection, so a
// token held for a replaced asset stops resolving.
type Asset struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	DisplayName  string `json:"display_name"`
	SizeBytes    int64  `json:"size_bytes"`
	ContentType  string `json:"content_type"`
	PreviewToken string `json:"preview_token"`
}

// NewAsset validates a local file as a video selection. declaredType comes
// from the UI's drag-and-drop payload and wins over the extension lookup when
// present.
func NewAsset(path, displayName, declaredType string) (*Asset, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("file does not exist: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory")
	}

	contentType := strings.TrimSpace(declaredType)
	if contentType == "" {
		contentType = videoTypes[strings.ToLower(filepath.Ext(absPath))]
	}
	if !strings.HasPrefix(contentType, "video/") {
		return nil, ErrNotVideo
	}

	if displayName == "" {
		displayName = filepath.Base(absPath)
	}

	return &Asset{
		ID:           uuid.NewString(),
		Path:         absPath,
		DisplayName:  displayName,
		SizeBytes:    info.Size(),
		ContentType:  contentType,
		PreviewToken: uuid.NewString(),
	}, nil
}
