// Package preview streams the currently selected asset to the UI's video
// player before submission. Access goes through the asset's preview token;
// tokens rotate on selection, so references to cleared or replaced assets
// stop resolving instead of leaking file access.
package preview

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/convertly/convertly-agent/internal/conversion"
)

// AssetResolver resolves a preview token to the live asset, if any.
type AssetResolver interface {
	AssetForPreviewToken(token string) (*conversion.Asset, bool)
}

type Server struct {
	resolver AssetResolver
	logger   *slog.Logger
}

func NewServer(resolver AssetResolver, logger *slog.Logger) *Server {
	return &Server{resolver: resolver, logger: logger}
}

// Serve streams the asset behind the token with byte-range support.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, token string) error {
	asset, ok := s.resolver.AssetForPreviewToken(token)
	if !ok {
		http.Error(w, "preview not available", http.StatusNotFound)
		return nil
	}

	file, err := os.Open(asset.Path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open asset: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat asset: %w", err)
	}
	size := stat.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", asset.ContentType)

	byteRange, err := ParseRange(r.Header.Get("Range"), size)

	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if err != nil && err != ErrInvalidRange {
		return err
	}

	if byteRange == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", strconv.FormatInt(byteRange.Length(), 10))
	w.Header().Set("Content-Range", byteRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(byteRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	io.CopyN(w, file, byteRange.Length())
	return nil
}
