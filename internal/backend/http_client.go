package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const uploadFieldName = "video"

// HTTPClient is the real conversion backend client.
type HTTPClient struct {
	baseURL  string
	logger   *slog.Logger
	resolver IdentityResolver

	// httpClient serves short calls; uploadClient has no timeout because a
	// submission may legitimately run for an unbounded amount of time and is
	// cancelled through its context instead.
	httpClient   *http.Client
	uploadClient *http.Client
}

func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		uploadClient: &http.Client{},
	}
	c.resolver = NewFirstUserResolver(c)
	return c
}

// SetResolver overrides the identity resolution strategy.
func (c *HTTPClient) SetResolver(r IdentityResolver) {
	c.resolver = r
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Convertly-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", networkError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp.StatusCode, string(respBody))
	}

	userID, err := c.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}

	c.logger.Info("login accepted", "user_id", userID)
	return userID, nil
}

func (c *HTTPClient) SubmitVideo(ctx context.Context, video Upload, userID string) (*ConversionResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadFieldName, video.Filename))
		if video.ContentType != "" {
			header.Set("Content-Type", video.ContentType)
		}

		part, err := mw.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, video.Content); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	endpoint := fmt.Sprintf("%s/videos/processar/%s", c.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Convertly-Request-Id", uuid.NewString())

	c.logger.Info("submitting video",
		"url", endpoint,
		"filename", video.Filename,
		"size", video.Size,
	)

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, string(respBody))
	}

	var wire processVideoResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, &APIError{Kind: KindServer, StatusCode: resp.StatusCode, Body: "malformed conversion response"}
	}
	if wire.VideoURL == "" {
		return nil, &APIError{Kind: KindServer, StatusCode: resp.StatusCode, Body: "conversion response missing video url"}
	}

	c.logger.Info("conversion finished", "status", wire.Status, "title", wire.Title)

	return &ConversionResult{
		VideoURL:    wire.VideoURL,
		Title:       wire.Title,
		Description: wire.Description,
	}, nil
}

func (c *HTTPClient) ListHistory(ctx context.Context) ([]HistoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Convertly-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, string(respBody))
	}

	var records []historyRecord
	if err := json.Unmarshal(respBody, &records); err != nil {
		return nil, &APIError{Kind: KindServer, StatusCode: resp.StatusCode, Body: "malformed history response"}
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		if entry, ok := r.normalize(); ok {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func (c *HTTPClient) listUsers(ctx context.Context) ([]userRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/usuarios", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 256*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, string(respBody))
	}

	var users []userRecord
	if err := json.Unmarshal(respBody, &users); err != nil {
		return nil, &APIError{Kind: KindServer, StatusCode: resp.StatusCode, Body: "malformed user listing"}
	}

	return users, nil
}
