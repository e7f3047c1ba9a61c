package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bridgelet/bridgelet/internal/config"
)

// Client talks to the object-storage service fronting the chat file bucket.
// All operations go through presigned URLs; the permanent object URL is only
// ever stored, never handed to the channel.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func New(log *slog.Logger, cfg config.ObjectStoreConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  log.With(slog.String("component", "objectstore")),
	}
}

type presignUploadRequest struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
}

type presignUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectURL string `json:"objectUrl"`
}

type presignDownloadRequest struct {
	URL string `json:"url"`
}

type presignDownloadResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// Upload stores data under the given key and returns the canonical object URL.
func (c *Client) Upload(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	var presigned presignUploadResponse
	err := c.post(ctx, "/presign/upload", presignUploadRequest{Key: key, ContentType: mimeType}, &presigned)
	if err != nil {
		return "", fmt.Errorf("presign upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presigned.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload status: %d", resp.StatusCode)
	}
	return presigned.ObjectURL, nil
}

// PresignDownload exchanges a canonical object URL for a time-limited
// download URL safe to hand to the channel.
func (c *Client) PresignDownload(ctx context.Context, objectURL string) (string, error) {
	var presigned presignDownloadResponse
	err := c.post(ctx, "/presign/download", presignDownloadRequest{URL: objectURL}, &presigned)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return presigned.DownloadURL, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
