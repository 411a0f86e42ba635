// Package uploader sends confirmed detections to the remote timing endpoint.
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/bibwatch/internal/result"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single upload request.
const DefaultTimeout = 15 * time.Second

// ErrNoEndpoint is returned when the client has no URL configured.
var ErrNoEndpoint = errors.New("upload endpoint not configured")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upload rejected: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("upload rejected: HTTP %d: %s", e.StatusCode, e.Body)
}

// Config holds the endpoint and credentials.
type Config struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
}

// Client posts CSV batches with basic authentication.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates an upload client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Payload renders the header followed by rows, one per line.
func Payload(rows []string) []byte {
	var b strings.Builder
	b.WriteString(result.UploadHeader)
	for _, r := range rows {
		b.WriteByte('\n')
		b.WriteString(r)
	}
	return []byte(b.String())
}

// Send transmits rows in one request. Any 2xx response is success.
func (c *Client) Send(ctx context.Context, rows []string) error {
	if c.cfg.URL == "" {
		return ErrNoEndpoint
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	batchID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(Payload(rows)))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	req.Header.Set("X-Batch-ID", batchID)
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload batch %s: %w", batchID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("upload accepted",
		"batch_id", batchID,
		"rows", len(rows),
		"status", resp.StatusCode,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
