package tiendia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/TiendiaBot/internal/config"
	"github.com/digkill/TiendiaBot/internal/telemetry"
)

// APIError is returned for every non-2xx response. Message is the server's
// message when the body carried one, otherwise the operation's fallback text.
type APIError struct {
	Operation string
	Status    int
	Message   string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute // generation endpoints answer only once the image exists
	}
	return New(cfg.TiendiaBaseURL, &http.Client{Timeout: timeout}, log)
}

func New(baseURL string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// call describes a single JSON request against the API.
type call struct {
	operation string
	method    string
	path      string
	token     string
	body      any
	fallback  string
}

func (c *Client) do(ctx context.Context, in call, out any) error {
	baseURL, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	endpoint, err := url.Parse(in.path)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	fullURL := baseURL.ResolveReference(endpoint).String()

	var reader io.Reader
	if in.body != nil {
		payload, err := json.Marshal(in.body)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", in.operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in.token != "" {
		req.Header.Set("Authorization", "Bearer "+in.token)
	}

	if c.log != nil {
		c.log.Debug("tiendia request", "operation", in.operation, "method", in.method, "url", fullURL)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.ObserveAPIRequest(in.operation, "error", time.Since(start))
		return fmt.Errorf("%s: %w", in.operation, err)
	}
	defer resp.Body.Close()
	telemetry.ObserveAPIRequest(in.operation, strconv.Itoa(resp.StatusCode), time.Since(start))

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", in.operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Warn("tiendia request failed", "operation", in.operation, "status", resp.StatusCode, "body", truncateBody(rawBody))
		}
		return &APIError{
			Operation: in.operation,
			Status:    resp.StatusCode,
			Message:   errorMessage(rawBody, in.fallback),
		}
	}

	if out == nil || len(bytes.TrimSpace(rawBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(rawBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w (body=%s)", in.operation, err, truncateBody(rawBody))
	}
	return nil
}

// errorMessage extracts `message`, then `error`, from an error body.
func errorMessage(body []byte, fallback string) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(parsed.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(parsed.Error); msg != "" {
		return msg
	}
	return fallback
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
