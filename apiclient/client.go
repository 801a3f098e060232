package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// Config configures the HTTP client. A RateLimit of zero disables the
// outbound limit.
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// Client is the HTTP implementation of Remote.
type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     *log.Logger
}

func New(cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		panic("Logger is not initialized")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "/api"
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		base:    base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		log:     logger,
	}
}

func (c *Client) Get(ctx context.Context, path string) (Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("%s %s: rate limit: %w", method, path, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return Response{}, fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	c.log.WithFields(log.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"elapsed_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}).Debug("api request")

	out, decodeErr := decodeEnvelope(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &Error{Method: method, Path: path, Status: resp.StatusCode, Message: out.Message}
	}
	if decodeErr != nil {
		return Response{}, fmt.Errorf("%s %s: decode response: %w", method, path, decodeErr)
	}
	if !out.Success {
		return out, &Error{Method: method, Path: path, Status: resp.StatusCode, Message: out.Message}
	}
	return out, nil
}

// decodeEnvelope reads the response envelope. A body without a success
// flag is taken as bare data.
func decodeEnvelope(raw []byte) (Response, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Response{Success: true}, nil
	}
	var env struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := sonic.Unmarshal(raw, &env); err != nil || env.Success == nil {
		if err != nil && raw[0] == '{' {
			return Response{}, err
		}
		return Response{Success: true, Data: raw}, nil
	}
	var out Response
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return Response{}, err
	}
	return out, nil
}
