package api

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// maxBodySize bounds every request body; gzip bodies are measured after
// inflation.
const maxBodySize = 1 << 20

// DecompressRequests inflates gzip-encoded request bodies so handlers read
// plain JSON. Invalid gzip payloads are rejected with a 400 response. Any
// body read past limit bytes fails with *http.MaxBytesError.
func DecompressRequests(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !acceptsGzip(req.Header.Get(echo.HeaderContentEncoding)) {
				if req.Body != nil {
					req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)
				}
				return next(c)
			}

			zr, err := gzip.NewReader(req.Body)
			if err != nil {
				_ = req.Body.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}

			req.Body = http.MaxBytesReader(c.Response(), &inflatedBody{Reader: zr, zr: zr, raw: req.Body}, limit)
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func acceptsGzip(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

type inflatedBody struct {
	io.Reader
	zr  *gzip.Reader
	raw io.Closer
}

func (b *inflatedBody) Close() error {
	return errors.Join(b.zr.Close(), b.raw.Close())
}

// Deduper remembers idempotency keys of mutation requests.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

const headerIdempotencyKey = "Idempotency-Key"

// Idempotent refuses a mutation whose Idempotency-Key was already seen with
// 409. A request that fails releases its key so the client may retry.
// Requests without the header, reads, and a nil deduper pass through.
func Idempotent(d Deduper, logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			key := strings.TrimSpace(req.Header.Get(headerIdempotencyKey))
			if d == nil || key == "" || req.Method == http.MethodGet || req.Method == http.MethodHead {
				return next(c)
			}

			ctx := req.Context()
			claimed, err := d.Claim(ctx, key)
			if err != nil {
				logger.WithError(err).Warn("idempotency check failed; processing request")
				return next(c)
			}
			if !claimed {
				return c.String(http.StatusConflict, "duplicate request")
			}

			err = next(c)
			if err != nil || c.Response().Status >= http.StatusBadRequest {
				if rerr := d.Release(context.WithoutCancel(ctx), key); rerr != nil {
					logger.WithError(rerr).Warnf("release idempotency key %s", key)
				}
			}
			return err
		}
	}
}
