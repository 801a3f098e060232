// Package config reads the console's settings from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	APIBaseURL   string
	APIToken     string
	APITimeout   time.Duration
	APIRateLimit float64
	APIBurst     int

	RedisConnection string
	CacheTTL        time.Duration
	CacheNamespace  string
	IdempotencyTTL  time.Duration

	SyncWorkers        int
	SyncBuffer         int
	SyncHandoffTimeout time.Duration

	ToastHistory int
	ListenAddr   string
	Debug        bool
	LogFormat    string
}

// Load reads .env (if any) and the process environment. Files never
// override variables that are already set.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (Config, error) {
	var errs []error
	c := Config{
		APIBaseURL:         getenv("API_BASE_URL", "/api"),
		APIToken:           os.Getenv("API_TOKEN"),
		APITimeout:         getenvDur("API_TIMEOUT", 30*time.Second, &errs),
		APIRateLimit:       getenvFloat("API_RATE_LIMIT", 20, &errs),
		APIBurst:           getenvInt("API_RATE_BURST", 10, &errs),
		RedisConnection:    os.Getenv("REDIS_CONNECTION_STRING"),
		CacheTTL:           getenvDur("CACHE_TTL", 30*time.Second, &errs),
		CacheNamespace:     getenv("CACHE_NAMESPACE", "console"),
		IdempotencyTTL:     getenvDur("IDEMPOTENCY_TTL", 24*time.Hour, &errs),
		SyncWorkers:        getenvInt("SYNC_WORKERS", 8, &errs),
		SyncBuffer:         getenvInt("SYNC_BUFFER", 256, &errs),
		SyncHandoffTimeout: getenvDur("SYNC_HANDOFF_TIMEOUT", 15*time.Millisecond, &errs),
		ToastHistory:       getenvInt("TOAST_HISTORY", 50, &errs),
		ListenAddr:         listenAddr(),
		Debug:              getenvBool("DEBUG"),
		LogFormat:          strings.ToLower(getenv("LOG_FORMAT", "text")),
	}
	if c.SyncWorkers <= 0 {
		errs = append(errs, errors.New("invalid SYNC_WORKERS: must be greater than zero"))
	}
	if c.SyncBuffer < 0 {
		errs = append(errs, errors.New("invalid SYNC_BUFFER: must not be negative"))
	}
	if c.ToastHistory <= 0 {
		errs = append(errs, errors.New("invalid TOAST_HISTORY: must be greater than zero"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat))
	}
	return c, errors.Join(errs...)
}

// RedisOptions parses RedisConnection. Both redis:// URLs and the
// "host:port,password=...,ssl=true" form are accepted. Nil means the cache
// is disabled.
func (c Config) RedisOptions() *redis.Options {
	if c.RedisConnection == "" {
		return nil
	}
	if opts, err := redis.ParseURL(c.RedisConnection); err == nil {
		return opts
	}
	parts := strings.Split(c.RedisConnection, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "password":
			opts.Password = v
		case "ssl":
			if strings.EqualFold(v, "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}

func listenAddr() string {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		return v
	}
	if v, ok := os.LookupEnv("CONSOLE_PORT"); ok {
		return ":" + v
	}
	return ":8080"
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func getenvFloat(key string, def float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, v))
		return def
	}
	return f
}

func getenvDur(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, v))
		return def
	}
	return d
}

func getenvBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}
