// Package export turns documents into deliverables: PDFs produced by an
// external LaTeX compiler service and ZIP bundles.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rendis/procdoc/pkg/schema"
)

const (
	defaultCompileTimeout  = 60 * time.Second
	defaultMaxPDFSize      = 50 * 1024 * 1024 // 50MB
	defaultRetryDelay      = 500 * time.Millisecond
	defaultMaxRetryDelay   = 10 * time.Second
	defaultBreakerCooldown = 30 * time.Second
	maxErrorBody           = 4 * 1024
)

// CompilerConfig configures the PDF compiler client.
type CompilerConfig struct {
	URL        string
	Timeout    time.Duration // per attempt
	MaxPDFSize int64

	// Retries is the number of extra attempts after a transient failure
	// (network error, 429, 502, 503, 504). Zero disables retrying.
	Retries       int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// BreakerThreshold consecutive transient failures open the circuit for
	// BreakerCooldown. Zero disables the breaker.
	BreakerThreshold int
	BreakerCooldown  time.Duration

	Logger *slog.Logger
}

// Compiler posts LaTeX source to the compiler service and returns PDF bytes.
// The service receives the source as a text/x-tex body and answers with
// application/pdf on success.
type Compiler struct {
	config  CompilerConfig
	client  *http.Client
	breaker *breaker
	logger  *slog.Logger
}

// NewCompiler validates cfg and creates a Compiler. An empty URL yields a
// Compiler whose Compile always fails with COMPILE_ERROR.
func NewCompiler(cfg CompilerConfig) (*Compiler, error) {
	if cfg.URL != "" {
		u, err := url.ParseRequestURI(cfg.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid compiler url %q", cfg.URL).WithField("compiler_url")
		}
	}
	if cfg.Retries < 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "compiler retries must not be negative").WithField("compiler_retries")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCompileTimeout
	}
	if cfg.MaxPDFSize <= 0 {
		cfg.MaxPDFSize = defaultMaxPDFSize
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = defaultMaxRetryDelay
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Compiler{
		config:  cfg,
		client:  &http.Client{Transport: transport},
		breaker: newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		logger:  logger,
	}, nil
}

// Enabled reports whether a compiler URL is configured.
func (c *Compiler) Enabled() bool { return c.config.URL != "" }

// BreakerState reports the state of the compiler circuit breaker.
func (c *Compiler) BreakerState() BreakerState { return c.breaker.current() }

// Compile renders source to PDF. Every failure is reported as COMPILE_ERROR.
// Transient failures are retried with exponential backoff.
func (c *Compiler) Compile(ctx context.Context, source string) ([]byte, error) {
	if !c.Enabled() {
		return nil, schema.NewError(schema.ErrCodeCompile, "no PDF compiler configured")
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.Retries; attempt++ {
		if attempt > 0 {
			delay := backoff(c.config.RetryDelay, c.config.MaxRetryDelay, attempt-1)
			c.logger.Warn("retrying pdf compile", "attempt", attempt+1, "delay", delay, "error", lastErr)
			if err := waitBackoff(ctx, delay); err != nil {
				return nil, schema.NewError(schema.ErrCodeCompile, "compile cancelled").WithCause(err)
			}
		}

		ok, remaining := c.breaker.allow()
		if !ok {
			return nil, schema.NewError(schema.ErrCodeCompile, "compiler unavailable: circuit open").
				WithDetails(map[string]any{
					"breaker":            BreakerOpen.String(),
					"cooldown_remaining": remaining.String(),
				})
		}

		pdf, retry, err := c.attempt(ctx, source)
		if err == nil {
			c.breaker.success()
			return pdf, nil
		}
		lastErr = err
		if !retry {
			// The service answered; a LaTeX error says nothing about its health.
			c.breaker.success()
			return nil, err
		}
		if c.breaker.failure() == BreakerOpen {
			c.logger.Error("pdf compiler circuit opened", "error", err)
		}
	}
	return nil, lastErr
}

// attempt performs one compile request. retry reports whether the failure is transient.
func (c *Compiler) attempt(ctx context.Context, source string) (pdf []byte, retry bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.config.URL, strings.NewReader(source))
	if err != nil {
		return nil, false, schema.NewError(schema.ErrCodeCompile, "failed to create compile request").WithCause(err)
	}
	req.Header.Set("Content-Type", "text/x-tex; charset=utf-8")
	req.Header.Set("Accept", "application/pdf")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retryableTransport(ctx, err),
			schema.NewErrorf(schema.ErrCodeCompile, "compiler request failed: %v", err).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, retryableStatus(resp.StatusCode),
			schema.NewErrorf(schema.ErrCodeCompile, "compiler returned %d", resp.StatusCode).
				WithDetails(map[string]any{
					"status_code": resp.StatusCode,
					"log":         strings.TrimSpace(string(body)),
					"duration_ms": time.Since(start).Milliseconds(),
				})
	}

	pdf, err = io.ReadAll(io.LimitReader(resp.Body, c.config.MaxPDFSize+1))
	if err != nil {
		return nil, retryableTransport(ctx, err),
			schema.NewError(schema.ErrCodeCompile, "failed to read compiler response").WithCause(err)
	}
	if int64(len(pdf)) > c.config.MaxPDFSize {
		return nil, false, schema.NewErrorf(schema.ErrCodeCompile, "compiled PDF exceeds %d bytes", c.config.MaxPDFSize)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		return nil, false, schema.NewError(schema.ErrCodeCompile, fmt.Sprintf("compiler returned non-PDF content (%s)",
			resp.Header.Get("Content-Type")))
	}
	return pdf, false, nil
}
