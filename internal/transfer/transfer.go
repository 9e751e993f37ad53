// Package transfer fetches single files over HTTP into their final location
// without ever exposing a partial file under the destination name.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mclaunch/internal/crypto"
	"mclaunch/internal/fault"
	"mclaunch/internal/progress"
)

const (
	DefaultAttempts    = 3
	DefaultIdleTimeout = 20 * time.Second
	DefaultStep        = time.Second

	partSuffix = ".part"
	chunkSize  = 32 * 1024
)

var (
	errStatus      = errors.New("unexpected status")
	errIdleTimeout = errors.New("idle timeout")
	errTruncated   = errors.New("truncated body")
)

// Task is one file to fetch.
type Task struct {
	URL      string
	Dest     string
	Category progress.Category
	// SHA1 is verified before the rename when set.
	SHA1 string
}

// Reporter receives byte accounting. *progress.Aggregator implements it.
type Reporter interface {
	Register(c progress.Category, url string, size int64)
	Add(c progress.Category, delta int64)
}

type nopReporter struct{}

func (nopReporter) Register(progress.Category, string, int64) {}
func (nopReporter) Add(progress.Category, int64)              {}

type Engine struct {
	client      *http.Client
	reporter    Reporter
	attempts    int
	idleTimeout time.Duration
	step        time.Duration
	timer       backoff.Timer
}

type Option func(*Engine)

func WithClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithAttempts sets the total number of attempts per task, including the
// first one. Default: 3.
func WithAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// WithIdleTimeout aborts an attempt after d without receiving data.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.idleTimeout = d
		}
	}
}

// WithStep sets the linear back-off unit: retry n waits n*step.
func WithStep(d time.Duration) Option {
	return func(e *Engine) { e.step = d }
}

// WithTimer replaces the timer used to wait between attempts.
func WithTimer(t backoff.Timer) Option {
	return func(e *Engine) { e.timer = t }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		reporter:    nopReporter{},
		attempts:    DefaultAttempts,
		idleTimeout: DefaultIdleTimeout,
		step:        DefaultStep,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConnsPerHost:   32,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: e.idleTimeout,
			},
		}
	}
	return e
}

// Linear is a backoff.BackOff whose n-th delay is n*Step.
type Linear struct {
	Step    time.Duration
	attempt int
}

func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.Step
}

func (l *Linear) Reset() { l.attempt = 0 }

// Exists reports whether a completed file is present at path. The skip-if-
// present policy of every caller is built on it.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Fetch downloads task.URL into task.Dest. Data is streamed into
// "<dest>.part" which is renamed over the destination only after the body
// was fully received, synced and verified. On failure the temporary file is
// removed and the error wraps fault.ErrTransfer.
func (e *Engine) Fetch(ctx context.Context, task Task) (string, error) {
	if err := os.MkdirAll(filepath.Dir(task.Dest), 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory for %s: %w", fault.ErrTransfer, task.Dest, err)
	}

	attempt := 0
	op := func() error {
		attempt++
		err := e.attempt(ctx, task)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	var b backoff.BackOff = &Linear{Step: e.step}
	b = backoff.WithMaxRetries(b, uint64(e.attempts-1))
	b = backoff.WithContext(b, ctx)

	notify := func(err error, next time.Duration) {
		slog.Warn("Transfer attempt failed", "url", task.URL, "attempt", attempt, "retryIn", next, "error", err)
	}

	if err := backoff.RetryNotifyWithTimer(op, b, notify, e.timer); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s after %d attempt(s): %w", fault.ErrTransfer, task.URL, attempt, err)
	}
	return task.Dest, nil
}

func (e *Engine) attempt(ctx context.Context, task Task) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var idled atomic.Bool
	watchdog := time.AfterFunc(e.idleTimeout, func() {
		idled.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", "mclaunch")

	resp, err := e.client.Do(req)
	if err != nil {
		if idled.Load() {
			return errIdleTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return err
	}

	if resp.ContentLength > 0 {
		e.reporter.Register(task.Category, task.URL, resp.ContentLength)
	}

	part := task.Dest + partSuffix
	f, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create temp file: %w", err))
	}

	var written int64
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(part)
			e.reporter.Add(task.Category, -written)
		}
	}()

	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(e.idleTimeout)
			if _, werr := f.Write(buf[:n]); werr != nil {
				return backoff.Permanent(fmt.Errorf("failed to write %s: %w", part, werr))
			}
			written += int64(n)
			e.reporter.Add(task.Category, int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if idled.Load() {
				return errIdleTimeout
			}
			return rerr
		}
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		return fmt.Errorf("%w: got %d of %d bytes", errTruncated, written, resp.ContentLength)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", part, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", part, err)
	}
	if err := crypto.VerifySHA1(part, task.SHA1); err != nil {
		return err
	}
	if err := os.Rename(part, task.Dest); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to rename %s: %w", part, err))
	}

	slog.Debug("Transferred", "url", task.URL, "dest", task.Dest, "bytes", written)
	return nil
}

// checkStatusCode classifies a response: nil for 200, a permanent error for
// statuses a retry cannot fix and a retryable one otherwise.
func checkStatusCode(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound, code == http.StatusForbidden, code == http.StatusGone, code == http.StatusUnauthorized:
		return backoff.Permanent(fmt.Errorf("%w: %d", errStatus, code))
	default:
		return fmt.Errorf("%w: %d", errStatus, code)
	}
}
