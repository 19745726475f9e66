package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets downloads through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects downloads until the reset timeout passes.
	BreakerOpen
	// BreakerHalfOpen lets a single probe through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects downloads. It matches
// ErrUnavailable.
var ErrCircuitOpen = eris.Wrap(&TransportError{Err: errors.New("circuit breaker is open")}, "fetcher")

// BreakerConfig controls when the breaker opens.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Zero or less disables it.
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultBreakerResetTimeout applies when BreakerConfig.ResetTimeout is unset.
const DefaultBreakerResetTimeout = 30 * time.Second

// BreakerDownloader stops calling a failing source for a while so lookups
// fall back to stored data immediately instead of waiting on timeouts. It
// never retries.
type BreakerDownloader struct {
	next Downloader
	cfg  BreakerConfig

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	lastFailure         time.Time
	probing             bool

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreakerDownloader wraps next. With a non-positive threshold next is
// returned unchanged.
func NewBreakerDownloader(next Downloader, cfg BreakerConfig) Downloader {
	if cfg.FailureThreshold <= 0 {
		return next
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerResetTimeout
	}
	return &BreakerDownloader{next: next, cfg: cfg, nowFunc: time.Now}
}

// Download passes the call through unless the breaker is open. While half
// open only one probe is in flight; concurrent callers are rejected.
func (b *BreakerDownloader) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	probe, ok := b.allow()
	if !ok {
		return nil, ErrCircuitOpen
	}
	body, err := b.next.Download(ctx, url)
	b.record(err, probe)
	return body, err
}

// State returns the current breaker state.
func (b *BreakerDownloader) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.nowFunc().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// allow reports whether a call may proceed and whether it is the
// half-open probe.
func (b *BreakerDownloader) allow() (probe, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return false, true
	case BreakerOpen:
		if b.nowFunc().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			return false, false
		}
		b.transition(BreakerHalfOpen)
	}
	if b.probing {
		return false, false
	}
	b.probing = true
	return true, true
}

func (b *BreakerDownloader) record(err error, probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}

	if !tripsBreaker(err) {
		if b.state == BreakerHalfOpen {
			b.transition(BreakerClosed)
		}
		b.consecutiveFailures = 0
		return
	}

	b.consecutiveFailures++
	b.lastFailure = b.nowFunc()
	switch b.state {
	case BreakerClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

func (b *BreakerDownloader) transition(to BreakerState) {
	from := b.state
	b.state = to
	zap.L().Warn("fetcher: circuit breaker state change",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("consecutive_failures", b.consecutiveFailures),
	)
}

// tripsBreaker counts network failures and server errors. Client errors and
// cancellation say nothing about the source's health.
func tripsBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return errors.Is(err, ErrUnavailable)
}
