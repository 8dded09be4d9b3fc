// v0
// internal/resilience/breaker.go
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/HashimCodeDev/STVE/internal/metrics"
)

// State is one of the three circuit-breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// ErrOpen is returned by Execute while the breaker is Open and the
// reset timeout has not yet elapsed, or while a half-open probe is in
// flight — a fast-fail, not a real call failure.
var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config tunes a Breaker's failure tolerance and cooldown.
type Config struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// Breaker wraps a risky outbound call (here: the summariser's HTTP
// call to an LLM endpoint) with a Closed/Open/HalfOpen state machine,
// grounded on a fail-count-threshold circuit breaker pattern: a
// fail-count threshold opens the breaker, a cooldown permits one
// half-open probe, success on that
// probe closes it again.
type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	recentFails int
	openedAt    time.Time
}

// New returns a Breaker that opens after cfg.MaxFailures consecutive
// failures and allows a single retry attempt once cfg.ResetTimeout has
// elapsed since it opened.
func New(name string, cfg Config, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{name: name, cfg: cfg, logger: logger, state: Closed}
}

// Execute runs op, fast-failing with ErrOpen if the breaker is Open
// and its cooldown has not elapsed. Once the cooldown elapses, exactly
// one caller is let through as a half-open probe; its outcome decides
// whether the breaker closes or reopens.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	state := b.state
	cooled := state == Open && time.Since(b.openedAt) >= b.cfg.ResetTimeout
	if cooled {
		b.state = HalfOpen
	}
	b.mu.Unlock()

	if cooled {
		return b.probe(ctx, op)
	}
	if state != Closed {
		return ErrOpen
	}

	err := op(ctx)
	if err == nil {
		b.onSuccess()
		return nil
	}
	b.onFailure(err)
	return err
}

// probe runs one trial call while the breaker is past its cooldown,
// transitioning to HalfOpen for its duration.
func (b *Breaker) probe(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	b.state = HalfOpen
	b.mu.Unlock()

	err := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.state = Open
		b.openedAt = time.Now()
		b.logger.Warn("breaker_probe_failed", slog.String("name", b.name), slog.Any("err", err))
		metrics.IncBreakerOpened(b.name)
		return err
	}
	b.state = Closed
	b.recentFails = 0
	b.logger.Info("breaker_closed_after_probe", slog.String("name", b.name))
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.recentFails = 0
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails++
	if b.recentFails >= b.cfg.MaxFailures {
		b.state = Open
		b.openedAt = time.Now()
		b.logger.Error("breaker_opened", slog.String("name", b.name), slog.Int("failures", b.recentFails))
		metrics.IncBreakerOpened(b.name)
	}
}

// StateNow reports the breaker's current state, for diagnostics.
func (b *Breaker) StateNow() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
