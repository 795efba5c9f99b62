// Package clockhealth polls an NTP pool to warn about wall-clock drift.
// It is a diagnostic sibling to spec.md §5's monotonic-time requirement
// for neighbor timeouts, never a substitute for it — routing.State always
// measures the 3x update-interval timeout against clockutil.Clock, not
// against this checker's result.
package clockhealth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/kprusa/dvrouted/internal/check"
	"github.com/kprusa/dvrouted/internal/clockutil"
)

const (
	defaultNTPPool   = "pool.ntp.org"
	defaultInterval  = 5 * time.Minute
	defaultThreshold = 500 * time.Millisecond
)

// Phase is the checker's current health classification.
type Phase uint8

const (
	Unchecked Phase = iota + 1
	Healthy
	UnhealthyOffset
	Error
)

func (p Phase) String() string {
	switch p {
	case Unchecked:
		return "unchecked"
	case Healthy:
		return "healthy"
	case UnhealthyOffset:
		return "unhealthy_offset"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Transition validates a phase change, panicking (in debug builds) on an
// invalid one. Any phase may move to Healthy, UnhealthyOffset or Error,
// since a fresh query always fully determines the next state; Unchecked is
// only the initial phase and is not a valid target.
func (p Phase) Transition(to Phase) Phase {
	check.Assertf(to == Healthy || to == UnhealthyOffset || to == Error, "clockhealth: invalid transition target %s", to)
	return to
}

// Status is one NTP check's result.
type Status struct {
	Offset    time.Duration
	Phase     Phase
	Err       error
	CheckedAt time.Time
}

// Checker periodically queries an NTP pool and records the clock offset.
type Checker struct {
	mu     sync.RWMutex
	status Status

	pool      string
	interval  time.Duration
	threshold time.Duration
	clock     clockutil.Clock

	// QueryFunc overrides the NTP query for testing.
	QueryFunc func(pool string) (offset time.Duration, err error)
}

// NewChecker constructs a Checker using the default public NTP pool.
func NewChecker(clock clockutil.Clock) *Checker {
	check.Assert(clock != nil, "clockhealth.NewChecker: clock must not be nil")
	return &Checker{
		pool:      defaultNTPPool,
		interval:  defaultInterval,
		threshold: defaultThreshold,
		status:    Status{Phase: Unchecked},
		clock:     clock,
	}
}

// Run blocks, checking once immediately and then every interval, until ctx
// is canceled.
func (c *Checker) Run(ctx context.Context) {
	c.check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check(ctx)
		}
	}
}

// check queries the NTP pool, records the resulting Status, and logs a
// warning when the host's wall clock is unhealthy — either unreachable or
// drifted past threshold. This is the drift warning itself; routing.State's
// neighbor timeout never reads this checker, it only measures
// clockutil.Clock deltas.
func (c *Checker) check(ctx context.Context) {
	offset, err := c.query()

	c.mu.Lock()
	now := c.clock.Now()
	if err != nil {
		c.status = Status{Err: err, Phase: c.status.Phase.Transition(Error), CheckedAt: now}
		c.mu.Unlock()
		slog.WarnContext(ctx, "clockhealth: ntp query failed", "pool", c.pool, "err", err)
		return
	}

	phase := UnhealthyOffset
	if absDuration(offset) < c.threshold {
		phase = Healthy
	}
	c.status = Status{Offset: offset, Phase: c.status.Phase.Transition(phase), CheckedAt: now}
	c.mu.Unlock()

	if phase == UnhealthyOffset {
		slog.WarnContext(ctx, "clockhealth: wall clock drift exceeds threshold",
			"offset", offset, "threshold", c.threshold)
	}
}

func (c *Checker) query() (time.Duration, error) {
	if c.QueryFunc != nil {
		return c.QueryFunc(c.pool)
	}
	resp, err := ntp.Query(c.pool)
	if err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Status returns the most recent check result.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
