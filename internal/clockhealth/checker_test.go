package clockhealth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kprusa/dvrouted/internal/clockutil"
)

func TestChecker_HealthyWithinThreshold(t *testing.T) {
	clock := clockutil.NewFakeClock(time.Now())
	c := NewChecker(clock)
	c.QueryFunc = func(string) (time.Duration, error) { return 10 * time.Millisecond, nil }

	c.check(context.Background())

	st := c.Status()
	if st.Phase != Healthy {
		t.Errorf("Phase = %s, want healthy", st.Phase)
	}
}

func TestChecker_UnhealthyOffsetBeyondThreshold(t *testing.T) {
	clock := clockutil.NewFakeClock(time.Now())
	c := NewChecker(clock)
	c.QueryFunc = func(string) (time.Duration, error) { return 2 * time.Second, nil }

	c.check(context.Background())

	if st := c.Status(); st.Phase != UnhealthyOffset {
		t.Errorf("Phase = %s, want unhealthy_offset", st.Phase)
	}
}

func TestChecker_QueryError(t *testing.T) {
	clock := clockutil.NewFakeClock(time.Now())
	c := NewChecker(clock)
	wantErr := errors.New("network unreachable")
	c.QueryFunc = func(string) (time.Duration, error) { return 0, wantErr }

	c.check(context.Background())

	st := c.Status()
	if st.Phase != Error {
		t.Errorf("Phase = %s, want error", st.Phase)
	}
	if !errors.Is(st.Err, wantErr) {
		t.Errorf("Err = %v, want %v", st.Err, wantErr)
	}
}

func TestChecker_NegativeOffsetUsesAbsoluteValue(t *testing.T) {
	clock := clockutil.NewFakeClock(time.Now())
	c := NewChecker(clock)
	c.QueryFunc = func(string) (time.Duration, error) { return -2 * time.Second, nil }

	c.check(context.Background())

	if st := c.Status(); st.Phase != UnhealthyOffset {
		t.Errorf("Phase = %s, want unhealthy_offset for a large negative offset", st.Phase)
	}
}
