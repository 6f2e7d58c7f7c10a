package resilience_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/fearkeeper/internal/resilience"
)

var errTest = errors.New("test error")

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBreaker(t *testing.T) (*resilience.CircuitBreaker, *clock, *[]resilience.State) {
	t.Helper()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	var transitions []resilience.State
	cb := resilience.New(resilience.Config{
		Name:         "test",
		MaxFailures:  3,
		ResetTimeout: time.Minute,
		HalfOpenMax:  2,
		Now:          clk.Now,
		OnStateChange: func(_ string, _, to resilience.State) {
			transitions = append(transitions, to)
		},
	})
	return cb, clk, &transitions
}

func fail() error    { return errTest }
func succeed() error { return nil }

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	t.Parallel()

	cb, _, transitions := newBreaker(t)
	for range 3 {
		if err := cb.Execute(fail); !errors.Is(err, errTest) {
			t.Fatalf("Execute = %v, want errTest", err)
		}
	}
	if cb.State() != resilience.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, resilience.ErrCircuitOpen) || called {
		t.Fatalf("open breaker: err=%v called=%v", err, called)
	}
	if len(*transitions) != 1 || (*transitions)[0] != resilience.StateOpen {
		t.Errorf("transitions = %v", *transitions)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cb, _, _ := newBreaker(t)
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	if cb.State() != resilience.StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		probes []func() error
		want   resilience.State
	}{
		{name: "successful probes close", probes: []func() error{succeed, succeed}, want: resilience.StateClosed},
		{name: "failed probe re-opens", probes: []func() error{succeed, fail}, want: resilience.StateOpen},
		{name: "single success stays half-open", probes: []func() error{succeed}, want: resilience.StateHalfOpen},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cb, clk, _ := newBreaker(t)
			for range 3 {
				_ = cb.Execute(fail)
			}
			clk.Advance(time.Minute)
			if cb.State() != resilience.StateHalfOpen {
				t.Fatalf("state after timeout = %v, want half-open", cb.State())
			}
			for _, p := range tc.probes {
				_ = cb.Execute(p)
			}
			if got := cb.State(); got != tc.want {
				t.Errorf("state = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenProbeBudget(t *testing.T) {
	t.Parallel()

	cb, clk, _ := newBreaker(t)
	for range 3 {
		_ = cb.Execute(fail)
	}
	clk.Advance(time.Minute)

	// Two probes in flight exhaust the budget; a third is rejected.
	release := make(chan struct{})
	var wg sync.WaitGroup
	for range 2 {
		wg.Go(func() {
			_ = cb.Execute(func() error { <-release; return nil })
		})
	}
	deadline := time.Now().Add(time.Second)
	for {
		if err := cb.Execute(succeed); errors.Is(err, resilience.ErrCircuitOpen) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("third probe was never rejected")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb, _, transitions := newBreaker(t)
	for range 3 {
		_ = cb.Execute(fail)
	}
	cb.Reset()
	if cb.State() != resilience.StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
	if err := cb.Execute(succeed); err != nil {
		t.Fatalf("Execute after reset: %v", err)
	}
	if got := len(*transitions); got != 2 {
		t.Errorf("transitions = %v, want open then closed", *transitions)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state resilience.State
		want  string
	}{
		{resilience.StateClosed, "closed"},
		{resilience.StateOpen, "open"},
		{resilience.StateHalfOpen, "half-open"},
		{resilience.State(99), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
