package redis

import (
	"errors"
	"testing"
	"time"
)

var errProbe = errors.New("redis down")

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(func() error { return errProbe })
	}
}

func TestBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("initial state = %v, want closed", got)
	}
}

func TestBreaker_OpensAtThresholdAndRejects(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)

	trip(cb, 2)
	if got := cb.CurrentState(); got != StateClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}
	trip(cb, 1)
	if got := cb.CurrentState(); got != StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if err != ErrCircuitOpen {
		t.Errorf("open breaker returned %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("open breaker still invoked the call")
	}
}

func TestBreaker_ProbeClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	trip(cb, 2)

	time.Sleep(60 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe call returned %v", err)
	}
	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("state after successful probe = %v, want closed", got)
	}
}

func TestBreaker_ProbeReopensOnFailure(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	trip(cb, 2)

	time.Sleep(60 * time.Millisecond)
	trip(cb, 1)
	if got := cb.CurrentState(); got != StateOpen {
		t.Errorf("state after failed probe = %v, want open", got)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)

	trip(cb, 2)
	cb.Execute(func() error { return nil })
	trip(cb, 2)

	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("state = %v, want closed (success should reset the count)", got)
	}
}

func TestBreaker_StateChangeCallbackSequence(t *testing.T) {
	var seen []State
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	cb.OnStateChange = func(from, to State) { seen = append(seen, to) }

	trip(cb, 1)
	time.Sleep(60 * time.Millisecond)
	cb.Execute(func() error { return nil })

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}
