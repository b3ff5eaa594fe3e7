package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := DefaultPolicy().Do(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := fastPolicy().Do(context.Background(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("temporary"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	err := fastPolicy().Do(context.Background(), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	err := fastPolicy().Do(context.Background(), func(_ context.Context) error {
		calls++
		return errors.New("permanent failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	err := fastPolicy().Do(ctx, func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("temporary"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_PreservesValue(t *testing.T) {
	var calls int
	got, err := DoVal(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, NewTransientError(errors.New("temporary"), 503)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var retries []int
	p := fastPolicy()
	p.OnRetry = func(attempt int, _ error) {
		retries = append(retries, attempt)
	}

	_ = p.Do(context.Background(), func(_ context.Context) error {
		return NewTransientError(errors.New("temporary"), 503)
	})
	if len(retries) != 2 {
		t.Fatalf("expected 2 retry callbacks, got %d", len(retries))
	}
	if retries[0] != 1 || retries[1] != 2 {
		t.Errorf("unexpected attempt numbers: %v", retries)
	}
}

func TestBackoff_CappedAtMax(t *testing.T) {
	p := Policy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     10,
	}.withDefaults()
	p.JitterFraction = 0

	if got := p.backoff(0); got != 100*time.Millisecond {
		t.Errorf("attempt 0: expected 100ms, got %v", got)
	}
	if got := p.backoff(5); got != 300*time.Millisecond {
		t.Errorf("attempt 5: expected cap 300ms, got %v", got)
	}
}

func TestFromConfig_Defaults(t *testing.T) {
	p := FromConfig(0, 0, 0, 0, -1)
	def := DefaultPolicy()
	if p.MaxAttempts != def.MaxAttempts {
		t.Errorf("expected default MaxAttempts %d, got %d", def.MaxAttempts, p.MaxAttempts)
	}
	if p.InitialBackoff != def.InitialBackoff {
		t.Errorf("expected default InitialBackoff %v, got %v", def.InitialBackoff, p.InitialBackoff)
	}
	if p.JitterFraction != def.JitterFraction {
		t.Errorf("expected default JitterFraction %v, got %v", def.JitterFraction, p.JitterFraction)
	}
}

func TestIsTransient_Classification(t *testing.T) {
	if IsTransient(errors.New("syntax error at or near")) {
		t.Error("permanent error classified transient")
	}
	if !IsTransient(errors.New("read tcp: connection reset by peer")) {
		t.Error("connection reset not classified transient")
	}
	if !IsTransient(NewTransientError(errors.New("x"), 503)) {
		t.Error("TransientError not classified transient")
	}
	if Classify(errors.New("boom")) != "permanent" {
		t.Error("expected permanent classification")
	}
	if Classify(NewTransientError(errors.New("x"), 429)) != "transient" {
		t.Error("expected transient classification")
	}
}

func TestIsTransient_StatusOverridesWrapper(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{404, false},
		{422, false},
		{408, true},
		{429, true},
		{503, true},
		{0, true},
	}
	for _, tc := range cases {
		err := NewTransientError(errors.New("upstream"), tc.status)
		if got := IsTransient(err); got != tc.want {
			t.Errorf("status %d: IsTransient = %v, want %v", tc.status, got, tc.want)
		}
	}
	if Classify(NewTransientError(errors.New("not found"), 404)) != "permanent" {
		t.Error("wrapped 404 should classify permanent")
	}
}
