package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayModes(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		retry  int
		want   time.Duration
	}{
		{"fixed stays flat", Policy{Mode: BackoffFixed, Initial: time.Second, Max: time.Minute}, 3, time.Second},
		{"linear grows", Policy{Mode: BackoffLinear, Initial: time.Second, Max: time.Minute}, 3, 3 * time.Second},
		{"linear capped", Policy{Mode: BackoffLinear, Initial: time.Second, Max: 2 * time.Second}, 5, 2 * time.Second},
		{"exponential grows", Policy{Mode: BackoffExponential, Initial: time.Second, Max: time.Minute}, 3, 4 * time.Second},
		{"exponential capped", Policy{Mode: BackoffExponential, Initial: time.Second, Max: 3 * time.Second}, 4, 3 * time.Second},
		{"zero retry count", DefaultPolicy(), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.retry); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.retry, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Errorf("default policy must validate: %v", err)
	}
	bad := Policy{Mode: BackoffFixed, Initial: 0, Max: time.Second}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero initial delay")
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{Mode: BackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 3}
	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	p := Policy{Mode: BackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 2}
	sentinel := errors.New("still broken")
	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("want sentinel error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (first try plus two retries)", attempts)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	p := Policy{Mode: BackoffFixed, Initial: time.Hour, Max: time.Hour, MaxRetries: 5}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func() error { return errors.New("transient") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
