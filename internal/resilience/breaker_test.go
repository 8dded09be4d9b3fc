// v0
// internal/resilience/breaker_test.go
package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := New("test", Config{MaxFailures: 2, ResetTimeout: time.Hour}, nil)
	boom := errors.New("boom")
	fail := func(ctx context.Context) error { return boom }

	if err := b.Execute(context.Background(), fail); !errors.Is(err, boom) {
		t.Fatalf("expected first failure to pass through, got %v", err)
	}
	if err := b.Execute(context.Background(), fail); !errors.Is(err, boom) {
		t.Fatalf("expected second failure to pass through, got %v", err)
	}
	if b.StateNow() != Open {
		t.Fatalf("expected Open after reaching MaxFailures, got %s", b.StateNow())
	}

	if err := b.Execute(context.Background(), fail); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected fast-fail ErrOpen, got %v", err)
	}
}

func TestBreakerHalfOpenProbeCloses(t *testing.T) {
	b := New("test", Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond}, nil)
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	if b.StateNow() != Open {
		t.Fatalf("expected Open after one failure with MaxFailures=1")
	}

	time.Sleep(15 * time.Millisecond)
	if err := b.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("expected the half-open probe to succeed, got %v", err)
	}
	if b.StateNow() != Closed {
		t.Fatalf("expected Closed after a successful probe, got %s", b.StateNow())
	}
}

func TestBreakerHalfOpenProbeReopens(t *testing.T) {
	b := New("test", Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond}, nil)
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	time.Sleep(15 * time.Millisecond)

	if err := b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("still broken") }); err == nil {
		t.Fatalf("expected the failed probe's error to propagate")
	}
	if b.StateNow() != Open {
		t.Fatalf("expected Open again after a failed probe, got %s", b.StateNow())
	}
}

func TestBreakerSuccessKeepsClosed(t *testing.T) {
	b := New("test", Config{MaxFailures: 3, ResetTimeout: time.Hour}, nil)
	for i := 0; i < 5; i++ {
		if err := b.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if b.StateNow() != Closed {
		t.Fatalf("expected Closed, got %s", b.StateNow())
	}
}
