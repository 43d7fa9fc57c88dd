package jobcontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/salesight/salesight/internal/domain/entities"
)

func TestJobBeginCarriesMetadata(t *testing.T) {
	jobID := uuid.New()
	ctx, cancel := JobBegin(context.Background(), jobID, "extract", 3, time.Minute)
	defer cancel()

	if got, ok := GetJobID(ctx); !ok || got != jobID {
		t.Fatalf("job id not carried: %v %v", got, ok)
	}
	if got, ok := GetJobKind(ctx); !ok || got != "extract" {
		t.Fatalf("job kind not carried: %v", got)
	}
	if got := GetWorkerID(ctx); got != 3 {
		t.Fatalf("worker id = %d", got)
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("job context must carry a deadline")
	}
}

func TestRun_TerminalErrorDoesNotRetry(t *testing.T) {
	ctx, cancel := JobBegin(context.Background(), uuid.New(), "extract", 0, time.Minute)
	defer cancel()

	calls := 0
	err := Run(ctx, func(context.Context) error {
		calls++
		return entities.ValidationErrorf("bad schema")
	})
	if !errors.Is(err, entities.ErrValidation) {
		t.Fatalf("terminal error must surface unchanged, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("terminal error must not retry, calls = %d", calls)
	}
}

func TestRun_TransientErrorRetriesThenSucceeds(t *testing.T) {
	old := retryBaseDelay
	retryBaseDelay = time.Millisecond
	defer func() { retryBaseDelay = old }()

	ctx, cancel := JobBegin(context.Background(), uuid.New(), "extract", 0, time.Minute)
	defer cancel()

	calls := 0
	err := Run(ctx, func(context.Context) error {
		calls++
		if calls < 2 {
			return entities.TransientErrorf("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRun_ExhaustsRetryBudget(t *testing.T) {
	ctx, cancel := JobBegin(context.Background(), uuid.New(), "extract", 0, time.Minute)
	defer cancel()
	ctx = SetMaxRetries(ctx, 1)

	calls := 0
	err := Run(ctx, func(context.Context) error {
		calls++
		return entities.TransientErrorf("still down")
	})
	if err == nil {
		t.Fatal("expected error after budget exhaustion")
	}
	if !errors.Is(err, entities.ErrTransient) {
		t.Fatalf("wrapped cause must stay transient, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	ctx, cancel := JobBegin(context.Background(), uuid.New(), "extract", 0, time.Minute)
	defer cancel()
	ctx = SetMaxRetries(ctx, 1)

	err := Run(ctx, func(context.Context) error {
		panic("nil map write")
	})
	if err == nil {
		t.Fatal("panic must surface as an error")
	}
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{entities.ValidationErrorf("bad input"), false},
		{entities.NotFoundErrorf("missing row"), false},
		{entities.TransientErrorf("anything tagged transient"), true},
		{errors.New("connection refused"), true},
		{errors.New("deadlock detected"), true},
		{errors.New("too many requests"), true},
		{errors.New("internal server error"), true},
		{errors.New("column does not exist"), false},
	}
	for _, c := range cases {
		if got := IsRetryableError(c.err); got != c.retryable {
			t.Errorf("IsRetryableError(%v) = %v, want %v", c.err, got, c.retryable)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	base := 2 * time.Second
	if got := CalculateBackoff(0, base); got != 2*time.Second {
		t.Fatalf("attempt 0 = %v", got)
	}
	if got := CalculateBackoff(2, base); got != 8*time.Second {
		t.Fatalf("attempt 2 = %v", got)
	}
	if got := CalculateBackoff(30, base); got != 60*time.Second {
		t.Fatalf("backoff must cap at 60s, got %v", got)
	}
	if got := CalculateBackoff(-1, base); got != 2*time.Second {
		t.Fatalf("negative attempt clamps to base, got %v", got)
	}
}
