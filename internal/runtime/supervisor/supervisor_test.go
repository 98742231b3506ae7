package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGoAndWait(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	var ran atomic.Bool
	s.Go("one", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !ran.Load() {
		t.Error("goroutine did not run")
	}
}

func TestFirstErrorWins(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	errBoom := errors.New("boom")

	s.Go("boom", func(ctx context.Context) error { return errBoom })
	_ = s.Wait(waitCtx(t))
	s.Go("late", func(ctx context.Context) error { return errors.New("later") })

	if err := s.Err(); !errors.Is(err, errBoom) {
		t.Errorf("Err = %v, want boom", err)
	}
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	s.Go("boom", func(ctx context.Context) error { return errors.New("boom") })

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after error")
	}
}

func TestContextCanceledIsCleanExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.Cancel()

	if err := s.Wait(waitCtx(t)); err != nil {
		t.Errorf("Wait = %v, want nil for context.Canceled exits", err)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	s.Go("panics", func(ctx context.Context) error { panic("kaboom") })

	if err := s.Wait(waitCtx(t)); err == nil {
		t.Fatal("panic should surface as an error")
	}
	select {
	case <-s.Context().Done():
	default:
		t.Error("context should be cancelled after a panic")
	}
}

func TestGoRestartRestartsOnError(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil // clean exit stops the loop
	}, WithRestartBackoff(5*time.Millisecond, 20*time.Millisecond))

	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if runs.Load() != 3 {
		t.Errorf("runs = %d, want 3", runs.Load())
	}
	if s.Err() != nil {
		t.Errorf("Err = %v, restart errors should not publish by default", s.Err())
	}
}

func TestGoRestartStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	var runs atomic.Int32
	s.GoRestart("loop", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("always")
	}, WithRestartBackoff(5*time.Millisecond, 10*time.Millisecond))

	time.Sleep(50 * time.Millisecond)
	s.Cancel()
	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if runs.Load() == 0 {
		t.Error("loop never ran")
	}
}

func TestGoRestartPublishFirstError(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("first failure")
		}
		return nil
	},
		WithRestartBackoff(5*time.Millisecond, 10*time.Millisecond),
		WithPublishFirstError(true),
	)

	_ = s.Wait(waitCtx(t))
	if err := s.Err(); err == nil {
		t.Error("first restart error should be published")
	}
}

func TestWaitHonorsDeadline(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	block := make(chan struct{})
	defer close(block)

	s.Go("stuck", func(ctx context.Context) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}
