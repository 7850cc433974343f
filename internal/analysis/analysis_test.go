package analysis_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/JaimeStill/steward/internal/analysis"
	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/internal/gateway"
	"github.com/JaimeStill/steward/internal/gateway/gatewaytest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

var discard = slog.New(slog.DiscardHandler)

func TestFetch(t *testing.T) {
	backend := gatewaytest.New(t)
	backend.PutAnalysis(contract.ComplianceAnalysis{
		ComplianceID: "c1",
		OverallScore: 80.0,
		Summary:      "Mostly compliant",
	})
	fetcher := analysis.NewFetcher(backend.Gateway(), time.Second, discard)
	ctx := context.Background()

	got, err := fetcher.Fetch(ctx, "c1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.OverallScore != 80.0 || got.Summary != "Mostly compliant" {
		t.Errorf("analysis: got %+v", got)
	}

	if _, err := fetcher.Fetch(ctx, "unknown"); !errors.Is(err, analysis.ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}

	backend.Fail(gateway.EndpointCompliance, http.StatusServiceUnavailable)
	if _, err := fetcher.Fetch(ctx, "c1"); !errors.Is(err, analysis.ErrTransient) {
		t.Errorf("5xx: got %v, want ErrTransient", err)
	}

	backend.Fail(gateway.EndpointCompliance, http.StatusBadRequest)
	if _, err := fetcher.Fetch(ctx, "c1"); !errors.Is(err, analysis.ErrTransient) {
		t.Errorf("4xx: got %v, want ErrTransient", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	backend := gatewaytest.New(t)
	backend.PutAnalysis(contract.ComplianceAnalysis{ComplianceID: "slow"})
	backend.DelayAnalysis("slow", time.Second)

	fetcher := analysis.NewFetcher(backend.Gateway(), 50*time.Millisecond, discard)

	_, err := fetcher.Fetch(context.Background(), "slow")
	if !errors.Is(err, analysis.ErrTransient) {
		t.Errorf("timeout: got %v, want ErrTransient", err)
	}
}

type sourceFunc func(ctx context.Context, id string) (contract.ComplianceAnalysis, error)

func (f sourceFunc) Analysis(ctx context.Context, id string) (contract.ComplianceAnalysis, error) {
	return f(ctx, id)
}

func TestFetchCancellationIsNotAFailure(t *testing.T) {
	source := sourceFunc(func(ctx context.Context, id string) (contract.ComplianceAnalysis, error) {
		<-ctx.Done()
		return contract.ComplianceAnalysis{}, ctx.Err()
	})
	fetcher := analysis.NewFetcher(source, 0, discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, "c1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: got %v, want context.Canceled", err)
	}
	if errors.Is(err, analysis.ErrTransient) {
		t.Error("cancellation should not be reported as transient")
	}
}

func TestFetchFillsMissingID(t *testing.T) {
	source := sourceFunc(func(ctx context.Context, id string) (contract.ComplianceAnalysis, error) {
		return contract.ComplianceAnalysis{OverallScore: 50}, nil
	})
	fetcher := analysis.NewFetcher(source, 0, discard)

	got, err := fetcher.Fetch(context.Background(), "c9")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.ComplianceID != "c9" {
		t.Errorf("compliance id: got %q, want c9", got.ComplianceID)
	}
}

func TestSchedulerRunsAfterDelay(t *testing.T) {
	s := analysis.NewScheduler(context.Background())
	defer s.Stop()

	done := make(chan time.Duration, 1)
	start := time.Now()
	s.Schedule("a", 30*time.Millisecond, func(ctx context.Context) {
		done <- time.Since(start)
	})

	select {
	case elapsed := <-done:
		if elapsed < 30*time.Millisecond {
			t.Errorf("ran after %v, want at least 30ms", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestSchedulerCancelPreventsRun(t *testing.T) {
	s := analysis.NewScheduler(context.Background())

	var ran atomic.Bool
	s.Schedule("a", 50*time.Millisecond, func(ctx context.Context) {
		ran.Store(true)
	})

	if !s.Cancel("a") {
		t.Error("cancel should report a pending task")
	}
	if s.Cancel("a") {
		t.Error("second cancel should report nothing pending")
	}

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if ran.Load() {
		t.Error("cancelled task ran")
	}
}

func TestSchedulerReplacesSameKey(t *testing.T) {
	s := analysis.NewScheduler(context.Background())
	defer s.Stop()

	var mu sync.Mutex
	var runs []string
	done := make(chan struct{})

	s.Schedule("k", 30*time.Millisecond, func(ctx context.Context) {
		mu.Lock()
		runs = append(runs, "first")
		mu.Unlock()
	})
	s.Schedule("k", 30*time.Millisecond, func(ctx context.Context) {
		mu.Lock()
		runs = append(runs, "second")
		mu.Unlock()
		close(done)
	})

	<-done
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(runs) != 1 || runs[0] != "second" {
		t.Errorf("runs: got %v, want [second]", runs)
	}
}

func TestSchedulerCancelsRunningTask(t *testing.T) {
	s := analysis.NewScheduler(context.Background())
	defer s.Stop()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	s.Schedule("a", 0, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})

	<-started
	if got := s.Pending(); len(got) != 1 || got[0] != "a" {
		t.Errorf("pending: got %v, want [a]", got)
	}
	s.Cancel("a")

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("running task was not cancelled")
	}
}

func TestSchedulerStop(t *testing.T) {
	s := analysis.NewScheduler(context.Background())

	var ran atomic.Int32
	for _, key := range []string{"a", "b", "c"} {
		s.Schedule(key, time.Hour, func(ctx context.Context) { ran.Add(1) })
	}
	if got := len(s.Pending()); got != 3 {
		t.Errorf("pending: got %d, want 3", got)
	}

	s.Stop()

	if got := len(s.Pending()); got != 0 {
		t.Errorf("pending after stop: got %d, want 0", got)
	}
	if s.Schedule("d", 0, func(ctx context.Context) { ran.Add(1) }) {
		t.Error("schedule after stop should be refused")
	}
	if ran.Load() != 0 {
		t.Errorf("tasks ran: got %d, want 0", ran.Load())
	}
}
