package dashboard_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/internal/dashboard"
	"github.com/JaimeStill/steward/internal/gateway"
	"github.com/JaimeStill/steward/internal/gateway/gatewaytest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

var discard = slog.New(slog.DiscardHandler)

func ptr[T any](v T) *T { return &v }

func seeded(t *testing.T) *gatewaytest.Backend {
	t.Helper()

	backend := gatewaytest.New(t)
	created := contract.Timestamp{Time: time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)}
	backend.SetHistory(contract.PromptHistory{
		CurrentVersion: ptr("v1"),
		Versions: []contract.PromptVersion{
			{ID: "v1", Content: "You are helpful.", CreatedAt: created, Score: ptr(0.72)},
		},
	})

	evals := make([]contract.EvaluationResult, 8)
	for i := range evals {
		evals[i] = contract.EvaluationResult{
			EvaluationID:     "e" + strconv.Itoa(i+1),
			PromptVersion:    ptr("v1"),
			Scores:           contract.EvaluationScores{Overall: 0.5 + float64(i)/100},
			GuidelineResults: []contract.GuidelineCompliance{},
		}
	}
	backend.SetEvaluations(evals)
	return backend
}

func TestLoadData(t *testing.T) {
	backend := seeded(t)
	ctrl := dashboard.New(backend.Gateway(), 6, discard)

	if err := ctrl.LoadData(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.History == nil {
		t.Fatal("history: got nil")
	}
	if current, ok := snap.History.Current(); !ok || current.ID != "v1" {
		t.Errorf("current version: got %+v, %v", current, ok)
	}
	if len(snap.Recent) != 6 {
		t.Errorf("recent: got %d, want 6", len(snap.Recent))
	}
	if snap.Error != "" || snap.Loading {
		t.Errorf("state: error=%q loading=%v", snap.Error, snap.Loading)
	}
	if diff := cmp.Diff([]int{6}, backend.RecentLimits()); diff != "" {
		t.Errorf("recent limits (-want +got):\n%s", diff)
	}
}

func TestLoadDataClampsLimit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, gateway.MinRecentLimit},
		{-3, gateway.MinRecentLimit},
		{6, 6},
		{500, gateway.MaxRecentLimit},
	}

	for _, tt := range tests {
		backend := seeded(t)
		ctrl := dashboard.New(backend.Gateway(), tt.limit, discard)

		if err := ctrl.LoadData(context.Background()); err != nil {
			t.Fatalf("limit %d: %v", tt.limit, err)
		}
		if got := backend.RecentLimits(); len(got) != 1 || got[0] != tt.want {
			t.Errorf("limit %d: got %v, want [%d]", tt.limit, got, tt.want)
		}
	}
}

func TestLoadDataIsIdempotent(t *testing.T) {
	backend := seeded(t)
	ctrl := dashboard.New(backend.Gateway(), 6, discard)
	ctx := context.Background()

	if err := ctrl.LoadData(ctx); err != nil {
		t.Fatalf("first load: %v", err)
	}
	first := ctrl.Snapshot()

	if err := ctrl.LoadData(ctx); err != nil {
		t.Fatalf("second load: %v", err)
	}
	second := ctrl.Snapshot()

	if diff := cmp.Diff(first.History, second.History); diff != "" {
		t.Errorf("history (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Recent, second.Recent); diff != "" {
		t.Errorf("recent (-first +second):\n%s", diff)
	}
}

func TestLoadDataFailureKeepsPreviousData(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{"history fails", gateway.EndpointHistory},
		{"recent fails", gateway.EndpointRecent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := seeded(t)
			ctrl := dashboard.New(backend.Gateway(), 6, discard)
			ctx := context.Background()

			if err := ctrl.LoadData(ctx); err != nil {
				t.Fatalf("load: %v", err)
			}
			before := ctrl.Snapshot()

			backend.SetHistory(contract.PromptHistory{Versions: []contract.PromptVersion{}})
			backend.SetEvaluations([]contract.EvaluationResult{})
			backend.Fail(tt.endpoint, http.StatusInternalServerError)

			err := ctrl.LoadData(ctx)
			if !errors.Is(err, dashboard.ErrLoadFailed) {
				t.Fatalf("error: got %v, want ErrLoadFailed", err)
			}

			after := ctrl.Snapshot()
			if after.Error != dashboard.LoadFailedMessage {
				t.Errorf("banner: got %q", after.Error)
			}
			if diff := cmp.Diff(before.History, after.History); diff != "" {
				t.Errorf("history changed (-before +after):\n%s", diff)
			}
			if diff := cmp.Diff(before.Recent, after.Recent); diff != "" {
				t.Errorf("recent changed (-before +after):\n%s", diff)
			}

			backend.Fail(tt.endpoint, 0)
			if err := ctrl.LoadData(ctx); err != nil {
				t.Fatalf("recovery load: %v", err)
			}
			if got := ctrl.Snapshot().Error; got != "" {
				t.Errorf("banner after recovery: got %q", got)
			}
		})
	}
}

func TestLoadDataBeforeFirstSuccess(t *testing.T) {
	backend := seeded(t)
	backend.Fail(gateway.EndpointHistory, http.StatusServiceUnavailable)
	ctrl := dashboard.New(backend.Gateway(), 6, discard)

	if err := ctrl.LoadData(context.Background()); err == nil {
		t.Fatal("expected an error")
	}

	snap := ctrl.Snapshot()
	if snap.History != nil {
		t.Errorf("history: got %+v, want nil", snap.History)
	}
	if snap.Recent == nil || len(snap.Recent) != 0 {
		t.Errorf("recent: got %v, want empty", snap.Recent)
	}
}

func TestImproveWithReevaluation(t *testing.T) {
	backend := seeded(t)
	backend.OnImprove(func(req contract.ImproveRequest) contract.ImproveResponse {
		return contract.ImproveResponse{
			NewVersion:      contract.PromptVersion{ID: "v2", Content: "You are very helpful."},
			PreviousVersion: contract.PromptVersion{ID: "v1", Content: "You are helpful."},
			Message:         "ok",
			Reevaluation: &contract.ReEvaluationResult{
				Evaluations: []contract.EvaluationResult{{EvaluationID: "r1", GuidelineResults: []contract.GuidelineCompliance{}}},
				Summary:     "s",
			},
		}
	})
	ctrl := dashboard.New(backend.Gateway(), 6, discard)
	ctx := context.Background()

	resp, err := ctrl.Improve(ctx, contract.ImproveRequest{RunReevaluation: true})
	if err != nil {
		t.Fatalf("improve: %v", err)
	}
	if resp.NewVersion.ID != "v2" || resp.Message != "ok" {
		t.Errorf("response: got %+v", resp)
	}

	snap := ctrl.Snapshot()
	if snap.Reevaluation == nil || snap.Reevaluation.Summary != "s" {
		t.Errorf("reevaluation: got %+v", snap.Reevaluation)
	}
	if snap.Loading {
		t.Error("loading should be cleared")
	}
	if snap.History == nil || snap.History.CurrentVersion == nil || *snap.History.CurrentVersion != "v2" {
		t.Errorf("history after improve: got %+v", snap.History)
	}

	if err := ctrl.LoadData(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := *ctrl.Snapshot().History.CurrentVersion; got != "v2" {
		t.Errorf("current version: got %s, want v2", got)
	}

	reqs := backend.ImproveRequests()
	if len(reqs) != 1 || !reqs[0].RunReevaluation {
		t.Errorf("improve requests: got %+v", reqs)
	}
}

func TestImproveWithoutReevaluation(t *testing.T) {
	backend := seeded(t)
	ctrl := dashboard.New(backend.Gateway(), 6, discard)
	ctx := context.Background()

	if _, err := ctrl.Improve(ctx, contract.ImproveRequest{RunReevaluation: true}); err != nil {
		t.Fatalf("first improve: %v", err)
	}
	if ctrl.Snapshot().Reevaluation == nil {
		t.Fatal("first improve should store a batch")
	}

	rationale := "tighten tone"
	if _, err := ctrl.Improve(ctx, contract.ImproveRequest{Rationale: &rationale}); err != nil {
		t.Fatalf("second improve: %v", err)
	}
	if got := ctrl.Snapshot().Reevaluation; got != nil {
		t.Errorf("reevaluation: got %+v, want nil", got)
	}
}

func TestImproveFailure(t *testing.T) {
	backend := seeded(t)
	ctrl := dashboard.New(backend.Gateway(), 6, discard)
	ctx := context.Background()

	if _, err := ctrl.Improve(ctx, contract.ImproveRequest{RunReevaluation: true}); err != nil {
		t.Fatalf("improve: %v", err)
	}
	before := ctrl.Snapshot()
	historyCalls := backend.Calls(gateway.EndpointHistory)

	backend.Fail(gateway.EndpointImprove, http.StatusBadRequest)

	_, err := ctrl.Improve(ctx, contract.ImproveRequest{RunReevaluation: true})
	if !errors.Is(err, dashboard.ErrImproveFailed) {
		t.Fatalf("error: got %v, want ErrImproveFailed", err)
	}
	if !errors.Is(err, gateway.ErrRejected) {
		t.Errorf("error: got %v, want wrapped ErrRejected", err)
	}

	after := ctrl.Snapshot()
	if after.Error != dashboard.ImproveFailedMessage {
		t.Errorf("banner: got %q", after.Error)
	}
	if after.Loading {
		t.Error("loading should be cleared")
	}
	if diff := cmp.Diff(before.Reevaluation, after.Reevaluation); diff != "" {
		t.Errorf("reevaluation changed (-before +after):\n%s", diff)
	}
	if n := backend.Calls(gateway.EndpointHistory); n != historyCalls {
		t.Errorf("failed improve should not reload: history calls %d, want %d", n, historyCalls)
	}
}

func TestImproveClearsBanner(t *testing.T) {
	backend := seeded(t)
	backend.Fail(gateway.EndpointRecent, http.StatusBadGateway)
	ctrl := dashboard.New(backend.Gateway(), 6, discard)
	ctx := context.Background()

	ctrl.LoadData(ctx)
	if ctrl.Snapshot().Error == "" {
		t.Fatal("banner should be set")
	}

	backend.Fail(gateway.EndpointRecent, 0)
	if _, err := ctrl.Improve(ctx, contract.ImproveRequest{}); err != nil {
		t.Fatalf("improve: %v", err)
	}
	if got := ctrl.Snapshot().Error; got != "" {
		t.Errorf("banner: got %q, want empty", got)
	}
}

type interval time.Duration

func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

func TestWatchSchedule(t *testing.T) {
	backend := seeded(t)
	ctrl := dashboard.New(backend.Gateway(), 6, discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.WatchSchedule(ctx, interval(20*time.Millisecond))
	}()

	deadline := time.After(5 * time.Second)
	for backend.Calls(gateway.EndpointHistory) < 3 {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatalf("refreshes: got %d, want at least 3", backend.Calls(gateway.EndpointHistory))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	if ctrl.Snapshot().History == nil {
		t.Error("scheduled refresh did not load history")
	}
}

func TestWatchRejectsBadSpec(t *testing.T) {
	ctrl := dashboard.New(seeded(t).Gateway(), 6, discard)

	if err := ctrl.Watch(context.Background(), "not a schedule"); err == nil {
		t.Error("expected a parse error")
	}
}

func TestChangedFiresOnLoad(t *testing.T) {
	ctrl := dashboard.New(seeded(t).Gateway(), 6, discard)
	changed := ctrl.Changed()

	select {
	case <-changed:
		t.Fatal("changed closed before any state change")
	default:
	}

	if err := ctrl.LoadData(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("changed not closed after load")
	}

	select {
	case <-ctrl.Changed():
		t.Error("a fresh channel should stay open until the next change")
	default:
	}
}
