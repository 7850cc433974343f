// Package conversation sequences chat turns and their delayed compliance
// analyses over a persisted session.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/steward/internal/analysis"
	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/internal/session"
)

// FallbackMessage is appended as the assistant turn when a chat call fails.
const FallbackMessage = "Sorry, something went wrong while processing your message. Please try again."

// AnalysisUnavailable is the advisory notice set when an analysis lookup fails.
const AnalysisUnavailable = "No compliance analysis available for the last reply."

// ErrChatFailed is returned by Send after the fallback turn has been recorded.
var ErrChatFailed = errors.New("chat failed")

// Chat sends one turn to the backend.
type Chat interface {
	SendMessage(ctx context.Context, req contract.ChatRequest) (contract.ChatResponse, error)
}

// Fetcher retrieves the analysis for a compliance id.
type Fetcher interface {
	Fetch(ctx context.Context, complianceID string) (contract.ComplianceAnalysis, error)
}

// Snapshot is a consistent view of the controller's state.
type Snapshot struct {
	Messages    []contract.ChatMessage
	Loading     bool
	Analyzing   bool
	Analysis    *contract.ComplianceAnalysis
	ContextUsed []string
	Notice      string
}

// Controller owns the chat turn sequence. Send calls are serialized; the
// analysis phase of a turn runs in the background and is discarded if a
// newer exchange has started by the time it resolves.
type Controller struct {
	state   *session.State
	chat    Chat
	fetcher Fetcher
	sched   *analysis.Scheduler
	delay   time.Duration
	logger  *slog.Logger

	turn sync.Mutex

	mu          sync.Mutex
	exchange    uint64
	pendingKey  string
	loading     bool
	analyzing   bool
	current     *contract.ComplianceAnalysis
	contextUsed []string
	notice      string
	changed     chan struct{}
}

// New creates a Controller over state. analysisDelay is the grace period
// between a chat reply and its analysis lookup.
func New(state *session.State, chat Chat, fetcher Fetcher, analysisDelay time.Duration, logger *slog.Logger) *Controller {
	return &Controller{
		state:   state,
		chat:    chat,
		fetcher: fetcher,
		sched:   analysis.NewScheduler(context.Background()),
		delay:   analysisDelay,
		logger:  logger.With("system", "conversation"),
		changed: make(chan struct{}),
	}
}

// Send runs one chat turn. Whitespace-only text is ignored. The user turn is
// recorded before the backend is called; on success the reply is recorded
// and the analysis phase is scheduled, on failure a fallback reply is
// recorded and ErrChatFailed is returned. Session write failures are
// returned as advisory errors after the turn completes.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.turn.Lock()
	defer c.turn.Unlock()

	persistCtx := context.WithoutCancel(ctx)
	var persistErrs []error

	prior := c.state.History()
	req := contract.ChatRequest{
		Message:             text,
		SystemPrompt:        c.state.Prompt(),
		ConversationHistory: prior,
		LLMProvider:         c.state.Provider(),
		ModelName:           c.state.Model(),
	}

	if err := c.state.AppendMessage(persistCtx, contract.UserMessage(text)); err != nil {
		persistErrs = append(persistErrs, err)
	}
	c.update(func() {
		c.loading = true
		c.notice = ""
	})

	resp, err := c.chat.SendMessage(ctx, req)
	if err != nil {
		c.logger.Error("chat failed", "error", err)

		if perr := c.state.AppendMessage(persistCtx, contract.AssistantMessage(FallbackMessage)); perr != nil {
			persistErrs = append(persistErrs, perr)
		}
		c.update(func() {
			c.loading = false
		})
		return errors.Join(fmt.Errorf("%w: %w", ErrChatFailed, err), errors.Join(persistErrs...))
	}

	if err := c.state.AppendMessage(persistCtx, contract.AssistantMessage(resp.Response)); err != nil {
		persistErrs = append(persistErrs, err)
	}

	c.beginAnalysis(resp)

	if len(persistErrs) > 0 {
		return fmt.Errorf("session write: %w", errors.Join(persistErrs...))
	}
	return nil
}

func (c *Controller) beginAnalysis(resp contract.ChatResponse) {
	var (
		id       uint64
		previous string
	)

	c.update(func() {
		c.loading = false
		c.exchange++
		id = c.exchange
		c.contextUsed = slices.Clone(resp.ContextUsed)
		previous = c.pendingKey
		c.pendingKey = resp.ComplianceID
		c.analyzing = resp.ComplianceID != ""
	})

	if previous != "" {
		c.sched.Cancel(previous)
	}

	if resp.ComplianceID == "" {
		c.logger.Warn("chat reply carried no compliance id, skipping analysis")
		return
	}

	complianceID := resp.ComplianceID
	scheduled := c.sched.Schedule(complianceID, c.delay, func(ctx context.Context) {
		c.runAnalysis(ctx, id, complianceID)
	})
	if !scheduled {
		c.update(func() {
			if c.exchange == id {
				c.analyzing = false
			}
		})
	}
}

func (c *Controller) runAnalysis(ctx context.Context, id uint64, complianceID string) {
	result, err := c.fetcher.Fetch(ctx, complianceID)

	c.update(func() {
		if id != c.exchange {
			c.logger.Debug("stale analysis discarded", "compliance_id", complianceID)
			return
		}

		c.analyzing = false
		c.pendingKey = ""

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Warn("analysis fetch failed", "compliance_id", complianceID, "error", err)
			c.notice = AnalysisUnavailable
			return
		}

		c.current = &result
	})
}

// ClearHistory empties the message log, drops the current analysis, cancels
// any pending lookup, and erases the persisted history. It waits for an
// in-flight Send to finish.
func (c *Controller) ClearHistory(ctx context.Context) error {
	c.turn.Lock()
	defer c.turn.Unlock()

	var pending string
	c.update(func() {
		c.exchange++
		pending = c.pendingKey
		c.pendingKey = ""
		c.analyzing = false
		c.current = nil
		c.contextUsed = nil
		c.notice = ""
	})

	if pending != "" {
		c.sched.Cancel(pending)
	}

	return c.state.ClearHistory(ctx)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until cond holds for a snapshot or ctx ends, returning the
// last snapshot observed.
func (c *Controller) Wait(ctx context.Context, cond func(Snapshot) bool) (Snapshot, error) {
	for {
		c.mu.Lock()
		snap := c.snapshotLocked()
		changed := c.changed
		c.mu.Unlock()

		if cond(snap) {
			return snap, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Idle reports whether no chat call or analysis lookup is in flight.
func Idle(s Snapshot) bool {
	return !s.Loading && !s.Analyzing
}

// Close cancels any pending analysis and waits for running lookups.
func (c *Controller) Close() {
	c.sched.Stop()
	c.update(func() {
		c.analyzing = false
		c.pendingKey = ""
	})
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Messages:    c.state.History(),
		Loading:     c.loading,
		Analyzing:   c.analyzing,
		ContextUsed: slices.Clone(c.contextUsed),
		Notice:      c.notice,
	}
	if c.current != nil {
		current := *c.current
		current.GuidelineResults = slices.Clone(c.current.GuidelineResults)
		snap.Analysis = &current
	}
	return snap
}

func (c *Controller) update(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn()
	close(c.changed)
	c.changed = make(chan struct{})
}
