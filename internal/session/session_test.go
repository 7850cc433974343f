package session_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/internal/session"
	"github.com/JaimeStill/steward/pkg/database"
	"github.com/JaimeStill/steward/pkg/lifecycle"
)

var discard = slog.New(slog.DiscardHandler)

func sqliteBackend(t *testing.T, namespace string) session.Backend {
	t.Helper()

	cfg := &database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "session.db"),
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := session.Migrate(cfg, discard); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db, err := database.New(cfg, discard)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Connection().Close() })

	return session.NewSQL(db, namespace, discard)
}

func redisBackend(t *testing.T, namespace string) (session.Backend, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return session.NewRedisClient(client, "steward:test:", namespace, discard), mr
}

type backendCase struct {
	name string
	make func(t *testing.T) session.Backend
}

func backends() []backendCase {
	return []backendCase{
		{"memory", func(t *testing.T) session.Backend { return session.NewMemory() }},
		{"sqlite", func(t *testing.T) session.Backend { return sqliteBackend(t, "test") }},
		{"redis", func(t *testing.T) session.Backend {
			b, _ := redisBackend(t, "test")
			return b
		}},
	}
}

func TestBackendContract(t *testing.T) {
	ctx := context.Background()

	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t)

			if _, err := b.Get(ctx, session.SlotModel); !errors.Is(err, session.ErrNotFound) {
				t.Fatalf("get missing: got %v, want ErrNotFound", err)
			}

			if err := b.Put(ctx, session.SlotModel, []byte(`"a"`)); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := b.Put(ctx, session.SlotModel, []byte(`"b"`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}

			got, err := b.Get(ctx, session.SlotModel)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(got) != `"b"` {
				t.Errorf("value: got %s, want \"b\"", got)
			}

			if err := b.Delete(ctx, session.SlotModel); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := b.Delete(ctx, session.SlotModel); err != nil {
				t.Fatalf("delete absent: %v", err)
			}
			if _, err := b.Get(ctx, session.SlotModel); !errors.Is(err, session.ErrNotFound) {
				t.Errorf("get deleted: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			store := session.NewStore(bc.make(t), discard)

			prompts := []contract.SystemPrompt{
				{Content: "", Guidelines: []string{}},
				{Content: "Be helpful", Guidelines: []string{"g2", "g1", "g2"}},
			}
			for _, p := range prompts {
				if err := session.Save(ctx, store, session.SlotSystemPrompt, p); err != nil {
					t.Fatalf("save prompt: %v", err)
				}
				got := session.Load(ctx, store, session.SlotSystemPrompt, contract.SystemPrompt{Content: "default"})
				if diff := cmp.Diff(p, got); diff != "" {
					t.Errorf("prompt mismatch (-want +got):\n%s", diff)
				}
			}

			histories := [][]contract.ChatMessage{
				{},
				{contract.UserMessage("Hello"), contract.AssistantMessage("Hi"), contract.UserMessage("again")},
			}
			for _, h := range histories {
				if err := session.Save(ctx, store, session.SlotChatHistory, h); err != nil {
					t.Fatalf("save history: %v", err)
				}
				got := session.Load(ctx, store, session.SlotChatHistory, []contract.ChatMessage(nil))
				if diff := cmp.Diff(h, got); diff != "" {
					t.Errorf("history mismatch (-want +got):\n%s", diff)
				}
			}

			if err := session.Save(ctx, store, session.SlotProvider, "ollama"); err != nil {
				t.Fatalf("save provider: %v", err)
			}
			if got := session.Load(ctx, store, session.SlotProvider, "upstage"); got != "ollama" {
				t.Errorf("provider: got %s, want ollama", got)
			}

			if err := session.Save(ctx, store, session.SlotModel, "solar-pro"); err != nil {
				t.Fatalf("save model: %v", err)
			}
			if got := session.Load(ctx, store, session.SlotModel, ""); got != "solar-pro" {
				t.Errorf("model: got %s, want solar-pro", got)
			}
		})
	}
}

func TestLoadFallsBackOnCorruptData(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()
	store := session.NewStore(backend, discard)

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"wrong shape", `"just a string"`},
		{"bad role", `[{"role":"system","content":"x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := backend.Put(ctx, session.SlotChatHistory, []byte(tt.raw)); err != nil {
				t.Fatalf("put: %v", err)
			}

			def := []contract.ChatMessage{}
			got := session.Load(ctx, store, session.SlotChatHistory, def)
			if got == nil || len(got) != 0 {
				t.Errorf("history: got %#v, want empty default", got)
			}
		})
	}
}

func TestLoadFallsBackWhenBackendUnavailable(t *testing.T) {
	ctx := context.Background()
	backend, mr := redisBackend(t, "down")
	store := session.NewStore(backend, discard)

	mr.SetError("LOADING dataset in memory")

	got := session.Load(ctx, store, session.SlotModel, "fallback")
	if got != "fallback" {
		t.Errorf("model: got %q, want fallback", got)
	}

	if err := session.Save(ctx, store, session.SlotModel, "x"); err == nil {
		t.Error("expected save error with backend down")
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()

	cfg := &database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "shared.db"),
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := session.Migrate(cfg, discard); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// a second run is a no-op
	if err := session.Migrate(cfg, discard); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	db, err := database.New(cfg, discard)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Connection().Close()

	alice := session.NewStore(session.NewSQL(db, "alice", discard), discard)
	bob := session.NewStore(session.NewSQL(db, "bob", discard), discard)

	if err := session.Save(ctx, alice, session.SlotModel, "alice-model"); err != nil {
		t.Fatalf("save: %v", err)
	}

	if got := session.Load(ctx, bob, session.SlotModel, ""); got != "" {
		t.Errorf("bob model: got %q, want empty", got)
	}
	if got := session.Load(ctx, alice, session.SlotModel, ""); got != "alice-model" {
		t.Errorf("alice model: got %q, want alice-model", got)
	}
}

func TestOpenDefaults(t *testing.T) {
	state := session.Open(context.Background(), session.NewStore(session.NewMemory(), discard), discard)

	want := session.Snapshot{
		Prompt:   contract.SystemPrompt{Content: "", Guidelines: []string{}},
		History:  []contract.ChatMessage{},
		Provider: contract.DefaultProvider,
		Model:    "",
	}
	if diff := cmp.Diff(want, state.Snapshot()); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenRejectsUnknownStoredProvider(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()
	backend.Put(ctx, session.SlotProvider, []byte(`"mistral"`))

	state := session.Open(ctx, session.NewStore(backend, discard), discard)
	if got := state.Provider(); got != contract.DefaultProvider {
		t.Errorf("provider: got %q, want %q", got, contract.DefaultProvider)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	backend := sqliteBackend(t, "reopen")

	first := session.Open(ctx, session.NewStore(backend, discard), discard)
	first.UpdatePrompt(ctx, func(p *contract.SystemPrompt) bool {
		p.Content = "You are a compliance assistant."
		p.Guidelines = append(p.Guidelines, "Be polite")
		return true
	})
	first.AppendMessage(ctx, contract.UserMessage("Hello"))
	first.AppendMessage(ctx, contract.AssistantMessage("Hi"))
	if err := first.SetProvider(ctx, "anthropic"); err != nil {
		t.Fatalf("set provider: %v", err)
	}
	first.SetModel(ctx, "  claude  ")

	second := session.Open(ctx, session.NewStore(backend, discard), discard)
	if diff := cmp.Diff(first.Snapshot(), second.Snapshot()); diff != "" {
		t.Errorf("reopened state mismatch (-want +got):\n%s", diff)
	}
	if second.Model() != "claude" {
		t.Errorf("model: got %q, want claude", second.Model())
	}
}

func TestSetProviderRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()
	state := session.Open(ctx, session.NewStore(backend, discard), discard)

	if err := state.SetProvider(ctx, "mistral"); !errors.Is(err, contract.ErrUnknownProvider) {
		t.Fatalf("error: got %v, want ErrUnknownProvider", err)
	}
	if state.Provider() != contract.DefaultProvider {
		t.Errorf("provider changed to %q", state.Provider())
	}
	if _, err := backend.Get(ctx, session.SlotProvider); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("rejected provider was persisted")
	}
}

func TestUpdatePromptWithoutChangeDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()
	state := session.Open(ctx, session.NewStore(backend, discard), discard)

	state.UpdatePrompt(ctx, func(p *contract.SystemPrompt) bool {
		p.Content = "discarded"
		return false
	})

	if state.Prompt().Content != "" {
		t.Errorf("content: got %q, want empty", state.Prompt().Content)
	}
	if _, err := backend.Get(ctx, session.SlotSystemPrompt); !errors.Is(err, session.ErrNotFound) {
		t.Error("unchanged prompt was persisted")
	}
}

func TestClearHistoryErasesOnlyHistory(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()
	state := session.Open(ctx, session.NewStore(backend, discard), discard)

	state.UpdatePrompt(ctx, func(p *contract.SystemPrompt) bool {
		p.Guidelines = append(p.Guidelines, "g1")
		return true
	})
	state.AppendMessage(ctx, contract.UserMessage("Hello"))
	state.SetModel(ctx, "m")

	if err := state.ClearHistory(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if n := len(state.History()); n != 0 {
		t.Errorf("history length: got %d, want 0", n)
	}
	if _, err := backend.Get(ctx, session.SlotChatHistory); !errors.Is(err, session.ErrNotFound) {
		t.Error("history slot not erased")
	}
	if _, err := backend.Get(ctx, session.SlotSystemPrompt); err != nil {
		t.Errorf("prompt slot touched: %v", err)
	}
	if _, err := backend.Get(ctx, session.SlotModel); err != nil {
		t.Errorf("model slot touched: %v", err)
	}
}

func TestConcurrentAppendsAreAllPersisted(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemory()
	store := session.NewStore(backend, discard)
	state := session.Open(ctx, store, discard)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			state.AppendMessage(ctx, contract.UserMessage("m"))
		})
	}
	wg.Wait()

	persisted := session.Load(ctx, store, session.SlotChatHistory, []contract.ChatMessage{})
	if len(persisted) != 20 {
		t.Errorf("persisted messages: got %d, want 20", len(persisted))
	}
}

func TestRedisBackendStart(t *testing.T) {
	backend, _ := redisBackend(t, "start")
	lc := lifecycle.New()

	if err := backend.Start(lc); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer lc.Shutdown(time.Second)
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if !lc.Ready() {
		t.Error("lifecycle should be ready after redis ping")
	}
}
