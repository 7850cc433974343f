// Package gatewaytest provides an in-memory compliance chatbot backend for
// exercising gateway clients and the controllers built on them.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/internal/gateway"
)

// Backend is a fake backend served over httptest. Zero-value behavior:
// chat echoes the message with sequential compliance ids, analyses are 404
// until stored, history and evaluations are empty, and improve appends a new
// version.
type Backend struct {
	URL    string
	server *httptest.Server

	mu            sync.Mutex
	chat          func(contract.ChatRequest) contract.ChatResponse
	chatSeq       int
	chatRequests  []contract.ChatRequest
	chatDelay     time.Duration
	analyses      map[string]contract.ComplianceAnalysis
	analysisDelay map[string]time.Duration
	extracted     []string
	extractReqs   []contract.ExtractRequest
	documents     []contract.DocumentUpload
	history       contract.PromptHistory
	evaluations   []contract.EvaluationResult
	improve       func(contract.ImproveRequest) contract.ImproveResponse
	improveReqs   []contract.ImproveRequest
	recentLimits  []int
	failures      map[string]int
	calls         map[string]int
	requestIDs    []string
}

// New starts a backend and closes it when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		analyses:      make(map[string]contract.ComplianceAnalysis),
		analysisDelay: make(map[string]time.Duration),
		failures:      make(map[string]int),
		calls:         make(map[string]int),
		extracted:     []string{},
		evaluations:   []contract.EvaluationResult{},
		history:       contract.PromptHistory{Versions: []contract.PromptVersion{}},
	}

	b.server = httptest.NewServer(b.routes())
	b.URL = b.server.URL
	t.Cleanup(b.server.Close)
	return b
}

// Gateway returns a client bound to this backend.
func (b *Backend) Gateway() gateway.System {
	cfg := &gateway.Config{BaseURL: b.URL, Timeout: "5s", Burst: 1}
	return gateway.New(cfg, b.server.Client(), nil, slog.New(slog.DiscardHandler))
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.track)

	r.Post("/chat/message", b.handleChat)
	r.Post("/chat/extract-guidelines", b.handleExtract)
	r.Post("/chat/upload-document", b.handleUpload)
	r.Get("/compliance/{complianceID}", b.handleAnalysis)
	r.Get("/prompts/history", b.handleHistory)
	r.Post("/prompts/improve", b.handleImprove)
	r.Get("/evaluation/recent", b.handleRecent)

	return r
}

var routeEndpoints = map[string]string{
	"/chat/message":            gateway.EndpointChat,
	"/chat/extract-guidelines": gateway.EndpointExtract,
	"/chat/upload-document":    gateway.EndpointUpload,
	"/prompts/history":         gateway.EndpointHistory,
	"/prompts/improve":         gateway.EndpointImprove,
	"/evaluation/recent":       gateway.EndpointRecent,
}

func endpointOf(path string) string {
	if e, ok := routeEndpoints[path]; ok {
		return e
	}
	return gateway.EndpointCompliance
}

// track counts calls and applies injected failures before routing.
func (b *Backend) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := endpointOf(r.URL.Path)

		b.mu.Lock()
		b.calls[endpoint]++
		b.requestIDs = append(b.requestIDs, r.Header.Get(gateway.RequestIDHeader))
		status := b.failures[endpoint]
		b.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"detail": fmt.Sprintf("injected %d", status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request) {
	var req contract.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	b.mu.Lock()
	b.chatRequests = append(b.chatRequests, req)
	b.chatSeq++
	seq := b.chatSeq
	fn := b.chat
	delay := b.chatDelay
	b.mu.Unlock()

	if !wait(r, delay) {
		return
	}

	resp := contract.ChatResponse{
		Response:     "echo: " + req.Message,
		ContextUsed:  []string{},
		ComplianceID: "c" + strconv.Itoa(seq),
	}
	if fn != nil {
		resp = fn(req)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "complianceID")

	b.mu.Lock()
	analysis, ok := b.analyses[id]
	delay := b.analysisDelay[id]
	b.mu.Unlock()

	if !wait(r, delay) {
		return
	}

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Compliance analysis not found"})
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (b *Backend) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req contract.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	b.mu.Lock()
	b.extractReqs = append(b.extractReqs, req)
	resp := contract.ExtractResponse{Guidelines: append([]string{}, b.extracted...)}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	var doc contract.DocumentUpload
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	b.mu.Lock()
	b.documents = append(b.documents, doc)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, contract.DocumentAck{
		Message:     "Document uploaded successfully",
		ChunksAdded: 1 + len(doc.Content)/1000,
	})
}

func (b *Backend) handleHistory(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	history := b.history
	history.Versions = append([]contract.PromptVersion{}, b.history.Versions...)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, history)
}

func (b *Backend) handleImprove(w http.ResponseWriter, r *http.Request) {
	var req contract.ImproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.improveReqs = append(b.improveReqs, req)

	var resp contract.ImproveResponse
	if b.improve != nil {
		resp = b.improve(req)
	} else {
		resp = b.defaultImprove(req)
	}

	b.history.Versions = append(b.history.Versions, resp.NewVersion)
	id := resp.NewVersion.ID
	b.history.CurrentVersion = &id

	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) defaultImprove(req contract.ImproveRequest) contract.ImproveResponse {
	var previous contract.PromptVersion
	if current, ok := b.history.Current(); ok {
		previous = current
	}

	next := contract.PromptVersion{
		ID:        "v" + strconv.Itoa(len(b.history.Versions)+1),
		Content:   previous.Content + "\n(improved)",
		CreatedAt: contract.Timestamp{Time: time.Now().UTC()},
	}

	resp := contract.ImproveResponse{
		NewVersion:      next,
		PreviousVersion: previous,
		Message:         "Prompt improved",
	}

	if req.RunReevaluation {
		resp.Reevaluation = &contract.ReEvaluationResult{
			Evaluations: append([]contract.EvaluationResult{}, b.evaluations...),
			Summary:     fmt.Sprintf("re-evaluated %d", len(b.evaluations)),
		}
	}
	return resp
}

func (b *Backend) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < gateway.MinRecentLimit || limit > gateway.MaxRecentLimit {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "limit out of range"})
		return
	}

	b.mu.Lock()
	b.recentLimits = append(b.recentLimits, limit)
	evals := b.evaluations
	if len(evals) > limit {
		evals = evals[:limit]
	}
	evals = append([]contract.EvaluationResult{}, evals...)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, evals)
}

func wait(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-r.Context().Done():
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
