package gatewaytest

import (
	"slices"
	"time"

	"github.com/JaimeStill/steward/internal/contract"
)

// OnChat replaces the chat handler.
func (b *Backend) OnChat(fn func(contract.ChatRequest) contract.ChatResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chat = fn
}

// Reply makes every chat turn answer with response and complianceID.
func (b *Backend) Reply(response, complianceID string) {
	b.OnChat(func(contract.ChatRequest) contract.ChatResponse {
		return contract.ChatResponse{
			Response:     response,
			ContextUsed:  []string{},
			ComplianceID: complianceID,
		}
	})
}

// DelayChat holds every chat response for d.
func (b *Backend) DelayChat(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatDelay = d
}

// PutAnalysis stores an analysis under its compliance id.
func (b *Backend) PutAnalysis(a contract.ComplianceAnalysis) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analyses[a.ComplianceID] = a
}

// DelayAnalysis holds the analysis response for id by d.
func (b *Backend) DelayAnalysis(id string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analysisDelay[id] = d
}

// SetExtracted sets the guidelines returned by extraction.
func (b *Backend) SetExtracted(guidelines []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.extracted = slices.Clone(guidelines)
}

// SetHistory replaces the prompt history.
func (b *Backend) SetHistory(h contract.PromptHistory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = h
}

// SetEvaluations replaces the recent evaluations, newest first.
func (b *Backend) SetEvaluations(evals []contract.EvaluationResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evaluations = slices.Clone(evals)
}

// OnImprove replaces the improve handler. fn runs with the backend locked
// and must not call back into the Backend. The returned NewVersion is
// appended to the history and made current.
func (b *Backend) OnImprove(fn func(contract.ImproveRequest) contract.ImproveResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.improve = fn
}

// Fail makes every call to endpoint answer with status. Zero clears it.
func (b *Backend) Fail(endpoint string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, endpoint)
		return
	}
	b.failures[endpoint] = status
}

// Calls reports how many requests reached endpoint, including failed ones.
func (b *Backend) Calls(endpoint string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[endpoint]
}

// ChatRequests returns every decoded chat request in arrival order.
func (b *Backend) ChatRequests() []contract.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.chatRequests)
}

// ExtractRequests returns every decoded extraction request.
func (b *Backend) ExtractRequests() []contract.ExtractRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.extractReqs)
}

// ImproveRequests returns every decoded improve request.
func (b *Backend) ImproveRequests() []contract.ImproveRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.improveReqs)
}

// Documents returns every uploaded document.
func (b *Backend) Documents() []contract.DocumentUpload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.documents)
}

// RecentLimits returns the limit of every accepted recent-evaluations call.
func (b *Backend) RecentLimits() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.recentLimits)
}

// RequestIDs returns the request id header of every call.
func (b *Backend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.requestIDs)
}
