package contract

// ChatRequest is the body of a chat turn. History holds every prior turn,
// excluding the message being sent.
type ChatRequest struct {
	Message             string        `json:"message"`
	SystemPrompt        SystemPrompt  `json:"system_prompt"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
	LLMProvider         Provider      `json:"llm_provider,omitempty"`
	ModelName           string        `json:"model_name,omitempty"`
}

// ChatResponse is the result of one chat exchange. ComplianceID is the sole
// join key to the turn's ComplianceAnalysis.
type ChatResponse struct {
	Response     string   `json:"response"`
	ContextUsed  []string `json:"context_used"`
	ComplianceID string   `json:"compliance_id"`
}

// GuidelineCompliance is the verdict for a single guideline.
type GuidelineCompliance struct {
	Guideline   string  `json:"guideline"`
	Followed    bool    `json:"followed"`
	Explanation string  `json:"explanation"`
	Evidence    *string `json:"evidence"`
}

// ComplianceAnalysis scores one assistant reply. GuidelineResults follow the
// guideline order at evaluation time, which may differ from the current prompt.
type ComplianceAnalysis struct {
	ComplianceID     string                `json:"compliance_id"`
	OverallScore     float64               `json:"overall_score"`
	GuidelineResults []GuidelineCompliance `json:"guideline_results"`
	Summary          string                `json:"summary"`
}

// Followed counts the guidelines marked as followed.
func (a *ComplianceAnalysis) Followed() int {
	n := 0
	for _, r := range a.GuidelineResults {
		if r.Followed {
			n++
		}
	}
	return n
}

// ExtractRequest asks the backend to derive guidelines from prompt prose.
type ExtractRequest struct {
	SystemPrompt string   `json:"system_prompt"`
	LLMProvider  Provider `json:"llm_provider,omitempty"`
	ModelName    string   `json:"model_name,omitempty"`
}

// ExtractResponse carries the extracted guidelines. An empty list means
// nothing was found.
type ExtractResponse struct {
	Guidelines []string `json:"guidelines"`
}

// DocumentUpload adds a reference document to the backend's retrieval corpus.
type DocumentUpload struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentAck acknowledges an upload.
type DocumentAck struct {
	Message     string `json:"message"`
	ChunksAdded int    `json:"chunks_added"`
}
