package contract

// PromptVersion is an immutable snapshot of the system prompt.
type PromptVersion struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
	Score     *float64  `json:"score"`
	Notes     *string   `json:"notes"`
}

// PromptHistory lists every saved version. CurrentVersion references an
// entry in Versions when set.
type PromptHistory struct {
	CurrentVersion *string         `json:"current_version"`
	Versions       []PromptVersion `json:"versions"`
}

// Current returns the version referenced by CurrentVersion.
func (h *PromptHistory) Current() (PromptVersion, bool) {
	if h == nil || h.CurrentVersion == nil {
		return PromptVersion{}, false
	}
	for _, v := range h.Versions {
		if v.ID == *h.CurrentVersion {
			return v, true
		}
	}
	return PromptVersion{}, false
}

// ImproveRequest triggers a prompt improvement run. A nil EvaluationIDs
// lets the backend choose which evaluations to learn from.
type ImproveRequest struct {
	Rationale       *string  `json:"rationale,omitempty"`
	EvaluationIDs   []string `json:"evaluation_ids,omitempty"`
	TargetScore     *float64 `json:"target_score,omitempty"`
	RunReevaluation bool     `json:"run_reevaluation"`
}

// ImproveResponse reports the version created by an improvement run.
// Reevaluation is nil unless the request asked for one.
type ImproveResponse struct {
	NewVersion      PromptVersion       `json:"new_version"`
	PreviousVersion PromptVersion       `json:"previous_version"`
	Message         string              `json:"message"`
	Reevaluation    *ReEvaluationResult `json:"reevaluation"`
}
