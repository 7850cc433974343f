package contract

// EvaluationScores are fractions in [0, 1].
type EvaluationScores struct {
	PreferenceAlignment float64 `json:"preference_alignment"`
	GuidelineAdherence  float64 `json:"guideline_adherence"`
	Overall             float64 `json:"overall"`
}

// MatchedReference is the preference pair an evaluation was scored against.
type MatchedReference struct {
	ReferenceID          string  `json:"reference_id"`
	SimilarityToChosen   float64 `json:"similarity_to_chosen"`
	SimilarityToRejected float64 `json:"similarity_to_rejected"`
	ChosenPreview        string  `json:"chosen_preview"`
	RejectedPreview      string  `json:"rejected_preview"`
}

// EvaluationResult is one scored evaluation run. GuidelineResults is nil
// when the backend omitted it and empty when it reported no guidelines.
type EvaluationResult struct {
	EvaluationID     string                `json:"evaluation_id"`
	PromptVersion    *string               `json:"prompt_version"`
	Scores           EvaluationScores      `json:"scores"`
	MatchedReference *MatchedReference     `json:"matched_reference"`
	GuidelineResults []GuidelineCompliance `json:"guideline_results"`
	Notes            *string               `json:"notes"`
	Metadata         map[string]any        `json:"metadata,omitempty"`
}

// ReEvaluationResult is the batch produced atomically by one improve call.
type ReEvaluationResult struct {
	Evaluations []EvaluationResult `json:"evaluations"`
	Summary     string             `json:"summary"`
}

// MeanOverall averages the overall score across the batch.
func (r *ReEvaluationResult) MeanOverall() (float64, bool) {
	if r == nil || len(r.Evaluations) == 0 {
		return 0, false
	}
	var sum float64
	for _, e := range r.Evaluations {
		sum += e.Scores.Overall
	}
	return sum / float64(len(r.Evaluations)), true
}
