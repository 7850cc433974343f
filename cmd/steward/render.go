package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/internal/conversation"
	"github.com/JaimeStill/steward/internal/dashboard"
)

const timeLayout = "2006-01-02 15:04"

func renderMessages(w io.Writer, messages []contract.ChatMessage) {
	if len(messages) == 0 {
		fmt.Fprintln(w, "(no messages)")
		return
	}
	for _, m := range messages {
		fmt.Fprintf(w, "%s: %s\n", m.Role, m.Content)
	}
}

// renderReply prints the newest assistant turn and the context it drew on.
func renderReply(w io.Writer, snap conversation.Snapshot) {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Role == contract.RoleAssistant {
			fmt.Fprintf(w, "assistant: %s\n", snap.Messages[i].Content)
			break
		}
	}
	if len(snap.ContextUsed) > 0 {
		fmt.Fprintf(w, "context: %s\n", strings.Join(snap.ContextUsed, "; "))
	}
}

func renderAnalysis(w io.Writer, snap conversation.Snapshot) {
	if snap.Notice != "" {
		fmt.Fprintln(w, snap.Notice)
	}

	a := snap.Analysis
	if a == nil {
		if snap.Notice == "" {
			fmt.Fprintln(w, "(no compliance analysis)")
		}
		return
	}

	fmt.Fprintf(w, "compliance %.1f%% (%d/%d guidelines followed)\n",
		a.OverallScore, a.Followed(), len(a.GuidelineResults))
	for _, r := range a.GuidelineResults {
		mark := " "
		if r.Followed {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %s\n", mark, r.Guideline)
		if r.Explanation != "" {
			fmt.Fprintf(w, "      %s\n", r.Explanation)
		}
		if r.Evidence != nil {
			fmt.Fprintf(w, "      evidence: %q\n", *r.Evidence)
		}
	}
	if a.Summary != "" {
		fmt.Fprintf(w, "summary: %s\n", a.Summary)
	}
}

func renderPrompt(w io.Writer, p contract.SystemPrompt) {
	content := p.Content
	if strings.TrimSpace(content) == "" {
		content = "(empty)"
	}
	fmt.Fprintln(w, content)
	fmt.Fprintln(w)
	renderGuidelines(w, p.Guidelines)
}

func renderGuidelines(w io.Writer, guidelines []string) {
	if len(guidelines) == 0 {
		fmt.Fprintln(w, "(no guidelines)")
		return
	}
	for i, g := range guidelines {
		fmt.Fprintf(w, "%2d. %s\n", i+1, g)
	}
}

func renderDashboard(w io.Writer, snap dashboard.Snapshot) {
	if snap.Error != "" {
		fmt.Fprintf(w, "! %s\n\n", snap.Error)
	}

	if snap.History == nil {
		fmt.Fprintln(w, "(prompt history not loaded)")
	} else {
		renderHistory(w, *snap.History)
	}

	fmt.Fprintln(w)
	renderEvaluations(w, "recent evaluations", snap.Recent)

	if snap.Reevaluation != nil {
		fmt.Fprintln(w)
		renderReevaluation(w, snap.Reevaluation)
	}
}

func renderHistory(w io.Writer, h contract.PromptHistory) {
	fmt.Fprintln(w, "prompt versions")
	if len(h.Versions) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}

	current := ""
	if h.CurrentVersion != nil {
		current = *h.CurrentVersion
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, v := range h.Versions {
		mark := " "
		if v.ID == current {
			mark = "*"
		}
		score := "-"
		if v.Score != nil {
			score = fmt.Sprintf("%.2f", *v.Score)
		}
		notes := ""
		if v.Notes != nil {
			notes = *v.Notes
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n", mark, v.ID, formatTime(v.CreatedAt.Time), score, notes)
	}
	tw.Flush()
}

func renderEvaluations(w io.Writer, title string, evals []contract.EvaluationResult) {
	fmt.Fprintln(w, title)
	if len(evals) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  id\tversion\toverall\tpref\tguideline")
	for _, e := range evals {
		version := "-"
		if e.PromptVersion != nil {
			version = *e.PromptVersion
		}
		fmt.Fprintf(tw, "  %s\t%s\t%.3f\t%.3f\t%.3f\n",
			e.EvaluationID, version,
			e.Scores.Overall, e.Scores.PreferenceAlignment, e.Scores.GuidelineAdherence,
		)
	}
	tw.Flush()
}

func renderReevaluation(w io.Writer, r *contract.ReEvaluationResult) {
	renderEvaluations(w, "re-evaluation", r.Evaluations)
	if mean, ok := r.MeanOverall(); ok {
		fmt.Fprintf(w, "mean overall: %.3f\n", mean)
	}
	if r.Summary != "" {
		fmt.Fprintf(w, "summary: %s\n", r.Summary)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
