package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/PackmindHub/context-evaluator-sub000/internal/ai"
	"github.com/PackmindHub/context-evaluator-sub000/internal/prompts"
)

// Narrative is the human-readable companion to the score.
type Narrative struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations,omitempty"`
	// Generated is false when the deterministic fallback produced the text.
	Generated bool `json:"generated"`
}

// Narrator produces score narratives via the AI provider, falling back to
// templated text on any failure. The narrative call never blocks or fails
// the score itself.
type Narrator struct {
	provider ai.Provider
	source   prompts.Source
	timeout  time.Duration
}

// NewNarrator creates a narrator. A nil provider always falls back.
func NewNarrator(provider ai.Provider, source prompts.Source, timeout time.Duration) *Narrator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Narrator{provider: provider, source: source, timeout: timeout}
}

// Narrate asks the AI for a short summary and up to three recommendations.
// Every failure path returns FallbackNarrative instead of an error.
func (n *Narrator) Narrate(ctx context.Context, breakdown *Breakdown) *Narrative {
	if n.provider == nil || n.source == nil {
		return FallbackNarrative(breakdown)
	}
	// An empty corpus leaves nothing for the model to narrate; the canned
	// no-context text already covers it.
	if breakdown.Context.ContextFileCount == 0 {
		return FallbackNarrative(breakdown)
	}

	template, err := n.source.Load("narrative")
	if err != nil {
		log.Printf("[SCORING] narrative template unavailable: %v (using fallback)", err)
		return FallbackNarrative(breakdown)
	}

	encoded, err := json.Marshal(breakdown)
	if err != nil {
		return FallbackNarrative(breakdown)
	}
	prompt := prompts.Render(template, map[string]string{
		"SCORE":     fmt.Sprintf("%.1f", breakdown.Score),
		"GRADE":     breakdown.Grade,
		"BREAKDOWN": string(encoded),
	})

	invoke, err := n.provider.InvokeWithRetry(ctx, prompt, ai.InvokeOptions{
		Operation: "score_narrative",
		Timeout:   n.timeout,
	})
	if err != nil {
		log.Printf("[SCORING] narrative call failed: %v (using fallback)", err)
		return FallbackNarrative(breakdown)
	}

	parsed := ai.Parse[Narrative](invoke.Result, "narrative response")
	if !parsed.Success || parsed.Data.Summary == "" {
		log.Printf("[SCORING] narrative response unparsable (using fallback)")
		return FallbackNarrative(breakdown)
	}

	narrative := parsed.Data
	narrative.Generated = true
	if len(narrative.Recommendations) > 3 {
		narrative.Recommendations = narrative.Recommendations[:3]
	}
	return &narrative
}

// FallbackNarrative builds deterministic templated text from the breakdown.
// Pure function, safe to call from any failure path.
func FallbackNarrative(breakdown *Breakdown) *Narrative {
	ctx := breakdown.Context

	if ctx.ContextFileCount == 0 {
		return &Narrative{
			Summary: "No context files were found, so AI assistants have nothing to work from in this repository.",
			Recommendations: []string{
				"Create a root AGENTS.md describing the project, its build commands, and its conventions",
				"Document the directory layout and where new code should go",
				"Add guidance on running and writing tests",
			},
		}
	}

	summary := fmt.Sprintf("Documentation scores %.1f (%s) across %d context file(s).",
		breakdown.Score, breakdown.Grade, ctx.ContextFileCount)
	if ctx.ErrorCount > 0 {
		summary += fmt.Sprintf(" %d accuracy issue(s) are pulling the score down.", ctx.ErrorCount)
	} else if ctx.SuggestionCount > 0 {
		summary += fmt.Sprintf(" %d improvement suggestion(s) were identified.", ctx.SuggestionCount)
	}

	var recs []string
	if ctx.HighCount > 0 {
		recs = append(recs, fmt.Sprintf("Fix the %d high-severity issue(s) first; they actively mislead readers", ctx.HighCount))
	}
	if ctx.SkillCount == 0 {
		recs = append(recs, "Add skill definitions under .claude/skills/ for recurring workflows")
	}
	if ctx.LinkedDocCount == 0 {
		recs = append(recs, "Link supporting documentation from the root context file so it gets discovered")
	}
	if len(recs) == 0 && ctx.ErrorCount+ctx.SuggestionCount > 0 {
		recs = append(recs, "Work through the remaining issues in severity order")
	}
	if len(recs) > 3 {
		recs = recs[:3]
	}

	return &Narrative{Summary: summary, Recommendations: recs}
}
