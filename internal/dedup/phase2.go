package dedup

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/PackmindHub/context-evaluator-sub000/internal/ai"
	"github.com/PackmindHub/context-evaluator-sub000/internal/prompts"
	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// DuplicateGroup is one merge decision from the AI. Indices are relative to
// the issue array sent in the prompt.
type DuplicateGroup struct {
	RepresentativeIndex int    `json:"representativeIndex"`
	DuplicateIndices    []int  `json:"duplicateIndices"`
	Reason              string `json:"reason"`
}

// Phase2Result is the output of the AI semantic merge.
type Phase2Result struct {
	Deduplicated []*types.Issue
	Removed      []*types.Issue
	Groups       []DuplicateGroup

	Usage    types.Usage
	CostUSD  float64
	Warnings []string
}

// SemanticMerger runs the Phase 2 AI merge over Phase 1 survivors.
//
// The merge is strictly fail-open: a provider failure or an unparsable
// response keeps every input issue and logs a warning. Losing findings to a
// flaky dedup call is worse than showing an occasional duplicate.
type SemanticMerger struct {
	provider ai.Provider
	source   prompts.Source
	config   Config
}

// NewSemanticMerger creates a merger.
func NewSemanticMerger(provider ai.Provider, source prompts.Source, config Config) (*SemanticMerger, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("prompt source cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dedup config: %w", err)
	}
	return &SemanticMerger{provider: provider, source: source, config: config}, nil
}

// Merge asks the AI which of the surviving issues are semantic duplicates and
// removes the indicated ones. Issues beyond the MaxIssuesForAI cap are never
// sent and always survive.
func (m *SemanticMerger) Merge(ctx context.Context, issues []*types.Issue, p1 *Phase1Result) *Phase2Result {
	result := &Phase2Result{Deduplicated: issues}
	if len(issues) < 2 {
		return result
	}

	sent := issues
	var overflow []*types.Issue
	if len(sent) > m.config.MaxIssuesForAI {
		log.Printf("[DEDUP] %d issues exceed the AI merge cap of %d; extra issues pass through unmerged",
			len(sent), m.config.MaxIssuesForAI)
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("semantic merge truncated to %d of %d issues", m.config.MaxIssuesForAI, len(sent)))
		overflow = sent[m.config.MaxIssuesForAI:]
		sent = sent[:m.config.MaxIssuesForAI]
	}

	template, err := m.source.Load("semantic_merge")
	if err != nil {
		return m.failOpen(result, issues, fmt.Sprintf("semantic merge template unavailable: %v", err))
	}
	prompt := prompts.Render(template, map[string]string{
		"ISSUES": formatIssuesForMerge(sent, p1),
	})

	invoke, err := m.provider.InvokeWithRetry(ctx, prompt, ai.InvokeOptions{
		Operation: "semantic_merge",
		Timeout:   m.config.RequestTimeout,
	})
	if err != nil {
		return m.failOpen(result, issues, fmt.Sprintf("semantic merge call failed: %v", err))
	}
	result.Usage = invoke.Usage
	result.CostUSD = invoke.CostUSD

	parsed := ai.Parse[mergeResponse](invoke.Result, "semantic merge response")
	if !parsed.Success {
		return m.failOpen(result, issues, fmt.Sprintf("semantic merge response unparsable: %s", parsed.Error))
	}

	removed := make(map[int]bool)
	for _, group := range parsed.Data.Groups {
		if group.RepresentativeIndex < 0 || group.RepresentativeIndex >= len(sent) {
			continue
		}
		for _, idx := range group.DuplicateIndices {
			if idx < 0 || idx >= len(sent) || idx == group.RepresentativeIndex {
				continue
			}
			removed[idx] = true
		}
		result.Groups = append(result.Groups, group)
	}

	result.Deduplicated = make([]*types.Issue, 0, len(issues)-len(removed))
	for i, issue := range sent {
		if removed[i] {
			result.Removed = append(result.Removed, issue)
		} else {
			result.Deduplicated = append(result.Deduplicated, issue)
		}
	}
	result.Deduplicated = append(result.Deduplicated, overflow...)
	return result
}

type mergeResponse struct {
	Groups []DuplicateGroup `json:"groups"`
}

func (m *SemanticMerger) failOpen(result *Phase2Result, issues []*types.Issue, warning string) *Phase2Result {
	log.Printf("[DEDUP] %s (keeping all %d issues)", warning, len(issues))
	result.Deduplicated = issues
	result.Removed = nil
	result.Groups = nil
	result.Warnings = append(result.Warnings, warning)
	return result
}

// formatIssuesForMerge renders the issue list the prompt embeds. Each entry
// carries its index, location, text, and the Phase 1 candidate flags.
func formatIssuesForMerge(issues []*types.Issue, p1 *Phase1Result) string {
	var b strings.Builder
	for i, issue := range issues {
		fmt.Fprintf(&b, "[%d] (%s) %s", i, issue.IssueType, issue.Title)
		if file := issue.PrimaryFile(); file != "" {
			loc := issue.Locations[0]
			fmt.Fprintf(&b, " @ %s:%d-%d", file, loc.StartLine, loc.EndLine)
		}
		b.WriteString("\n")
		if text := strings.TrimSpace(issue.Problem + " " + issue.Description); text != "" {
			fmt.Fprintf(&b, "    %s\n", text)
		}
		if p1 != nil {
			if p1.LocationCandidates[issue.DedupID] {
				b.WriteString("    locationCandidate: true\n")
			}
			if shared := p1.EntityCandidates[issue.DedupID]; len(shared) > 0 {
				fmt.Fprintf(&b, "    entityCandidate: true, sharedEntities: [%s]\n",
					strings.Join(shared, ", "))
			}
		}
	}
	return b.String()
}
