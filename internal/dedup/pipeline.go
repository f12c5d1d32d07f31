// Package dedup reduces the raw evaluator issue list to unique findings.
//
// Deduplication runs in two ordered, independently toggleable phases:
//
//  1. Rule-based clustering merges issues that sit at the same location with
//     equivalent text. Co-located issues below the similarity threshold and
//     issues sharing domain entities are not merged; they are flagged as
//     candidates for the next phase.
//  2. An AI semantic merge reviews the survivors (with candidate flags) and
//     returns duplicate groups. This phase is fail-open: any failure keeps
//     every issue.
//
// Every issue entering the pipeline must already carry its deduplication ID.
// Downstream output assembly filters presentation copies against the survivor
// ID set, so an issue without an ID would silently vanish from final output.
package dedup

import (
	"context"
	"log"
	"time"

	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// Result is the combined outcome of both phases.
type Result struct {
	// Deduplicated are the issues that survived both phases.
	Deduplicated []*types.Issue `json:"deduplicated"`
	// Removed are all issues dropped by either phase.
	Removed []*types.Issue `json:"removed"`

	Clusters []Cluster        `json:"clusters,omitempty"`
	Groups   []DuplicateGroup `json:"groups,omitempty"`

	Usage    types.Usage   `json:"usage"`
	CostUSD  float64       `json:"cost_usd"`
	Duration time.Duration `json:"duration_ms"`
	Warnings []string      `json:"warnings,omitempty"`
}

// SurvivorIDs returns the set of deduplication IDs that survived, used to
// filter presentation structures down to the deduplicated truth.
func (r *Result) SurvivorIDs() map[string]bool {
	ids := make(map[string]bool, len(r.Deduplicated))
	for _, issue := range r.Deduplicated {
		ids[issue.DedupID] = true
	}
	return ids
}

// Pipeline sequences Phase 1 clustering and the Phase 2 semantic merge.
type Pipeline struct {
	config Config
	merger *SemanticMerger
}

// NewPipeline creates a pipeline. The merger may be nil when Phase 2 is
// disabled.
func NewPipeline(config Config, merger *SemanticMerger) *Pipeline {
	return &Pipeline{config: config, merger: merger}
}

// Run deduplicates the issue list. Both phases share the same contract: the
// output is a partition of the input into survivors and removed issues.
func (p *Pipeline) Run(ctx context.Context, issues []*types.Issue) *Result {
	start := time.Now()
	result := &Result{Deduplicated: issues}

	var p1 *Phase1Result
	if p.config.EnablePhase1 {
		p1 = RunPhase1(issues, p.config)
		result.Deduplicated = p1.Deduplicated
		result.Removed = append(result.Removed, p1.Removed...)
		result.Clusters = p1.Clusters
		if len(p1.Removed) > 0 {
			log.Printf("[DEDUP] phase 1 merged %d of %d issues into %d clusters",
				len(p1.Removed), len(issues), len(p1.Clusters))
		}
	}

	if p.config.EnablePhase2 && p.merger != nil {
		p2 := p.merger.Merge(ctx, result.Deduplicated, p1)
		result.Deduplicated = p2.Deduplicated
		result.Removed = append(result.Removed, p2.Removed...)
		result.Groups = p2.Groups
		result.Usage.Add(p2.Usage)
		result.CostUSD += p2.CostUSD
		result.Warnings = append(result.Warnings, p2.Warnings...)
		if len(p2.Removed) > 0 {
			log.Printf("[DEDUP] phase 2 removed %d issues in %d groups",
				len(p2.Removed), len(p2.Groups))
		}
	}

	result.Duration = time.Since(start)
	return result
}
