// Package engine orchestrates one evaluation job end to end: discovery,
// evaluator fan-out, deduplication, curation, scoring, and output assembly,
// emitting typed progress events at each transition.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/PackmindHub/context-evaluator-sub000/internal/ai"
	"github.com/PackmindHub/context-evaluator-sub000/internal/curation"
	"github.com/PackmindHub/context-evaluator-sub000/internal/dedup"
	"github.com/PackmindHub/context-evaluator-sub000/internal/discovery"
	"github.com/PackmindHub/context-evaluator-sub000/internal/evaluator"
	"github.com/PackmindHub/context-evaluator-sub000/internal/events"
	"github.com/PackmindHub/context-evaluator-sub000/internal/inventory"
	"github.com/PackmindHub/context-evaluator-sub000/internal/prompts"
	"github.com/PackmindHub/context-evaluator-sub000/internal/scoring"
	"github.com/PackmindHub/context-evaluator-sub000/internal/storage"
	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// Options configures one engine instance.
type Options struct {
	RunnerConfig   evaluator.Config
	DedupConfig    dedup.Config
	CurationConfig curation.Config

	// EvaluatorType filters the catalog: "all", "error", or "suggestion".
	EvaluatorType string
	// EvaluatorIDs restricts the catalog to specific evaluators.
	EvaluatorIDs []string
	// FileFilters overrides per-evaluator file-filter strategies.
	FileFilters map[string]evaluator.FilterStrategy

	// Progress receives typed events. May be nil.
	Progress events.ProgressCallback

	NarrativeTimeout time.Duration
}

// DefaultOptions returns engine options with every component at its default.
func DefaultOptions() Options {
	return Options{
		RunnerConfig:   evaluator.DefaultConfig(),
		DedupConfig:    dedup.DefaultConfig(),
		CurationConfig: curation.DefaultConfig(),
		EvaluatorType:  "all",
	}
}

// Engine sequences the evaluation pipeline for one repository at a time.
type Engine struct {
	provider   ai.Provider
	source     prompts.Source
	discoverer discovery.Discoverer
	runner     *evaluator.Runner
	pipeline   *dedup.Pipeline
	curator    *curation.Curator
	narrator   *scoring.Narrator
	store      *storage.Store
	opts       Options
}

// New wires an engine from a provider and prompt source.
func New(provider ai.Provider, source prompts.Source, opts Options) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("prompt source cannot be nil")
	}

	runner, err := evaluator.NewRunner(provider, source, opts.RunnerConfig, opts.FileFilters)
	if err != nil {
		return nil, err
	}
	merger, err := dedup.NewSemanticMerger(provider, source, opts.DedupConfig)
	if err != nil {
		return nil, err
	}
	curator, err := curation.NewCurator(provider, source, opts.CurationConfig)
	if err != nil {
		return nil, err
	}

	return &Engine{
		provider:   provider,
		source:     source,
		discoverer: discovery.NewFSDiscoverer(),
		runner:     runner,
		pipeline:   dedup.NewPipeline(opts.DedupConfig, merger),
		curator:    curator,
		narrator:   scoring.NewNarrator(provider, source, opts.NarrativeTimeout),
		opts:       opts,
	}, nil
}

// WithStore attaches a history store. Persistence failures are warnings, not
// job failures.
func (e *Engine) WithStore(store *storage.Store) *Engine {
	e.store = store
	return e
}

// WithDiscoverer replaces the filesystem discoverer.
func (e *Engine) WithDiscoverer(d discovery.Discoverer) *Engine {
	e.discoverer = d
	return e
}

// Evaluate runs the full pipeline against a repository root. A returned error
// means the job failed fatally (provider unavailable, unreadable repository,
// or a panic in orchestration); per-evaluator failures are folded into the
// output metadata instead.
func (e *Engine) Evaluate(ctx context.Context, repoPath string) (output *Output, err error) {
	jobID := uuid.New().String()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluation panicked: %v", r)
			output = nil
			e.emit(events.NewWithData(events.EventTypeJobFailed, jobID, events.SeverityError,
				err.Error(), map[string]interface{}{"code": string(types.ErrorCategoryInternal)}))
		}
	}()

	e.emit(events.NewWithData(events.EventTypeJobStarted, jobID, events.SeverityInfo,
		"evaluation started", map[string]interface{}{"repo_path": repoPath}))

	if !e.provider.IsAvailable(ctx) {
		return nil, e.fail(jobID, types.NewFatalError(types.ErrorCategoryProvider,
			"AI provider is not available"))
	}

	// Discovery.
	e.emit(events.New(events.EventTypeDiscoveryStarted, jobID, events.SeverityInfo,
		"discovering context files"))
	files, err := e.discoverer.DiscoverContextFiles(ctx, repoPath)
	if err != nil {
		return nil, e.fail(jobID, types.NewFatalError(types.ErrorCategoryRepository,
			fmt.Sprintf("failed to read repository: %v", err)))
	}
	skills, err := e.discoverer.DiscoverSkills(ctx, repoPath)
	if err != nil {
		skills = nil
	}
	docs, err := e.discoverer.DiscoverLinkedDocs(ctx, repoPath, files)
	if err != nil {
		docs = nil
	}
	e.emit(events.NewWithData(events.EventTypeDiscoveryCompleted, jobID, events.SeverityInfo,
		fmt.Sprintf("found %d context file(s), %d skill(s), %d linked doc(s)",
			len(files), len(skills), len(docs)),
		map[string]interface{}{
			"context_files": len(files),
			"skills":        len(skills),
			"linked_docs":   len(docs),
		}))

	// Project context identification.
	e.emit(events.New(events.EventTypeContextStarted, jobID, events.SeverityInfo,
		"collecting technical inventory"))
	var projectContext string
	var totalLines int
	inv, err := inventory.Collect(ctx, repoPath)
	if err != nil {
		log.Printf("[ENGINE] inventory collection failed: %v (continuing without it)", err)
	} else {
		projectContext = inv.Summary()
		totalLines = inv.TotalLines
	}
	e.emit(events.New(events.EventTypeContextCompleted, jobID, events.SeverityInfo,
		"project context ready"))

	catalog := evaluator.FilterCatalog(evaluator.Catalog(), e.opts.EvaluatorType, e.opts.EvaluatorIDs)
	obs := e.observers(jobID)

	// Evaluation fan-out. The dedup/curation/scoring stages run strictly
	// after every evaluator task completes.
	var mode Mode
	var results []*types.EvaluatorResult
	perFileResults := make(map[string][]*types.EvaluatorResult)

	switch {
	case len(files) == 0:
		mode = ModeNoContext
		results = e.runner.RunNoContext(ctx, catalog, projectContext, obs)
	case e.runner.UseUnifiedMode(files):
		mode = ModeUnified
		unified := e.runner.RunUnified(ctx, catalog, files, projectContext, obs)
		results = unified.Results
	default:
		mode = ModeIndependent
		for _, file := range files {
			e.emit(events.NewWithData(events.EventTypeFileStarted, jobID, events.SeverityInfo,
				"evaluating "+file.Path, map[string]interface{}{"file": file.Path}))
			fileResults := e.runner.RunAll(ctx, catalog, file, projectContext, obs)
			perFileResults[file.Path] = fileResults
			results = append(results, fileResults...)
			e.emit(events.NewWithData(events.EventTypeFileCompleted, jobID, events.SeverityInfo,
				"evaluated "+file.Path, map[string]interface{}{"file": file.Path}))
		}
	}

	metadata := Metadata{
		RepoPath:         repoPath,
		Mode:             mode,
		Timestamp:        start.UTC(),
		ContextFileCount: len(files),
		SkillCount:       len(skills),
		LinkedDocCount:   len(docs),
		TotalLines:       totalLines,
	}

	var allIssues []*types.Issue
	for _, result := range results {
		allIssues = append(allIssues, result.Issues...)
		metadata.Usage.Add(result.Usage)
		metadata.CostUSD += result.CostUSD
		progressMsg := result.EvaluatorName + " finished"
		if result.Skipped {
			progressMsg = result.EvaluatorName + " skipped"
		}
		e.emit(events.NewWithData(events.EventTypeEvaluatorProgress, jobID, events.SeverityInfo,
			progressMsg, map[string]interface{}{
				"evaluator": result.EvaluatorName,
				"issues":    len(result.Issues),
				"skipped":   result.Skipped,
				"failed":    result.Failed(),
			}))
		if result.Skipped {
			metadata.SkippedEvaluators = appendUnique(metadata.SkippedEvaluators, result.EvaluatorName)
			continue
		}
		if result.Failed() {
			metadata.HasPartialFailures = true
			metadata.FailedEvaluators = appendUnique(metadata.FailedEvaluators, result.EvaluatorName)
			for _, serr := range result.StructuredErrors {
				metadata.Warnings = append(metadata.Warnings, serr.Error())
				e.emit(events.NewWithData(events.EventTypeWarning, jobID, events.SeverityWarning,
					serr.Error(), map[string]interface{}{
						"evaluator": serr.Evaluator,
						"category":  string(serr.Category),
					}))
			}
		}
	}

	// Deduplication.
	e.emit(events.NewWithData(events.EventTypeDeduplicationStarted, jobID, events.SeverityInfo,
		fmt.Sprintf("deduplicating %d issue(s)", len(allIssues)),
		map[string]interface{}{"issues": len(allIssues)}))
	dedupResult := e.pipeline.Run(ctx, allIssues)
	metadata.DeduplicationRemoved = len(dedupResult.Removed)
	metadata.DeduplicationGroups = len(dedupResult.Groups)
	metadata.Usage.Add(dedupResult.Usage)
	metadata.CostUSD += dedupResult.CostUSD
	metadata.Warnings = append(metadata.Warnings, dedupResult.Warnings...)
	e.emit(events.NewWithData(events.EventTypeDeduplicationCompleted, jobID, events.SeverityInfo,
		fmt.Sprintf("removed %d duplicate(s)", len(dedupResult.Removed)),
		map[string]interface{}{
			"removed":  len(dedupResult.Removed),
			"survived": len(dedupResult.Deduplicated),
		}))

	// Curation, once per issue class.
	e.emit(events.New(events.EventTypeCurationStarted, jobID, events.SeverityInfo,
		"curating issues"))
	finalIssues := e.curateByClass(ctx, dedupResult.Deduplicated, &metadata)
	e.emit(events.NewWithData(events.EventTypeCurationCompleted, jobID, events.SeverityInfo,
		fmt.Sprintf("%d issue(s) after curation", len(finalIssues)),
		map[string]interface{}{"issues": len(finalIssues)}))

	// Scoring.
	e.emit(events.New(events.EventTypeScoringStarted, jobID, events.SeverityInfo,
		"computing context score"))
	breakdown := scoring.Compute(scoring.ScoreInput{
		ContextFileCount: len(files),
		SkillCount:       len(skills),
		LinkedDocCount:   len(docs),
		TotalLines:       totalLines,
		Issues:           finalIssues,
	})
	narrative := e.narrator.Narrate(ctx, breakdown)
	metadata.ContextScore = breakdown
	metadata.Narrative = narrative
	e.emit(events.NewWithData(events.EventTypeScoringCompleted, jobID, events.SeverityInfo,
		fmt.Sprintf("score %.1f (%s)", breakdown.Score, breakdown.Grade),
		map[string]interface{}{"score": breakdown.Score, "grade": breakdown.Grade}))

	// Output assembly: every structure narrows to the survivor set.
	survivors := make(map[string]bool, len(finalIssues))
	for _, issue := range finalIssues {
		metadata.TotalIssues++
		switch issue.IssueType {
		case types.IssueTypeError:
			metadata.ErrorCount++
		case types.IssueTypeSuggestion:
			metadata.SuggestionCount++
		}
		survivors[issue.DedupID] = true
	}
	metadata.HasErrors = metadata.ErrorCount > 0
	metadata.Duration = time.Since(start)

	output = &Output{Metadata: metadata, Issues: finalIssues}
	for _, result := range results {
		filterResult(result, survivors)
	}
	switch mode {
	case ModeIndependent:
		output.Files = make(map[string]*FileResult, len(perFileResults))
		for path, fileResults := range perFileResults {
			fr := &FileResult{Path: path, Issues: []*types.Issue{}}
			for _, result := range fileResults {
				fr.Issues = append(fr.Issues, result.Issues...)
			}
			output.Files[path] = fr
		}
	default:
		output.Results = results
	}
	for _, issue := range finalIssues {
		if issue.IsCrossFile() {
			output.CrossFileIssues = append(output.CrossFileIssues, issue)
		}
	}

	e.saveHistory(ctx, output)

	e.emit(events.NewWithData(events.EventTypeJobCompleted, jobID, events.SeverityInfo,
		fmt.Sprintf("evaluation completed: %d issue(s), score %.1f",
			metadata.TotalIssues, breakdown.Score),
		map[string]interface{}{
			"issues":   metadata.TotalIssues,
			"score":    breakdown.Score,
			"cost_usd": metadata.CostUSD,
		}))
	return output, nil
}

// curateByClass runs curation separately for errors and suggestions. A nil
// curation result keeps the whole class.
func (e *Engine) curateByClass(ctx context.Context, issues []*types.Issue, metadata *Metadata) []*types.Issue {
	var errorIssues, suggestionIssues []*types.Issue
	for _, issue := range issues {
		if issue.IssueType == types.IssueTypeError {
			errorIssues = append(errorIssues, issue)
		} else {
			suggestionIssues = append(suggestionIssues, issue)
		}
	}

	final := make([]*types.Issue, 0, len(issues))
	for _, class := range [][]*types.Issue{errorIssues, suggestionIssues} {
		result := e.curator.Curate(ctx, class)
		if result == nil {
			final = append(final, class...)
			continue
		}
		metadata.CurationApplied = true
		metadata.Usage.Add(result.Usage)
		metadata.CostUSD += result.CostUSD
		final = append(final, result.Curated...)
	}
	return final
}

func (e *Engine) observers(jobID string) evaluator.Observers {
	return evaluator.Observers{
		OnRetry: func(name string, attempt, maxRetries int, err error) {
			e.emit(events.NewRetryEvent(jobID, name, attempt, maxRetries, err.Error()))
		},
		OnTimeout: func(name string, elapsed, timeout time.Duration) {
			e.emit(events.NewTimeoutEvent(jobID, name, elapsed.Milliseconds(), timeout.Milliseconds()))
		},
	}
}

func (e *Engine) fail(jobID string, serr *types.StructuredError) error {
	e.emit(events.NewWithData(events.EventTypeJobFailed, jobID, events.SeverityError,
		serr.Message, map[string]interface{}{"code": string(serr.Category)}))
	return serr
}

func (e *Engine) emit(event *events.Event) {
	if e.opts.Progress != nil {
		e.opts.Progress(event)
	}
}

func (e *Engine) saveHistory(ctx context.Context, output *Output) {
	if e.store == nil {
		return
	}
	breakdown, err := json.Marshal(output.Metadata.ContextScore)
	if err != nil {
		breakdown = nil
	}
	record := &storage.RunRecord{
		RepoPath:        output.Metadata.RepoPath,
		Mode:            string(output.Metadata.Mode),
		Score:           output.Metadata.ContextScore.Score,
		Grade:           output.Metadata.ContextScore.Grade,
		IssueCount:      output.Metadata.TotalIssues,
		ErrorCount:      output.Metadata.ErrorCount,
		SuggestionCount: output.Metadata.SuggestionCount,
		RemovedCount:    output.Metadata.DeduplicationRemoved,
		CostUSD:         output.Metadata.CostUSD,
		Duration:        output.Metadata.Duration,
		Breakdown:       breakdown,
	}
	if err := e.store.SaveRun(ctx, record); err != nil {
		log.Printf("[ENGINE] failed to save run history: %v", err)
		output.Metadata.Warnings = append(output.Metadata.Warnings,
			fmt.Sprintf("history not saved: %v", err))
	}
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
