package evaluator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/PackmindHub/context-evaluator-sub000/internal/ai"
	"github.com/PackmindHub/context-evaluator-sub000/internal/discovery"
	"github.com/PackmindHub/context-evaluator-sub000/internal/prompts"
	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// SkipReasonNoContextFile is attached to file-bound evaluators when the
// repository has no context files.
const SkipReasonNoContextFile = "no context file exists"

// Config tunes the runner.
type Config struct {
	// Concurrency caps in-flight evaluator invocations (default 3).
	Concurrency int
	// Timeout is the per-call deadline passed to the provider.
	Timeout time.Duration
	// MaxTokens gates unified mode: combined file content above this estimate
	// falls back to independent mode (default 100000).
	MaxTokens int
	// ResponseMaxTokens caps each evaluator response.
	ResponseMaxTokens int
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:       3,
		Timeout:           120 * time.Second,
		MaxTokens:         100_000,
		ResponseMaxTokens: 8192,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive (got %d)", c.Concurrency)
	}
	if c.Concurrency > 32 {
		return fmt.Errorf("concurrency too large (got %d, max 32)", c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got %v)", c.Timeout)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive (got %d)", c.MaxTokens)
	}
	return nil
}

// Observers receive per-call retry/timeout notifications for progress
// reporting. Retry scheduling itself belongs to the provider.
type Observers struct {
	OnRetry   func(evaluator string, attempt, maxRetries int, err error)
	OnTimeout func(evaluator string, elapsed, timeout time.Duration)
}

// Runner executes the evaluator catalog.
type Runner struct {
	provider ai.Provider
	source   prompts.Source
	config   Config

	// fileFilters overrides per-evaluator filter strategies from project
	// configuration.
	fileFilters map[string]FilterStrategy
}

// NewRunner creates a runner.
func NewRunner(provider ai.Provider, source prompts.Source, config Config, fileFilters map[string]FilterStrategy) (*Runner, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("prompt source cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	return &Runner{
		provider:    provider,
		source:      source,
		config:      config,
		fileFilters: fileFilters,
	}, nil
}

// EstimateTokens approximates the token count of text (chars/4 heuristic,
// rounded up). Good enough for the unified-mode gate.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// UseUnifiedMode reports whether the combined file contents fit the unified
// token budget.
func (r *Runner) UseUnifiedMode(files []discovery.ContextFile) bool {
	total := 0
	for _, f := range files {
		total += EstimateTokens(f.Content)
	}
	return total <= r.config.MaxTokens
}

// RunAll executes the given evaluators against one file (independent mode).
// The result slice always has one entry per evaluator, in catalog order,
// regardless of completion order or failures.
func (r *Runner) RunAll(ctx context.Context, catalog []Evaluator, file discovery.ContextFile, projectContext string, obs Observers) []*types.EvaluatorResult {
	return r.fanOut(ctx, catalog, func(ctx context.Context, ev Evaluator) *types.EvaluatorResult {
		return r.runIndependent(ctx, ev, file, projectContext, obs)
	})
}

// RunUnified executes the given evaluators against all files at once.
func (r *Runner) RunUnified(ctx context.Context, catalog []Evaluator, files []discovery.ContextFile, projectContext string, obs Observers) *types.UnifiedEvaluationResult {
	results := r.fanOut(ctx, catalog, func(ctx context.Context, ev Evaluator) *types.EvaluatorResult {
		return r.runUnified(ctx, ev, files, projectContext, obs)
	})

	unified := &types.UnifiedEvaluationResult{
		Results:       results,
		PerFileIssues: make(map[string][]*types.Issue),
	}
	for _, res := range results {
		for path, issues := range res.PerFileIssues {
			unified.PerFileIssues[path] = append(unified.PerFileIssues[path], issues...)
		}
		unified.CrossFileIssues = append(unified.CrossFileIssues, res.CrossFileIssues...)
	}
	return unified
}

// RunNoContext handles the zero-context-files case: only evaluators flagged
// ExecuteIfNoFile run; everything else is skipped.
func (r *Runner) RunNoContext(ctx context.Context, catalog []Evaluator, projectContext string, obs Observers) []*types.EvaluatorResult {
	return r.fanOut(ctx, catalog, func(ctx context.Context, ev Evaluator) *types.EvaluatorResult {
		if !ev.ExecuteIfNoFile {
			return types.SkippedResult(ev.ID, ev.Type, SkipReasonNoContextFile)
		}
		return r.runIndependent(ctx, ev, discovery.ContextFile{}, projectContext, obs)
	})
}

// fanOut runs one task per evaluator under the concurrency cap, writing each
// result into a pre-sized slice by original index. One evaluator's failure
// never blocks or cancels its siblings.
func (r *Runner) fanOut(ctx context.Context, catalog []Evaluator, task func(context.Context, Evaluator) *types.EvaluatorResult) []*types.EvaluatorResult {
	results := make([]*types.EvaluatorResult, len(catalog))
	sem := semaphore.NewWeighted(int64(r.config.Concurrency))
	var wg sync.WaitGroup

	for i, ev := range catalog {
		wg.Add(1)
		go func(i int, ev Evaluator) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = failedResult(ev, types.NewProviderError(ev.ID, err))
				return
			}
			defer sem.Release(1)
			results[i] = task(ctx, ev)
		}(i, ev)
	}
	wg.Wait()

	return results
}

// runIndependent invokes one evaluator against one file.
func (r *Runner) runIndependent(ctx context.Context, ev Evaluator, file discovery.ContextFile, projectContext string, obs Observers) *types.EvaluatorResult {
	// No-context evaluators run with an empty file; everything else applies
	// the file filter first.
	if file.Path != "" {
		filtered := ev.Filter([]discovery.ContextFile{file}, r.fileFilters[ev.ID])
		if len(filtered) == 0 {
			// Filter produced no input: empty result, no provider call.
			return &types.EvaluatorResult{
				EvaluatorName: ev.ID,
				EvaluatorType: ev.Type,
				File:          file.Path,
				Issues:        []*types.Issue{},
			}
		}
	}

	template, err := r.source.Load("evaluate_independent")
	if err != nil {
		return failedResult(ev, &types.StructuredError{
			Category: types.ErrorCategoryInternal, Severity: types.ErrorSeverityPartial,
			Message: err.Error(), Evaluator: ev.ID,
		})
	}
	prompt := prompts.Render(template, map[string]string{
		"INSTRUCTIONS":    ev.Instructions,
		"PROJECT_CONTEXT": projectContext,
		"FILE_PATH":       file.Path,
		"FILE_CONTENT":    numberLines(file.Content),
	})

	invoke, serr := r.invoke(ctx, ev, prompt, obs)
	if serr != nil {
		res := failedResult(ev, serr)
		res.File = file.Path
		return res
	}

	parsed := ai.Parse[independentResponse](invoke.Result, ev.ID+" response")
	result := &types.EvaluatorResult{
		EvaluatorName: ev.ID,
		EvaluatorType: ev.Type,
		File:          file.Path,
		Issues:        []*types.Issue{},
		Usage:         invoke.Usage,
		CostUSD:       invoke.CostUSD,
		Duration:      invoke.Duration,
		RawPrompt:     prompt,
	}
	if !parsed.Success {
		serr := types.NewParsingError(ev.ID, parsed.Error)
		result.StructuredErrors = append(result.StructuredErrors, serr)
		result.Err = serr.Message
		return result
	}

	for _, raw := range parsed.Data.Issues {
		issue := r.materialize(ev, raw, file)
		if issue != nil {
			result.Issues = append(result.Issues, issue)
		}
	}
	return result
}

// runUnified invokes one evaluator against all files at once.
func (r *Runner) runUnified(ctx context.Context, ev Evaluator, files []discovery.ContextFile, projectContext string, obs Observers) *types.EvaluatorResult {
	filtered := ev.Filter(files, r.fileFilters[ev.ID])
	if len(filtered) == 0 {
		return &types.EvaluatorResult{
			EvaluatorName: ev.ID,
			EvaluatorType: ev.Type,
			Issues:        []*types.Issue{},
			PerFileIssues: map[string][]*types.Issue{},
		}
	}

	template, err := r.source.Load("evaluate_unified")
	if err != nil {
		return failedResult(ev, &types.StructuredError{
			Category: types.ErrorCategoryInternal, Severity: types.ErrorSeverityPartial,
			Message: err.Error(), Evaluator: ev.ID,
		})
	}

	byPath := make(map[string]discovery.ContextFile, len(filtered))
	var rendered strings.Builder
	for _, f := range filtered {
		byPath[f.Path] = f
		fmt.Fprintf(&rendered, "=== %s ===\n%s\n\n", f.Path, numberLines(f.Content))
	}

	prompt := prompts.Render(template, map[string]string{
		"INSTRUCTIONS":    ev.Instructions,
		"PROJECT_CONTEXT": projectContext,
		"FILES":           rendered.String(),
	})

	invoke, serr := r.invoke(ctx, ev, prompt, obs)
	if serr != nil {
		return failedResult(ev, serr)
	}

	parsed := ai.Parse[unifiedResponse](invoke.Result, ev.ID+" unified response")
	result := &types.EvaluatorResult{
		EvaluatorName: ev.ID,
		EvaluatorType: ev.Type,
		Issues:        []*types.Issue{},
		PerFileIssues: map[string][]*types.Issue{},
		Usage:         invoke.Usage,
		CostUSD:       invoke.CostUSD,
		Duration:      invoke.Duration,
		RawPrompt:     prompt,
	}
	if !parsed.Success {
		serr := types.NewParsingError(ev.ID, parsed.Error)
		result.StructuredErrors = append(result.StructuredErrors, serr)
		result.Err = serr.Message
		return result
	}

	// Deterministic file order keeps output stable across runs.
	paths := make([]string, 0, len(parsed.Data.PerFileIssues))
	for path := range parsed.Data.PerFileIssues {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		file := byPath[path]
		for _, raw := range parsed.Data.PerFileIssues[path] {
			issue := r.materialize(ev, raw, file)
			if issue != nil {
				result.PerFileIssues[path] = append(result.PerFileIssues[path], issue)
				result.Issues = append(result.Issues, issue)
			}
		}
	}
	for _, raw := range parsed.Data.CrossFileIssues {
		issue := r.materializeCrossFile(ev, raw, byPath)
		if issue != nil {
			result.CrossFileIssues = append(result.CrossFileIssues, issue)
			result.Issues = append(result.Issues, issue)
		}
	}
	return result
}

// invoke calls the provider with retry and maps failures to structured errors.
func (r *Runner) invoke(ctx context.Context, ev Evaluator, prompt string, obs Observers) (*ai.InvokeResult, *types.StructuredError) {
	timedOut := false
	opts := ai.InvokeOptions{
		Operation: "evaluator:" + ev.ID,
		MaxTokens: r.config.ResponseMaxTokens,
		Timeout:   r.config.Timeout,
		OnRetry: func(attempt, maxRetries int, err error) {
			if obs.OnRetry != nil {
				obs.OnRetry(ev.ID, attempt, maxRetries, err)
			}
		},
		OnTimeout: func(elapsed, timeout time.Duration) {
			timedOut = true
			if obs.OnTimeout != nil {
				obs.OnTimeout(ev.ID, elapsed, timeout)
			}
		},
	}

	result, err := r.provider.InvokeWithRetry(ctx, prompt, opts)
	if err != nil {
		if timedOut {
			return nil, types.NewTimeoutError(ev.ID, err)
		}
		return nil, types.NewProviderError(ev.ID, err)
	}
	return result, nil
}

// independentResponse mirrors the JSON shape evaluators return in independent
// mode.
type independentResponse struct {
	Issues []rawIssue `json:"issues"`
}

// unifiedResponse mirrors the unified-mode JSON shape.
type unifiedResponse struct {
	PerFileIssues   map[string][]rawIssue `json:"perFileIssues"`
	CrossFileIssues []rawIssue            `json:"crossFileIssues"`
}

type rawIssue struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Problem     string `json:"problem"`
	Description string `json:"description"`
	Fix         string `json:"fix"`
	Severity    int    `json:"severity"`
	ImpactLevel string `json:"impactLevel"`
	Locations   []struct {
		File  string `json:"file"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	} `json:"locations"`
}

// materialize converts a parsed issue into a validated Issue. The issueType
// comes from the evaluator's static type, never from the response; the
// deduplication ID is assigned here, before any copy of the issue exists.
func (r *Runner) materialize(ev Evaluator, raw rawIssue, file discovery.ContextFile) *types.Issue {
	issue := &types.Issue{
		DedupID:       types.NextDeduplicationID(),
		IssueType:     ev.Type,
		Category:      raw.Category,
		Title:         raw.Title,
		Problem:       raw.Problem,
		Description:   raw.Description,
		Fix:           raw.Fix,
		EvaluatorName: ev.ID,
	}

	switch ev.Type {
	case types.IssueTypeError:
		issue.Severity = clampSeverity(raw.Severity)
	case types.IssueTypeSuggestion:
		issue.ImpactLevel = normalizeImpact(raw.ImpactLevel)
	}

	for _, loc := range raw.Locations {
		path := loc.File
		if path == "" {
			path = file.Path
		}
		issue.Locations = append(issue.Locations, types.Location{
			File:      path,
			StartLine: loc.Start,
			EndLine:   loc.End,
			Snippet:   snippet(file.Content, loc.Start, loc.End),
		})
	}

	if err := issue.Validate(); err != nil {
		// Malformed issues from the model are dropped, not fatal.
		return nil
	}
	return issue
}

// materializeCrossFile is the unified-mode variant resolving snippets from
// whichever file each location names.
func (r *Runner) materializeCrossFile(ev Evaluator, raw rawIssue, byPath map[string]discovery.ContextFile) *types.Issue {
	issue := r.materialize(ev, raw, discovery.ContextFile{})
	if issue == nil {
		return nil
	}
	for i, loc := range issue.Locations {
		if file, ok := byPath[loc.File]; ok {
			issue.Locations[i].Snippet = snippet(file.Content, loc.StartLine, loc.EndLine)
		}
	}
	return issue
}

func failedResult(ev Evaluator, serr *types.StructuredError) *types.EvaluatorResult {
	return &types.EvaluatorResult{
		EvaluatorName:    ev.ID,
		EvaluatorType:    ev.Type,
		Issues:           []*types.Issue{},
		Err:              serr.Message,
		StructuredErrors: []*types.StructuredError{serr},
	}
}

func clampSeverity(severity int) int {
	if severity < 0 {
		return 0
	}
	if severity > 10 {
		return 10
	}
	return severity
}

func normalizeImpact(impact string) types.ImpactLevel {
	switch strings.ToLower(impact) {
	case "high":
		return types.ImpactHigh
	case "low":
		return types.ImpactLow
	default:
		return types.ImpactMedium
	}
}

// snippet extracts 1-based line range content, clamped to the file.
func snippet(content string, start, end int) string {
	if content == "" || start <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	if start > len(lines) {
		return ""
	}
	if end < start {
		end = start
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

// numberLines prefixes file content with 1-based line numbers so the model
// can produce accurate location ranges.
func numberLines(content string) string {
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%4d | %s\n", i+1, line)
	}
	return b.String()
}
