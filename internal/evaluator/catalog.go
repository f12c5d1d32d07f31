// Package evaluator runs the evaluator catalog against context files under a
// bounded worker pool.
package evaluator

import (
	"github.com/PackmindHub/context-evaluator-sub000/internal/discovery"
	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

// FilterStrategy selects which discovered files an evaluator sees.
type FilterStrategy string

const (
	// FilterAllFiles passes every context file through.
	FilterAllFiles FilterStrategy = "all_files"
	// FilterRootOnly restricts the evaluator to root-level context files.
	FilterRootOnly FilterStrategy = "root_only"
	// FilterCustom delegates to the evaluator's Custom function.
	FilterCustom FilterStrategy = "custom"
)

// Evaluator is one entry in the fixed catalog. Type statically determines the
// issueType stamped on everything the evaluator reports.
type Evaluator struct {
	ID   string
	Name string
	Type types.IssueType

	// Instructions is the evaluator-specific focus injected into the shared
	// prompt template.
	Instructions string

	FileFilter FilterStrategy
	// Custom applies when FileFilter is FilterCustom.
	Custom func([]discovery.ContextFile) []discovery.ContextFile

	// ExecuteIfNoFile marks pure codebase-scanning evaluators that still run
	// when the repository has no context files at all.
	ExecuteIfNoFile bool
}

// Filter applies the evaluator's file policy, honoring an optional override
// strategy from project configuration.
func (e *Evaluator) Filter(files []discovery.ContextFile, override FilterStrategy) []discovery.ContextFile {
	strategy := e.FileFilter
	if override != "" {
		strategy = override
	}

	switch strategy {
	case FilterRootOnly:
		var out []discovery.ContextFile
		for _, f := range files {
			if f.IsRoot {
				out = append(out, f)
			}
		}
		return out
	case FilterCustom:
		if e.Custom != nil {
			return e.Custom(files)
		}
		return files
	default:
		return files
	}
}

// Catalog returns the ordered evaluator catalog. Order is stable: runner
// output is indexed by position in this list.
func Catalog() []Evaluator {
	return []Evaluator{
		{
			ID:           "broken-references",
			Name:         "Broken References",
			Type:         types.IssueTypeError,
			Instructions: "Find references to files, scripts, commands or paths that do not exist or have moved. These mislead agents into dead ends.",
			FileFilter:   FilterAllFiles,
		},
		{
			ID:           "staleness",
			Name:         "Staleness",
			Type:         types.IssueTypeError,
			Instructions: "Find instructions that contradict the current state of the codebase: renamed tools, removed workflows, outdated versions, abandoned conventions.",
			FileFilter:   FilterAllFiles,
		},
		{
			ID:           "contradictions",
			Name:         "Contradictions",
			Type:         types.IssueTypeError,
			Instructions: "Find statements that contradict each other, within one file or across files. Conflicting instructions force agents to guess.",
			FileFilter:   FilterAllFiles,
		},
		{
			ID:           "command-accuracy",
			Name:         "Command Accuracy",
			Type:         types.IssueTypeError,
			Instructions: "Check that documented commands (build, test, lint, run) are plausible for this project's toolchain and flag ones that cannot work as written.",
			FileFilter:   FilterAllFiles,
		},
		{
			ID:           "structure",
			Name:         "Structure",
			Type:         types.IssueTypeError,
			Instructions: "Check the root context file's organization: missing critical sections, buried key instructions, duplicated content.",
			FileFilter:   FilterRootOnly,
		},
		{
			ID:           "missing-sections",
			Name:         "Missing Sections",
			Type:         types.IssueTypeSuggestion,
			Instructions: "Suggest sections a complete context file should have but this one lacks: setup, testing, architecture overview, conventions, gotchas.",
			FileFilter:   FilterRootOnly,
		},
		{
			ID:           "clarity",
			Name:         "Clarity",
			Type:         types.IssueTypeSuggestion,
			Instructions: "Suggest rewrites for instructions that are ambiguous, assume unstated context, or could be misread by an agent.",
			FileFilter:   FilterAllFiles,
		},
		{
			ID:           "conciseness",
			Name:         "Conciseness",
			Type:         types.IssueTypeSuggestion,
			Instructions: "Flag sections that waste context window: boilerplate, repetition, content better linked than inlined.",
			FileFilter:   FilterAllFiles,
		},
		{
			ID:              "codebase-coverage",
			Name:            "Codebase Coverage",
			Type:            types.IssueTypeSuggestion,
			Instructions:    "From the project context alone, suggest documentation the repository needs: subsystems, workflows and constraints an agent would otherwise have to rediscover.",
			FileFilter:      FilterAllFiles,
			ExecuteIfNoFile: true,
		},
		{
			ID:              "skill-opportunities",
			Name:            "Skill Opportunities",
			Type:            types.IssueTypeSuggestion,
			Instructions:    "From the project context, suggest repeatable workflows worth capturing as agent skills.",
			FileFilter:      FilterAllFiles,
			ExecuteIfNoFile: true,
		},
	}
}

// FilterCatalog restricts a catalog by evaluator type ("error", "suggestion",
// "all" or empty) and/or an explicit ID list. Order is preserved.
func FilterCatalog(catalog []Evaluator, evalType string, ids []string) []Evaluator {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	var out []Evaluator
	for _, ev := range catalog {
		if evalType != "" && evalType != "all" && string(ev.Type) != evalType {
			continue
		}
		if len(idSet) > 0 && !idSet[ev.ID] {
			continue
		}
		out = append(out, ev)
	}
	return out
}
