package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/PackmindHub/context-evaluator-sub000/internal/ai"
	"github.com/PackmindHub/context-evaluator-sub000/internal/engine"
	"github.com/PackmindHub/context-evaluator-sub000/internal/storage"
	"github.com/PackmindHub/context-evaluator-sub000/internal/types"
)

var (
	flagOutput     string
	flagType       string
	flagEvaluators []string
	flagNoHistory  bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [path]",
	Short: "Evaluate a repository's context files",
	Long: `Run the full evaluation pipeline against a repository: discover context
files, dispatch the evaluator catalog, deduplicate and curate the findings,
and compute the context score.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath := "."
		if len(args) == 1 {
			repoPath = args[0]
		}
		repoPath, err := filepath.Abs(repoPath)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		if info, err := os.Stat(repoPath); err != nil || !info.IsDir() {
			return fmt.Errorf("not a directory: %s", repoPath)
		}

		cfg, err := loadProjectConfig(repoPath)
		if err != nil {
			return err
		}
		opts, err := cfg.engineOptions()
		if err != nil {
			return err
		}
		if flagType != "" {
			opts.EvaluatorType = flagType
		}
		if len(flagEvaluators) > 0 {
			opts.EvaluatorIDs = flagEvaluators
		}

		renderer := &progressRenderer{verbose: flagVerbose}
		opts.Progress = renderer.callback()

		clientCfg := ai.DefaultClientConfig()
		clientCfg.Model = flagModel
		if clientCfg.Model == "" {
			clientCfg.Model = cfg.Model
		}
		provider, err := ai.NewClient(clientCfg)
		if err != nil {
			return err
		}

		eng, err := engine.New(provider, promptSource(), opts)
		if err != nil {
			return err
		}

		if cfg.historyEnabled() && !flagNoHistory {
			dbPath, err := storage.DefaultPath()
			if err == nil {
				if store, err := storage.Open(dbPath); err == nil {
					defer store.Close()
					eng.WithStore(store)
				} else {
					fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
				}
			}
		}

		output, err := eng.Evaluate(context.Background(), repoPath)
		if err != nil {
			return err
		}
		return renderOutput(output, flagOutput)
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&flagOutput, "output", "o", "text", "output format: text, json, or yaml")
	evaluateCmd.Flags().StringVar(&flagType, "type", "", "restrict evaluators by type: error or suggestion")
	evaluateCmd.Flags().StringSliceVar(&flagEvaluators, "evaluators", nil, "restrict to specific evaluator IDs")
	evaluateCmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "do not persist this run")
	rootCmd.AddCommand(evaluateCmd)
}

func renderOutput(output *engine.Output, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(output)
	case "text":
		renderText(output)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json, or yaml)", format)
	}
}

func renderText(output *engine.Output) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	meta := output.Metadata
	fmt.Printf("\n%s\n\n", cyan("=== Context Evaluation ==="))
	fmt.Printf("Repository:    %s\n", meta.RepoPath)
	fmt.Printf("Mode:          %s\n", meta.Mode)
	fmt.Printf("Context files: %d (skills: %d, linked docs: %d)\n",
		meta.ContextFileCount, meta.SkillCount, meta.LinkedDocCount)

	score := meta.ContextScore
	fmt.Printf("\n%s %s (%s)\n", bold("Score:"), scoreColor(score.Score)(fmt.Sprintf("%.1f / 10", score.Score)), score.Grade)
	if meta.Narrative != nil && meta.Narrative.Summary != "" {
		fmt.Printf("\n%s\n", meta.Narrative.Summary)
		for _, rec := range meta.Narrative.Recommendations {
			fmt.Printf("  • %s\n", rec)
		}
	}

	if meta.TotalIssues > 0 {
		fmt.Printf("\n%s %d (%s, %s)\n", bold("Issues:"), meta.TotalIssues,
			red(fmt.Sprintf("%d errors", meta.ErrorCount)),
			yellow(fmt.Sprintf("%d suggestions", meta.SuggestionCount)))
		for _, issue := range output.Issues {
			renderIssue(issue)
		}
	} else {
		fmt.Printf("\n%s\n", bold("No issues found."))
	}

	if meta.HasPartialFailures {
		fmt.Printf("\n%s failed evaluators: %s\n", yellow("Warning:"),
			strings.Join(meta.FailedEvaluators, ", "))
	}
	fmt.Printf("\nCost: $%.4f  Duration: %s  Duplicates removed: %d\n",
		meta.CostUSD, meta.Duration.Round(100*time.Millisecond), meta.DeduplicationRemoved)
}

func renderIssue(issue *types.Issue) {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	label := ""
	switch issue.IssueType {
	case types.IssueTypeError:
		label = red(fmt.Sprintf("[error %d/10]", issue.Severity))
	case types.IssueTypeSuggestion:
		label = yellow(fmt.Sprintf("[%s impact]", strings.ToLower(string(issue.ImpactLevel))))
	}
	fmt.Printf("\n  %s %s\n", label, issue.Title)
	if file := issue.PrimaryFile(); file != "" {
		loc := issue.Locations[0]
		fmt.Printf("    %s:%d-%d\n", file, loc.StartLine, loc.EndLine)
	}
	if text := strings.TrimSpace(issue.Problem + issue.Description); text != "" {
		fmt.Printf("    %s\n", firstOf(issue.Problem, issue.Description))
	}
	if issue.Fix != "" {
		fmt.Printf("    Fix: %s\n", issue.Fix)
	}
}

func scoreColor(score float64) func(a ...interface{}) string {
	switch {
	case score >= 7.5:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	case score >= 5.0:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
