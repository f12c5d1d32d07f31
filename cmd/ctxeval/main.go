// ctxeval evaluates repository documentation (AGENTS.md-style context files)
// with AI-backed evaluators and reports a scored issue list.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PackmindHub/context-evaluator-sub000/internal/prompts"
)

var (
	// Persistent flags.
	flagModel   string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ctxeval",
	Short: "Evaluate repository documentation quality",
	Long: `ctxeval dispatches AI-backed evaluators against a repository's context
files (AGENTS.md, CLAUDE.md, .cursorrules), deduplicates and curates their
findings, and computes a 1-10 context score.

Requires ANTHROPIC_API_KEY. Per-repository settings can be placed in a
.ctxeval.yaml file at the repository root.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model ID (default from CTXEVAL_MODEL)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose progress output")
}

// promptSource picks the prompt template source: CTXEVAL_PROMPTS_DIR for
// local prompt iteration, embedded templates otherwise.
func promptSource() prompts.Source {
	if dir := os.Getenv("CTXEVAL_PROMPTS_DIR"); dir != "" {
		return prompts.NewDiskSource(dir)
	}
	return prompts.NewEmbeddedSource()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
