package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PackmindHub/context-evaluator-sub000/internal/storage"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show past evaluation runs",
	Long: `List previous evaluation runs for a repository, newest first. With no
path argument, runs for all repositories are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath := ""
		if len(args) == 1 {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve path: %w", err)
			}
			repoPath = abs
		}

		dbPath, err := storage.DefaultPath()
		if err != nil {
			return err
		}
		store, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(context.Background(), repoPath, flagHistoryLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No evaluation runs recorded.")
			return nil
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s\n", bold("DATE                 SCORE  GRADE        ISSUES  COST     REPOSITORY"))
		for _, run := range runs {
			fmt.Printf("%-20s %s  %-12s %-7d $%-7.4f %s\n",
				run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				scoreColor(run.Score)(fmt.Sprintf("%4.1f", run.Score)),
				run.Grade, run.IssueCount, run.CostUSD, run.RepoPath)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "maximum runs to show")
	rootCmd.AddCommand(historyCmd)
}
