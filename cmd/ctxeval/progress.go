package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/PackmindHub/context-evaluator-sub000/internal/events"
)

// progressRenderer writes progress events to stderr so stdout stays clean for
// the structured output.
type progressRenderer struct {
	verbose bool
}

func (r *progressRenderer) callback() events.ProgressCallback {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	return func(e *events.Event) {
		switch e.Type {
		case events.EventTypeJobStarted,
			events.EventTypeDiscoveryCompleted,
			events.EventTypeDeduplicationCompleted,
			events.EventTypeCurationCompleted,
			events.EventTypeScoringCompleted:
			fmt.Fprintf(os.Stderr, "%s %s\n", cyan("»"), e.Message)
		case events.EventTypeJobCompleted:
			fmt.Fprintf(os.Stderr, "%s %s\n", green("✓"), e.Message)
		case events.EventTypeJobFailed:
			fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), e.Message)
		case events.EventTypeWarning, events.EventTypeEvaluatorRetry, events.EventTypeEvaluatorTimeout:
			fmt.Fprintf(os.Stderr, "%s %s\n", yellow("!"), e.Message)
		default:
			if r.verbose {
				fmt.Fprintf(os.Stderr, "  %s\n", e.Message)
			}
		}
	}
}
