package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fleetship/fleetship/internal/shell/history"
)

// =============================================================================
// history Command
// =============================================================================

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "Path to config file")
		limit      = fs.Int("n", 20, "Maximum number of entries to show")
	)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: fleetship history [fleet] [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}
	fleetFilter := fs.Arg(0)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	// A fresh machine has no history directory yet; an absent database
	// is an empty history, not an error.
	if dir := filepath.Dir(cfg.History.DSN); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create history directory: %v\n", err)
			return ExitHistoryError
		}
	}

	store, err := history.NewSQLiteStore(cfg.History.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open history database: %v\n", err)
		return ExitHistoryError
	}
	defer store.Close()

	entries, err := store.ListEntries(context.Background(), history.ListOptions{
		Fleet: fleetFilter,
		Limit: *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot list deploy history: %v\n", err)
		return ExitHistoryError
	}

	if len(entries) == 0 {
		fmt.Println("no deploys recorded")
		return ExitSuccess
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tFLEET\tCOMMIT\tSERVICES\tSKIPPED\tDURATION\tSOURCE")
	for _, e := range entries {
		src := e.SourceCommit
		if len(src) > 8 {
			src = src[:8]
		}
		if e.SourceDirty {
			src += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.Fleet,
			e.ReleaseCommit,
			e.ServiceCount,
			e.SkippedCount,
			e.Duration.Round(timeRound),
			src,
		)
	}
	w.Flush()
	return ExitSuccess
}
