package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhyland87/Cryocooler-Controller/internal/config"
	"github.com/jhyland87/Cryocooler-Controller/internal/journal"
)

type historyFlags struct {
	limit       int
	transitions bool
	asJSON      bool
	path        string
}

func newHistoryCmd() *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs or state transitions from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := f.path
			if path == "" {
				cfg, err := loadConfig(cfgFile)
				if err != nil {
					return err
				}
				path = cfg.Journal.Path
			}
			if path == "" {
				return config.NewError(config.CodeJournal, "history", "no journal path configured", nil)
			}
			return showHistory(cmd.Context(), cmd.OutOrStdout(), path, *f)
		},
	}
	fs := cmd.Flags()
	fs.IntVarP(&f.limit, "limit", "n", 20, "maximum rows")
	fs.BoolVarP(&f.transitions, "transitions", "t", false, "list transitions instead of runs")
	fs.BoolVar(&f.asJSON, "json", false, "print JSON")
	fs.StringVar(&f.path, "journal", "", "journal database (defaults to journal.path)")
	return cmd
}

func showHistory(ctx context.Context, w io.Writer, path string, f historyFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	j, err := journal.Open(path)
	if err != nil {
		return config.NewError(config.CodeJournal, "history", "open "+path, err)
	}
	defer j.Close()

	if f.transitions {
		ts, err := j.Recent(ctx, f.limit)
		if err != nil {
			return fmt.Errorf("read transitions: %w", err)
		}
		if f.asJSON {
			return writeJSON(w, ts)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "AT\tRUN\tFROM\tTO\tTEMP_K\tREASON")
		for _, t := range ts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
				t.At.UTC().Format(time.RFC3339), shortID(t.RunID), t.From, t.To, t.TemperatureK, t.Reason)
		}
		return tw.Flush()
	}

	runs, err := j.Runs(ctx, f.limit)
	if err != nil {
		return fmt.Errorf("read runs: %w", err)
	}
	if f.asJSON {
		return writeJSON(w, runs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTART_K\tDURATION\tEND_K\tEND_STATE\tREASON")
	for _, r := range runs {
		duration, endK, state := "running", "-", "-"
		if r.EndedAt != nil {
			duration = r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
			endK = fmt.Sprintf("%.2f", r.EndK)
			state = r.EndState
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), r.StartedAt.UTC().Format(time.RFC3339), r.StartK, duration, endK, state, r.Reason)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// shortID trims a UUID run ID to its first group.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
