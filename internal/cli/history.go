package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/doridoridoriand/holdwatch/internal/archive"
	"github.com/doridoridoriand/holdwatch/internal/history"
)

type historyOptions struct {
	limit   int
	asJSON  bool
	archive bool
}

// observationView is the JSON shape printed by 'history --json'.
type observationView struct {
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Holders   *int64 `json:"holders"`
	Message   string `json:"message"`
}

// NewHistoryCmd creates the 'history' command.
func NewHistoryCmd(flags *GlobalFlags) *cobra.Command {
	opts := &historyOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the recorded history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.Load()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			if opts.archive {
				return printArchive(cmd, cfg.Archive.Path, opts, loc)
			}
			store, err := newStore(cfg, newLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			h, err := store.Load()
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), newestFirst(h, opts.limit), loc, opts.asJSON)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "number of records to print (0 for all)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "read the sqlite archive instead of the history file")
	return cmd
}

// newestFirst returns up to limit records ordered by descending timestamp,
// whatever order the log keeps them in.
func newestFirst(h []history.Observation, limit int) []history.Observation {
	out := make([]history.Observation, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newObservationView(o history.Observation, loc *time.Location) observationView {
	v := observationView{
		Timestamp: o.Timestamp.In(loc).Format(time.RFC3339),
		Status:    string(o.Status),
		Message:   o.Message,
	}
	if value, ok := o.Holders(); ok {
		v.Holders = &value
	}
	return v
}

// printArchive lists archived observations, which outlive the history cap.
func printArchive(cmd *cobra.Command, path string, opts *historyOptions, loc *time.Location) error {
	if path == "" {
		return errors.New("no archive configured (set archive.path)")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	arc, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer arc.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := arc.Recent(ctx, opts.limit)
	if err != nil {
		return err
	}
	total, err := arc.Count(ctx)
	if err != nil {
		return err
	}
	h := make([]history.Observation, 0, len(entries))
	for _, e := range entries {
		h = append(h, e.Observation)
	}
	out := cmd.OutOrStdout()
	if err := printHistory(out, h, loc, opts.asJSON); err != nil {
		return err
	}
	if !opts.asJSON {
		fmt.Fprintf(out, "%d of %d archived records\n", len(h), total)
	}
	return nil
}

func printHistory(w io.Writer, h []history.Observation, loc *time.Location, asJSON bool) error {
	if asJSON {
		views := make([]observationView, 0, len(h))
		for _, o := range h {
			views = append(views, newObservationView(o, loc))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	if len(h) == 0 {
		_, err := fmt.Fprintln(w, "no records")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATUS\tHOLDERS\tMESSAGE")
	for _, o := range h {
		holders := "N/A"
		if value, ok := o.Holders(); ok {
			holders = fmt.Sprintf("%d", value)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Timestamp.In(loc).Format("2006-01-02 15:04:05"), o.Status, holders, o.Message)
	}
	return tw.Flush()
}
