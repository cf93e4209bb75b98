package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/doridoridoriand/holdwatch/internal/history"
)

type statsView struct {
	Holders     *int64           `json:"holders"`
	ATH         int64            `json:"ath"`
	Changes     map[string]int64 `json:"changes"`
	Activity    string           `json:"activity"`
	Samples     int              `json:"samples"`
	Errors      int              `json:"errors"`
	LastSuccess string           `json:"last_success,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
	Records     int              `json:"records"`
	Cap         int              `json:"cap"`
	Latest      *observationView `json:"latest,omitempty"`
}

// statsReport is the input of printStats.
type statsReport struct {
	stats   history.Stats
	records int
	cap     int
	latest  history.Observation

	// hasLatest is false for an empty history.
	hasLatest bool
}

func newStatsReport(policy history.LogPolicy, h []history.Observation, now time.Time) statsReport {
	r := statsReport{
		stats:   history.ComputeStats(h, now),
		records: len(h),
		cap:     policy.Cap(),
	}
	r.latest, r.hasLatest = policy.Latest(h)
	return r
}

// NewStatsCmd creates the 'stats' command.
func NewStatsCmd(flags *GlobalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the recorded history",
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
			store, err := newStore(cfg, newLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			h, err := store.Load()
			if err != nil {
				return err
			}
			report := newStatsReport(store.Policy(), h, time.Now())
			return printStats(cmd.OutOrStdout(), report, loc, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printStats(w io.Writer, r statsReport, loc *time.Location, asJSON bool) error {
	st := r.stats
	if asJSON {
		v := statsView{
			ATH:      st.ATH,
			Changes:  make(map[string]int64, len(history.Windows)),
			Activity: string(st.Activity),
			Samples:  st.Samples,
			Errors:   st.Errors,
			Records:  r.records,
			Cap:      r.cap,
		}
		if r.hasLatest {
			latest := newObservationView(r.latest, loc)
			v.Latest = &latest
		}
		if st.HasCurrent {
			current := st.Current
			v.Holders = &current
		}
		for _, win := range history.Windows {
			v.Changes[win.Label] = st.Change(win.Label)
		}
		if !st.LastSuccess.IsZero() {
			v.LastSuccess = st.LastSuccess.In(loc).Format(time.RFC3339)
		}
		if !st.LastError.IsZero() {
			v.LastError = st.LastError.In(loc).Format(time.RFC3339)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	if !st.HasCurrent {
		fmt.Fprintln(w, "Holders:  N/A")
	} else {
		fmt.Fprintf(w, "Holders:  %d\n", st.Current)
	}
	fmt.Fprintf(w, "ATH:      %d\n", st.ATH)
	for _, win := range history.Windows {
		fmt.Fprintf(w, "%-9s %+d\n", win.Label+":", st.Change(win.Label))
	}
	fmt.Fprintf(w, "Activity: %s\n", st.Activity)
	fmt.Fprintf(w, "Samples:  %d (errors %d)\n", st.Samples, st.Errors)
	fmt.Fprintf(w, "Records:  %d/%d\n", r.records, r.cap)
	if r.hasLatest {
		fmt.Fprintf(w, "Latest:   %s %s %s\n", r.latest.Timestamp.In(loc).Format("2006-01-02 15:04:05"), r.latest.Status, r.latest.Message)
	}
	if !st.LastSuccess.IsZero() {
		fmt.Fprintf(w, "Last OK:  %s\n", st.LastSuccess.In(loc).Format("2006-01-02 15:04:05"))
	}
	if !st.LastError.IsZero() {
		fmt.Fprintf(w, "Last err: %s\n", st.LastError.In(loc).Format("2006-01-02 15:04:05"))
	}
	return nil
}
