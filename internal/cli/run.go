package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doridoridoriand/holdwatch/internal/config"
)

// NewRunCmd creates the 'run' command: a single sampling pass.
func NewRunCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Take one sample and record it",
		Long: `Fetch the page once, select the holder count and append it to the history.

Exit status is 1 when the history could not be written, and in rotating mode
also when no value could be sampled (the failure is still recorded).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.Load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return runOnce(ctx, cmd, cfg)
		},
	}
}

func runOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger := newLogger(cfg, cmd.ErrOrStderr())
	a, err := newApp(cfg, logger, hooks{})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.job.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("sample interrupted: %w", err)}
		}
		return &ExitError{Code: 1, Err: fmt.Errorf("history not saved: %w", err)}
	}

	out := cmd.OutOrStdout()
	switch {
	case res.Success:
		fmt.Fprintf(out, "%d holders (%s)\n", res.Observation.Value, res.Observation.Message)
		return nil
	case res.Skipped():
		fmt.Fprintf(out, "sample skipped: %v\n", res.Err)
		return nil
	default:
		return &ExitError{Code: 1, Err: fmt.Errorf("sample failed: %w", res.Err)}
	}
}
