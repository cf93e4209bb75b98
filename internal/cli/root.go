package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doridoridoriand/holdwatch/internal/config"
)

// ExitError carries a process exit status out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// GlobalFlags are shared by every command.
type GlobalFlags struct {
	ConfigPath    string
	URL           OptionalString
	File          OptionalString
	Mode          OptionalMode
	MaxRecords    OptionalInt
	Interval      OptionalDuration
	Renderer      OptionalString
	MetricsListen OptionalString
	NoUI          OptionalBool
	LogLevel      OptionalString
}

func (g *GlobalFlags) register(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.StringVarP(&g.ConfigPath, "config", "c", "", "path to YAML config file")
	fs.VarP(&g.URL, "url", "u", "page to sample (override config)")
	fs.VarP(&g.File, "file", "f", "history file (override config)")
	fs.Var(&g.Mode, "mode", "history mode: rotating|series")
	fs.Var(&g.MaxRecords, "max-records", "retention cap (override config)")
	fs.VarP(&g.Interval, "interval", "i", "sampling interval for watch (override config)")
	fs.Var(&g.Renderer, "renderer", "page renderer: auto|browser|http")
	fs.Var(&g.MetricsListen, "metrics-listen", "metrics listen address for watch (e.g. :9100)")
	noUI := fs.VarPF(&g.NoUI, "no-ui", "", "disable the dashboard (log only)")
	noUI.NoOptDefVal = "true"
	fs.Var(&g.LogLevel, "log-level", "log level: debug|info|warn|error")
}

// Overrides converts the set flags into config overrides.
func (g *GlobalFlags) Overrides() config.CLIOverrides {
	return buildOverrides(g.URL, g.File, g.Mode, g.MaxRecords, g.Interval, g.Renderer, g.MetricsListen, g.NoUI, g.LogLevel)
}

// Load reads the config file, if any, with the flag overrides applied.
func (g *GlobalFlags) Load() (*config.Config, error) {
	cfg, err := config.Load(g.ConfigPath, g.Overrides())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func buildOverrides(
	url OptionalString,
	file OptionalString,
	mode OptionalMode,
	maxRecords OptionalInt,
	interval OptionalDuration,
	renderer OptionalString,
	metricsListen OptionalString,
	noUI OptionalBool,
	logLevel OptionalString,
) config.CLIOverrides {
	overrides := config.CLIOverrides{}

	if v, ok := url.Value(); ok && v != "" {
		value := v
		overrides.TargetURL = &value
	}
	if v, ok := file.Value(); ok && v != "" {
		value := v
		overrides.HistoryFile = &value
	}
	if v, ok := mode.Value(); ok {
		value := v
		overrides.Mode = &value
	}
	if v, ok := maxRecords.Value(); ok {
		value := v
		overrides.MaxRecords = &value
	}
	if v, ok := interval.Value(); ok {
		value := v
		overrides.Interval = &value
	}
	if v, ok := renderer.Value(); ok && v != "" {
		value := v
		overrides.Renderer = &value
	}
	if v, ok := metricsListen.Value(); ok && v != "" {
		value := v
		overrides.MetricsListen = &value
	}
	if v, ok := noUI.Value(); ok {
		value := v
		overrides.UIDisable = &value
	}
	if v, ok := logLevel.Value(); ok && v != "" {
		value := v
		overrides.LogLevel = &value
	}

	return overrides
}

// NewRootCmd builds the holdwatch command tree.
func NewRootCmd(version string) *cobra.Command {
	flags := &GlobalFlags{}
	cmd := &cobra.Command{
		Use:   "holdwatch",
		Short: "Sample a token holder count from a rendered web page",
		Long: `holdwatch renders a token page, picks the holder count out of it and keeps
a capped JSON history of the readings.

Two history modes are supported:
  rotating  annotated log, newest first, failures recorded (default cap 500)
  series    chronological series, failures skipped (default cap 10000)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(cmd)

	cmd.AddCommand(NewRunCmd(flags))
	cmd.AddCommand(NewWatchCmd(flags))
	cmd.AddCommand(NewHistoryCmd(flags))
	cmd.AddCommand(NewStatsCmd(flags))
	cmd.AddCommand(NewVersionCmd(version))
	return cmd
}

// Execute runs the command tree and returns the process exit status.
func Execute(version string, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd(version)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return ExitCode(cmd.Execute(), stderr)
}

// ExitCode maps a command error to an exit status, printing it to stderr.
func ExitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(stderr, exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintln(stderr, err)
	return 1
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// requestReload queues a reload without blocking when one is already pending.
func requestReload(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
