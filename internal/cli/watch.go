package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doridoridoriand/holdwatch/internal/config"
	"github.com/doridoridoriand/holdwatch/internal/job"
	"github.com/doridoridoriand/holdwatch/internal/log"
	"github.com/doridoridoriand/holdwatch/internal/metrics"
	"github.com/doridoridoriand/holdwatch/internal/scheduler"
	"github.com/doridoridoriand/holdwatch/internal/ui"
)

// NewWatchCmd creates the 'watch' command: sample on an interval until
// interrupted.
func NewWatchCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sample repeatedly on an interval",
		Long: `Take a sample immediately and then once per interval until interrupted.

The dashboard shows the current count, the change windows and recent records.
With --no-ui the structured log is written to stderr instead. Editing the
config file (or sending SIGHUP) reloads the interval and log level.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.Load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return watch(ctx, cmd.ErrOrStderr(), flags, cfg)
		},
	}
}

func watch(ctx context.Context, stderr io.Writer, flags *GlobalFlags, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logOut := stderr
	if !cfg.UI.Disable {
		// The dashboard owns the terminal.
		logOut = io.Discard
	}
	logger := newLogger(cfg, logOut)

	var (
		observers []job.Observer
		tracker   *ui.Tracker
		recorder  *metrics.Recorder
		onState   func(string, job.State)
	)
	if cfg.Metrics.Listen != "" {
		recorder = metrics.NewRecorder()
		observers = append(observers, recorder)
	}
	if !cfg.UI.Disable {
		tracker = ui.NewTracker()
		observers = append(observers, tracker)
		onState = tracker.OnState
	}

	a, err := newApp(cfg, logger, hooks{observers: observers, onState: onState})
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(cfg.Interval.Std(), a.job, func(res job.Result, err error) {
		if err != nil && errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			logger.Warn("sample not persisted", map[string]interface{}{"run_id": res.RunID, "error": err.Error()})
		}
	})

	var wg sync.WaitGroup
	if recorder != nil {
		if h, err := a.store.Load(); err == nil {
			recorder.ObserveHistory(h)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, recorder); err != nil && !errors.Is(err, context.Canceled) {
				logger.LogError("metrics", err, map[string]interface{}{"listen": cfg.Metrics.Listen})
			}
		}()
	}

	apply := func(next *config.Config) {
		sched.UpdateConfig(next.Interval.Std())
		logger.SetLevel(log.ParseLevel(next.LogLevel))
		logger.Info("config applied", map[string]interface{}{"interval": next.Interval.Std().String(), "log_level": next.LogLevel})
	}
	if flags.ConfigPath != "" {
		startReloaders(ctx, &wg, flags, logger, apply)
	}

	schedDone := make(chan error, 1)
	go func() {
		schedDone <- sched.Run(ctx)
	}()

	if !cfg.UI.Disable {
		dashboard := ui.New(ui.Settings{
			URL:      cfg.TargetURL,
			Mode:     string(cfg.Mode),
			Cap:      a.store.Policy().Cap(),
			Interval: cfg.Interval.Std(),
			Recent:   cfg.UI.Recent,
			Location: loc,
		}, a.store, tracker)
		if err := dashboard.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cancel()
			<-schedDone
			wg.Wait()
			return err
		}
	} else {
		<-ctx.Done()
	}

	cancel()
	sched.Stop()
	<-schedDone
	wg.Wait()
	return nil
}

// startReloaders applies config changes from file edits and from SIGHUP.
func startReloaders(ctx context.Context, wg *sync.WaitGroup, flags *GlobalFlags, logger *log.Logger, apply func(*config.Config)) {
	overrides := flags.Overrides()

	w, err := config.NewWatcher(flags.ConfigPath, overrides, logger)
	if err != nil {
		logger.LogError("config", err, map[string]interface{}{"path": flags.ConfigPath})
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(ctx, apply)
		}()
	}

	reload := make(chan struct{}, 1)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				requestReload(reload)
			case <-reload:
				cfg, err := config.Load(flags.ConfigPath, overrides)
				logger.LogConfigLoad(err == nil, flags.ConfigPath, err)
				if err == nil {
					apply(cfg)
				}
			}
		}
	}()
}
