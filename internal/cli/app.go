package cli

import (
	"fmt"
	"io"

	"github.com/doridoridoriand/holdwatch/internal/archive"
	"github.com/doridoridoriand/holdwatch/internal/config"
	"github.com/doridoridoriand/holdwatch/internal/dom"
	"github.com/doridoridoriand/holdwatch/internal/extract"
	"github.com/doridoridoriand/holdwatch/internal/fetch"
	"github.com/doridoridoriand/holdwatch/internal/history"
	"github.com/doridoridoriand/holdwatch/internal/job"
	"github.com/doridoridoriand/holdwatch/internal/log"
)

// app is the sampling pipeline assembled from a Config.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   *history.Store
	job     *job.Job
	archive *archive.Archive
}

// hooks lets watch mode attach observers to the job.
type hooks struct {
	observers []job.Observer
	onState   func(string, job.State)
}

func newLogger(cfg *config.Config, w io.Writer) *log.Logger {
	logger := log.NewLogger(log.ParseLevel(cfg.LogLevel))
	logger.SetOutput(w)
	return logger
}

func newStore(cfg *config.Config, logger *log.Logger) (*history.Store, error) {
	policy, err := newPolicy(cfg)
	if err != nil {
		return nil, err
	}
	return history.NewStore(cfg.HistoryFile, policy, logger), nil
}

func newPolicy(cfg *config.Config) (history.LogPolicy, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case config.ModeSeries:
		return history.NewAppendOnlySeries(cfg.MaxRecords, loc), nil
	case config.ModeRotating:
		return history.NewRotatingAnnotated(cfg.MaxRecords, loc), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

func newProvider(cfg *config.Config) (fetch.Provider, error) {
	opts := fetch.Options{
		LivenessTimeout:   cfg.Fetch.LivenessTimeout.Std(),
		SettleDelay:       cfg.Fetch.SettleDelay.Std(),
		UserAgent:         cfg.Fetch.UserAgent,
		LivenessTag:       cfg.Extract.LeafTag,
		BrowserPath:       cfg.Fetch.BrowserPath,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	}
	return fetch.Build(fetch.Renderer(cfg.Fetch.Renderer), opts, cfg.Fetch.Retries, cfg.Fetch.RetryBackoff.Std())
}

func newApp(cfg *config.Config, logger *log.Logger, h hooks) (*app, error) {
	store, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	var sinks []job.Sink
	if cfg.Archive.Path != "" {
		arc, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			// The JSON history stays authoritative; run without the archive.
			logger.LogError("archive", err, map[string]interface{}{"path": cfg.Archive.Path})
		} else {
			a.archive = arc
			sinks = append(sinks, arc)
		}
	}

	a.job, err = job.New(job.Options{
		URL:      cfg.TargetURL,
		Provider: provider,
		Scanner: dom.NewScanner(dom.Pattern{
			ContainerTag: cfg.Extract.ContainerTag,
			ClassMarker:  cfg.Extract.ClassMarker,
			LeafTag:      cfg.Extract.LeafTag,
		}),
		Selector:  &extract.Selector{Threshold: cfg.Extract.Threshold, Keyword: cfg.Extract.Keyword},
		Store:     store,
		Logger:    logger,
		Sinks:     sinks,
		Observers: h.observers,
		OnState:   h.onState,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	if a.archive != nil {
		return a.archive.Close()
	}
	return nil
}
