package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doridoridoriand/holdwatch/internal/dom"
	"github.com/doridoridoriand/holdwatch/internal/extract"
	"github.com/doridoridoriand/holdwatch/internal/fetch"
	"github.com/doridoridoriand/holdwatch/internal/history"
	"github.com/doridoridoriand/holdwatch/internal/log"
)

// State is a step of one sampling run.
type State int

const (
	StateStart State = iota
	StateFetching
	StateScanning
	StateSelecting
	StateRecording
	StateDone
)

var stateNames = map[State]string{
	StateStart:     "start",
	StateFetching:  "fetching",
	StateScanning:  "scanning",
	StateSelecting: "selecting",
	StateRecording: "recording",
	StateDone:      "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StageError is an extraction failure tagged with the state it happened in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Sink receives a copy of every recorded observation.
type Sink interface {
	Append(ctx context.Context, runID string, o history.Observation) error
}

// Observer is told about every finished run, including runs that failed to
// persist (err != nil).
type Observer interface {
	ObserveRun(r Result, err error)
}

// Result describes one run.
type Result struct {
	RunID string
	// Success is true when a value was selected and recorded.
	Success bool
	// Recorded is false for failures the log policy skips.
	Recorded    bool
	Observation history.Observation
	Selection   extract.Selection
	// Err is the extraction failure, if any.
	Err           error
	FetchDuration time.Duration
	History       []history.Observation
}

// Skipped reports a failed run that left the history untouched.
func (r Result) Skipped() bool {
	return !r.Success && !r.Recorded
}

// Options assemble a Job.
type Options struct {
	URL       string
	Provider  fetch.Provider
	Scanner   *dom.Scanner
	Selector  *extract.Selector
	Store     *history.Store
	Logger    *log.Logger
	Sinks     []Sink
	Observers []Observer
	// OnState, when set, is called on every transition.
	OnState func(runID string, s State)
	Now     func() time.Time
	NewID   func() string
}

// Job runs fetch, scan, select and record once per Run.
type Job struct {
	mu        sync.Mutex
	url       string
	provider  fetch.Provider
	scanner   *dom.Scanner
	selector  *extract.Selector
	store     *history.Store
	logger    *log.Logger
	sinks     []Sink
	observers []Observer
	onState   func(string, State)
	now       func() time.Time
	newID     func() string
}

// New validates opts and builds a Job.
func New(opts Options) (*Job, error) {
	if opts.URL == "" {
		return nil, errors.New("job: target url is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("job: provider is required")
	}
	if opts.Store == nil {
		return nil, errors.New("job: history store is required")
	}
	j := &Job{
		url:       opts.URL,
		provider:  opts.Provider,
		scanner:   opts.Scanner,
		selector:  opts.Selector,
		store:     opts.Store,
		logger:    opts.Logger,
		sinks:     opts.Sinks,
		observers: opts.Observers,
		onState:   opts.OnState,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if j.scanner == nil {
		j.scanner = dom.NewScanner(dom.DefaultPattern())
	}
	if j.selector == nil {
		j.selector = extract.NewSelector()
	}
	if j.now == nil {
		j.now = time.Now
	}
	if j.newID == nil {
		j.newID = func() string { return uuid.NewString() }
	}
	return j, nil
}

// Run performs one sampling pass. Extraction failures never produce an
// error: they are recorded (or skipped) and reported in Result. The returned
// error is non-nil when the history could not be persisted, or when ctx was
// cancelled before a value was selected, in which case nothing is recorded.
// Runs on the same Job are serialized.
func (j *Job) Run(ctx context.Context) (Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	res := Result{RunID: j.newID()}
	j.transition(res.RunID, StateStart)

	value, err := j.extract(ctx, &res)
	if err != nil && ctx.Err() != nil {
		res.Err = ctx.Err()
		res.History = j.store.Snapshot()
		j.transition(res.RunID, StateDone)
		return res, ctx.Err()
	}

	j.transition(res.RunID, StateRecording)
	var persistErr error
	if err == nil {
		res.Observation, persistErr = j.store.RecordSuccess(value, j.now())
		if persistErr == nil {
			res.Success = true
			res.Recorded = true
			j.logSample(res)
		}
	} else {
		res.Err = err
		var recorded bool
		res.Observation, recorded, persistErr = j.store.RecordError(err.Error(), j.now())
		res.Recorded = recorded && persistErr == nil
		j.logFailure(res, err)
	}

	if persistErr == nil && res.Recorded {
		j.archive(ctx, res)
	}
	res.History = j.store.Snapshot()
	j.transition(res.RunID, StateDone)

	for _, o := range j.observers {
		o.ObserveRun(res, persistErr)
	}
	if persistErr != nil {
		if j.logger != nil {
			j.logger.LogError("history", persistErr, map[string]interface{}{"run_id": res.RunID})
		}
		return res, persistErr
	}
	return res, nil
}

func (j *Job) extract(ctx context.Context, res *Result) (int64, error) {
	j.transition(res.RunID, StateFetching)
	start := time.Now()
	root, err := j.provider.Fetch(ctx, j.url)
	res.FetchDuration = time.Since(start)
	if err != nil {
		return 0, &StageError{Stage: StateFetching, Err: err}
	}

	j.transition(res.RunID, StateScanning)
	if root == nil {
		return 0, &StageError{Stage: StateScanning, Err: errors.New("empty document")}
	}
	candidates := j.scanner.Scan(root)

	j.transition(res.RunID, StateSelecting)
	sel, err := j.selector.Select(candidates)
	if err != nil {
		return 0, &StageError{Stage: StateSelecting, Err: err}
	}
	res.Selection = sel
	return sel.Value, nil
}

func (j *Job) archive(ctx context.Context, res Result) {
	for _, s := range j.sinks {
		if err := s.Append(ctx, res.RunID, res.Observation); err != nil && j.logger != nil {
			j.logger.LogError("archive", err, map[string]interface{}{"run_id": res.RunID})
		}
	}
}

func (j *Job) transition(runID string, s State) {
	if j.logger != nil {
		j.logger.Debug("Run state", map[string]interface{}{"run_id": runID, "state": s.String()})
	}
	if j.onState != nil {
		j.onState(runID, s)
	}
}

func (j *Job) logSample(res Result) {
	if j.logger == nil {
		return
	}
	j.logger.LogSample(res.RunID, res.Observation.Value, res.Observation.Message, res.Selection.Confirmed)
}

func (j *Job) logFailure(res Result, err error) {
	if j.logger == nil {
		return
	}
	stage := StateFetching.String()
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage.String()
	}
	j.logger.LogSampleFailed(res.RunID, stage, err, res.Recorded)
}
