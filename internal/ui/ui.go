package ui

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/doridoridoriand/holdwatch/internal/history"
	"github.com/doridoridoriand/holdwatch/internal/job"
)

const (
	uiRefreshInterval = 500 * time.Millisecond
	minBoxHeight      = 4
	statsBoxHeight    = 6
)

// Source provides the retained history.
type Source interface {
	Snapshot() []history.Observation
}

// Settings is the static part of the header.
type Settings struct {
	URL      string
	Mode     string
	Cap      int
	Interval time.Duration
	Recent   int
	Location *time.Location
}

// Tracker follows the sampling job. It implements job.Observer and provides
// an OnState hook.
type Tracker struct {
	mu      sync.RWMutex
	state   job.State
	runID   string
	last    job.Result
	lastErr error
	lastAt  time.Time
	runs    int
	now     func() time.Time
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{state: job.StateDone, now: time.Now}
}

// OnState records the current step of the running job.
func (t *Tracker) OnState(runID string, s job.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runID = runID
	t.state = s
}

// ObserveRun records the outcome of a finished run.
func (t *Tracker) ObserveRun(r job.Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = r
	t.lastErr = err
	t.lastAt = t.now()
	t.runs++
}

// TrackerSnapshot is a copy of the tracker state.
type TrackerSnapshot struct {
	State   job.State
	RunID   string
	Last    job.Result
	LastErr error
	LastAt  time.Time
	Runs    int
}

func (t *Tracker) Snapshot() TrackerSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TrackerSnapshot{
		State:   t.state,
		RunID:   t.runID,
		Last:    t.last,
		LastErr: t.lastErr,
		LastAt:  t.lastAt,
		Runs:    t.runs,
	}
}

// UI renders a TUI view of the holder count history.
type UI struct {
	cfg     Settings
	source  Source
	tracker *Tracker
	now     func() time.Time
}

// New returns a UI instance. tracker may be nil.
func New(cfg Settings, source Source, tracker *Tracker) *UI {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Recent <= 0 {
		cfg.Recent = 20
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	return &UI{cfg: cfg, source: source, tracker: tracker, now: time.Now}
}

// Run blocks until the context is cancelled or the user quits.
func (u *UI) Run(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	screen.HideCursor()
	defer screen.Fini()

	eventCh := make(chan tcell.Event, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(uiRefreshInterval)
	defer ticker.Stop()

	u.render(screen)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					return context.Canceled
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case <-ticker.C:
			u.render(screen)
		}
	}
}

func (u *UI) render(screen tcell.Screen) {
	screen.Clear()
	width, height := screen.Size()
	if width < 20 || height < 5 {
		screen.Show()
		return
	}

	now := u.now()
	h := u.source.Snapshot()
	st := history.ComputeStats(h, now)

	header := fmt.Sprintf(" holdwatch  %s  (q to quit)", now.In(u.cfg.Location).Format("2006-01-02 15:04:05"))
	drawText(screen, 0, 0, width, header, tcell.StyleDefault.Bold(true))
	drawText(screen, 0, 1, width, formatConfigInfo(u.cfg), tcell.StyleDefault.Foreground(tcell.ColorGray))
	drawStyledText(screen, 0, 2, width, flattenStyledText(formatRunLine(u.tracker.Snapshot(), u.cfg.Location), width))

	y := 3
	if height-y >= statsBoxHeight {
		u.drawStatsBox(screen, 0, y, width, statsBoxHeight, st)
		y += statsBoxHeight
	}
	if height-y >= minBoxHeight {
		u.drawRecentBox(screen, 0, y, width, height-y, recentFirst(h, u.cfg.Recent))
	}

	screen.Show()
}

func (u *UI) drawStatsBox(screen tcell.Screen, x, y, width, height int, st history.Stats) {
	drawBox(screen, x, y, width, height)
	drawText(screen, x+2, y, width-4, " Stats ", tcell.StyleDefault.Bold(true))

	current := "-"
	if st.HasCurrent {
		current = fmt.Sprintf("%d", st.Current)
	}
	drawStyledText(screen, x+1, y+1, width-2, flattenStyledText([]styledText{
		{text: padOrTrim("Holders: "+current, 20), style: tcell.StyleDefault.Bold(true)},
		{text: padOrTrim(fmt.Sprintf("ATH: %d", st.ATH), 16), style: tcell.StyleDefault},
		{text: "Activity: ", style: tcell.StyleDefault},
		{text: string(st.Activity), style: activityStyle(st.Activity)},
	}, width-2))

	parts := make([]styledText, 0, len(history.Windows)*2)
	for _, w := range history.Windows {
		change := st.Change(w.Label)
		parts = append(parts,
			styledText{text: w.Label + ": ", style: tcell.StyleDefault},
			styledText{text: padOrTrim(formatChange(change), 10), style: changeStyle(change)},
		)
	}
	drawStyledText(screen, x+1, y+2, width-2, flattenStyledText(parts, width-2))

	counts := fmt.Sprintf("Samples: %d  Errors: %d", st.Samples, st.Errors)
	if !st.LastSuccess.IsZero() {
		counts += "  Last success: " + st.LastSuccess.In(u.cfg.Location).Format("2006-01-02 15:04:05")
	}
	drawText(screen, x+1, y+3, width-2, counts, tcell.StyleDefault.Foreground(tcell.ColorGray))
}

func (u *UI) drawRecentBox(screen tcell.Screen, x, y, width, height int, recent []history.Observation) {
	drawBox(screen, x, y, width, height)
	drawText(screen, x+2, y, width-4, " Recent ", tcell.StyleDefault.Bold(true))
	if height <= 2 {
		return
	}

	lo, hi := valueRange(recent)
	maxRows := height - 2
	for i := 0; i < len(recent) && i < maxRows; i++ {
		line := u.formatObservationLine(width-2, recent[i], lo, hi)
		drawStyledText(screen, x+1, y+1+i, width-2, line)
	}
}

func (u *UI) formatObservationLine(width int, o history.Observation, lo, hi int64) []styledRune {
	style := statusStyle(o.Status)
	ts := padOrTrim(o.Timestamp.In(u.cfg.Location).Format("01-02 15:04:05"), 15)
	status := padOrTrim(string(o.Status), 8)
	value := "N/A"
	if v, ok := o.Holders(); ok {
		value = fmt.Sprintf("%d", v)
	}

	parts := []styledText{
		{text: ts, style: tcell.StyleDefault},
		{text: " ", style: tcell.StyleDefault},
		{text: status, style: style},
		{text: " ", style: tcell.StyleDefault},
		{text: padOrTrim(value, 8), style: tcell.StyleDefault.Bold(true)},
		{text: " ", style: tcell.StyleDefault},
		{text: padOrTrim(o.Message, minInt(24, width)), style: messageStyle(o)},
		{text: " ", style: tcell.StyleDefault},
	}

	used := 0
	for _, p := range parts {
		used += len([]rune(p.text))
	}
	if barWidth := width - used; barWidth > 0 {
		v, ok := o.Holders()
		if ok {
			parts = append(parts, styledText{text: buildBar(v, lo, hi, barWidth), style: style})
		}
	}
	return flattenStyledText(parts, width)
}

// recentFirst returns up to n observations, newest first, whichever order
// the history is stored in.
func recentFirst(h []history.Observation, n int) []history.Observation {
	out := make([]history.Observation, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func valueRange(h []history.Observation) (int64, int64) {
	var lo, hi int64
	first := true
	for _, o := range h {
		v, ok := o.Holders()
		if !ok {
			continue
		}
		if first || v < lo {
			lo = v
		}
		if first || v > hi {
			hi = v
		}
		first = false
	}
	return lo, hi
}

// buildBar scales value between lo and hi onto width cells. The lowest value
// still gets one cell.
func buildBar(value, lo, hi int64, width int) string {
	if width <= 0 {
		return ""
	}
	units := width
	if hi > lo {
		ratio := float64(value-lo) / float64(hi-lo)
		units = 1 + int(math.Round(ratio*float64(width-1)))
	}
	if units > width {
		units = width
	}
	if units < 0 {
		units = 0
	}
	return strings.Repeat("#", units) + strings.Repeat(" ", width-units)
}

func formatRunLine(s TrackerSnapshot, loc *time.Location) []styledText {
	if s.State != job.StateDone {
		return []styledText{
			{text: " run ", style: tcell.StyleDefault},
			{text: s.State.String() + "...", style: tcell.StyleDefault.Foreground(tcell.ColorYellow)},
		}
	}
	if s.Runs == 0 {
		return []styledText{{text: " waiting for first run", style: tcell.StyleDefault.Foreground(tcell.ColorGray)}}
	}
	at := s.LastAt.In(loc).Format("15:04:05")
	switch {
	case s.LastErr != nil:
		return []styledText{
			{text: " last run " + at + " ", style: tcell.StyleDefault},
			{text: "WRITE FAILED: " + s.LastErr.Error(), style: tcell.StyleDefault.Foreground(tcell.ColorRed)},
		}
	case s.Last.Success:
		return []styledText{
			{text: " last run " + at + " ", style: tcell.StyleDefault},
			{text: "ok", style: tcell.StyleDefault.Foreground(tcell.ColorGreen)},
			{text: fmt.Sprintf("  fetch %s", formatDuration(s.Last.FetchDuration)), style: tcell.StyleDefault.Foreground(tcell.ColorGray)},
		}
	case s.Last.Skipped():
		return []styledText{
			{text: " last run " + at + " ", style: tcell.StyleDefault},
			{text: "skipped: " + errText(s.Last.Err), style: tcell.StyleDefault.Foreground(tcell.ColorYellow)},
		}
	default:
		return []styledText{
			{text: " last run " + at + " ", style: tcell.StyleDefault},
			{text: "failed: " + errText(s.Last.Err), style: tcell.StyleDefault.Foreground(tcell.ColorRed)},
		}
	}
}

func errText(err error) string {
	if err == nil {
		return "-"
	}
	return err.Error()
}

func formatChange(change int64) string {
	if change > 0 {
		return fmt.Sprintf("+%d", change)
	}
	return fmt.Sprintf("%d", change)
}

func drawBox(screen tcell.Screen, x, y, width, height int) {
	if width < 2 || height < 2 {
		return
	}
	right := x + width - 1
	bottom := y + height - 1

	setCell(screen, x, y, '+', tcell.StyleDefault)
	setCell(screen, right, y, '+', tcell.StyleDefault)
	setCell(screen, x, bottom, '+', tcell.StyleDefault)
	setCell(screen, right, bottom, '+', tcell.StyleDefault)

	for col := x + 1; col < right; col++ {
		setCell(screen, col, y, '-', tcell.StyleDefault)
		setCell(screen, col, bottom, '-', tcell.StyleDefault)
	}
	for row := y + 1; row < bottom; row++ {
		setCell(screen, x, row, '|', tcell.StyleDefault)
		setCell(screen, right, row, '|', tcell.StyleDefault)
	}
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	drawStyledText(screen, x, y, width, []styledRune{{r: []rune(text), style: style}})
}

type styledText struct {
	text  string
	style tcell.Style
}

type styledRune struct {
	r     []rune
	style tcell.Style
}

func drawStyledText(screen tcell.Screen, x, y, width int, parts []styledRune) {
	if width <= 0 {
		return
	}
	col := x
	for _, part := range parts {
		for _, r := range part.r {
			if col >= x+width {
				return
			}
			setCell(screen, col, y, r, part.style)
			col++
		}
	}
	for col < x+width {
		setCell(screen, col, y, ' ', tcell.StyleDefault)
		col++
	}
}

func flattenStyledText(parts []styledText, width int) []styledRune {
	result := make([]styledRune, 0, len(parts))
	used := 0
	for _, part := range parts {
		runes := []rune(part.text)
		if used+len(runes) > width {
			runes = runes[:maxInt(0, width-used)]
		}
		result = append(result, styledRune{r: runes, style: part.style})
		used += len(runes)
		if used >= width {
			break
		}
	}
	return result
}

func setCell(screen tcell.Screen, x, y int, r rune, style tcell.Style) {
	screen.SetContent(x, y, r, nil, style)
}

func padOrTrim(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) > width {
		return string(runes[:width])
	}
	if len(runes) < width {
		return value + strings.Repeat(" ", width-len(runes))
	}
	return value
}

func statusStyle(status history.Status) tcell.Style {
	switch status {
	case history.StatusSuccess:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case history.StatusError:
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
}

func messageStyle(o history.Observation) tcell.Style {
	switch {
	case o.Status == history.StatusError:
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	case strings.HasPrefix(o.Message, "+"):
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case strings.HasPrefix(o.Message, "-"):
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
}

func changeStyle(change int64) tcell.Style {
	switch {
	case change > 0:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case change < 0:
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
}

func activityStyle(a history.Activity) tcell.Style {
	switch a {
	case history.ActivityHigh:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	case history.ActivityModerate:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func formatConfigInfo(cfg Settings) string {
	return fmt.Sprintf(" url=%s  mode=%s  cap=%d  interval=%s",
		cfg.URL, cfg.Mode, cfg.Cap, formatDuration(cfg.Interval))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
