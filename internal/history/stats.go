package history

import (
	"sort"
	"time"
)

// Activity summarizes recent movement of the holder count.
type Activity string

const (
	ActivityHigh     Activity = "High"
	ActivityModerate Activity = "Moderate"
	ActivityStable   Activity = "Stable"
)

// Stats are derived from the successful observations of a history.
type Stats struct {
	Current     int64
	HasCurrent  bool
	ATH         int64
	Change1h    int64
	Change4h    int64
	Change24h   int64
	Change7d    int64
	Activity    Activity
	Samples     int
	Errors      int
	LastSuccess time.Time
	LastError   time.Time
}

// Windows lists the change windows in display order.
var Windows = []struct {
	Label    string
	Duration time.Duration
}{
	{"1h", time.Hour},
	{"4h", 4 * time.Hour},
	{"24h", 24 * time.Hour},
	{"7d", 7 * 24 * time.Hour},
}

// Change returns the change for a window label.
func (s Stats) Change(label string) int64 {
	switch label {
	case "1h":
		return s.Change1h
	case "4h":
		return s.Change4h
	case "24h":
		return s.Change24h
	case "7d":
		return s.Change7d
	}
	return 0
}

// ComputeStats works on either history ordering.
func ComputeStats(h []Observation, now time.Time) Stats {
	points := make([]Observation, 0, len(h))
	var st Stats
	for _, o := range h {
		if o.Status != StatusSuccess {
			st.Errors++
			if o.Timestamp.After(st.LastError) {
				st.LastError = o.Timestamp
			}
			continue
		}
		points = append(points, o)
	}
	st.Samples = len(points)
	st.Activity = ActivityStable
	if len(points) == 0 {
		return st
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	latest := points[len(points)-1]
	st.Current = latest.Value
	st.HasCurrent = true
	st.LastSuccess = latest.Timestamp
	for _, p := range points {
		if p.Value > st.ATH {
			st.ATH = p.Value
		}
	}

	change := func(window time.Duration) int64 {
		cutoff := now.Add(-window)
		idx := sort.Search(len(points), func(i int) bool {
			return points[i].Timestamp.After(cutoff)
		})
		if idx == 0 {
			return 0
		}
		return latest.Value - points[idx-1].Value
	}
	st.Change1h = change(time.Hour)
	st.Change4h = change(4 * time.Hour)
	st.Change24h = change(24 * time.Hour)
	st.Change7d = change(7 * 24 * time.Hour)

	switch {
	case st.Change1h != 0:
		st.Activity = ActivityHigh
	case st.Change4h != 0:
		st.Activity = ActivityModerate
	}
	return st
}
