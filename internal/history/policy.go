package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultRotatingRecords = 500
	DefaultSeriesRecords   = 10000

	fullTimeLayout  = "2006-01-02 15:04:05"
	shortTimeLayout = "15:04"

	wireStatusCheck = "CHECK"
	wireStatusError = "ERROR"
	wireNoHolders   = "N/A"
)

// LogPolicy decides how observations are ordered, capped, annotated and
// encoded on disk.
type LogPolicy interface {
	Name() string
	Cap() int
	// RecordsErrors is false when failed samples leave no record.
	RecordsErrors() bool
	// Baseline returns the most recent successful value in h.
	Baseline(h []Observation) *int64
	// Annotate returns the message for a new successful value.
	Annotate(h []Observation, value int64) string
	// Insert adds o to h and enforces the cap, dropping the oldest records.
	Insert(h []Observation, o Observation) []Observation
	// Latest returns the most recent record.
	Latest(h []Observation) (Observation, bool)
	Precision() time.Duration
	Decode(data []byte) ([]Observation, error)
	Encode(h []Observation) ([]byte, error)
}

// RotatingAnnotated keeps records most-recent-first with delta messages and
// records failures too.
type RotatingAnnotated struct {
	Max      int
	Location *time.Location
}

// NewRotatingAnnotated returns the audit-trail policy. A non-positive max
// selects DefaultRotatingRecords.
func NewRotatingAnnotated(max int, loc *time.Location) *RotatingAnnotated {
	if max <= 0 {
		max = DefaultRotatingRecords
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RotatingAnnotated{Max: max, Location: loc}
}

func (p *RotatingAnnotated) Name() string { return "rotating" }
func (p *RotatingAnnotated) Cap() int { return p.Max }
func (p *RotatingAnnotated) RecordsErrors() bool { return true }
func (p *RotatingAnnotated) Precision() time.Duration { return time.Second }
func (p *RotatingAnnotated) location() *time.Location { return orUTC(p.Location) }
func (p *RotatingAnnotated) Annotate(h []Observation, value int64) string {
	return DiffMessage(p.Baseline(h), value)
}

func (p *RotatingAnnotated) Baseline(h []Observation) *int64 {
	for _, o := range h {
		if v, ok := o.Holders(); ok {
			return &v
		}
	}
	return nil
}

func (p *RotatingAnnotated) Insert(h []Observation, o Observation) []Observation {
	out := make([]Observation, 0, minInt(len(h)+1, p.Max))
	out = append(out, o)
	for _, existing := range h {
		if len(out) >= p.Max {
			break
		}
		out = append(out, existing)
	}
	return out
}

func (p *RotatingAnnotated) Latest(h []Observation) (Observation, bool) {
	if len(h) == 0 {
		return Observation{}, false
	}
	return h[0], true
}

type rotatingRecord struct {
	Status      string       `json:"status"`
	Holders     holdersField `json:"holders"`
	Timestamp   string       `json:"timestamp"`
	TimeDisplay string       `json:"time_display"`
	Message     string       `json:"message"`
}

// holdersField is an integer or the literal "N/A".
type holdersField struct {
	value int64
	set   bool
}

func (h holdersField) MarshalJSON() ([]byte, error) {
	if !h.set {
		return json.Marshal(wireNoHolders)
	}
	return json.Marshal(h.value)
}

func (h *holdersField) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '"' || string(trimmed) == "null" {
		*h = holdersField{}
		return nil
	}
	var v int64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		// Non-integer numbers are treated like "N/A".
		*h = holdersField{}
		return nil
	}
	*h = holdersField{value: v, set: true}
	return nil
}

func (p *RotatingAnnotated) Encode(h []Observation) ([]byte, error) {
	loc := p.location()
	records := make([]rotatingRecord, 0, len(h))
	for _, o := range h {
		rec := rotatingRecord{
			Status:      wireStatusError,
			Timestamp:   o.Timestamp.In(loc).Format(fullTimeLayout),
			TimeDisplay: o.Timestamp.In(loc).Format(shortTimeLayout),
			Message:     o.Message,
		}
		if v, ok := o.Holders(); ok {
			rec.Status = wireStatusCheck
			rec.Holders = holdersField{value: v, set: true}
		}
		records = append(records, rec)
	}
	return json.MarshalIndent(records, "", "  ")
}

func (p *RotatingAnnotated) Decode(data []byte) ([]Observation, error) {
	var records []rotatingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	loc := p.location()
	out := make([]Observation, 0, len(records))
	for _, rec := range records {
		o := Observation{Status: StatusError, Message: rec.Message}
		if ts, err := time.ParseInLocation(fullTimeLayout, rec.Timestamp, loc); err == nil {
			o.Timestamp = ts
		}
		if strings.EqualFold(rec.Status, wireStatusCheck) && rec.Holders.set {
			o.Status = StatusSuccess
			o.Value = rec.Holders.value
		}
		if o.Message == "" {
			if o.Status == StatusSuccess {
				o.Message = MessageSync
			} else {
				o.Message = MessageSyncFailed
			}
		}
		out = append(out, o)
	}
	return out, nil
}

// AppendOnlySeries keeps a chronological numeric series. Failures are not
// recorded and records carry no annotation.
type AppendOnlySeries struct {
	Max      int
	Location *time.Location
}

// NewAppendOnlySeries returns the metric-series policy. A non-positive max
// selects DefaultSeriesRecords.
func NewAppendOnlySeries(max int, loc *time.Location) *AppendOnlySeries {
	if max <= 0 {
		max = DefaultSeriesRecords
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AppendOnlySeries{Max: max, Location: loc}
}

func (p *AppendOnlySeries) Name() string { return "series" }
func (p *AppendOnlySeries) Cap() int { return p.Max }
func (p *AppendOnlySeries) RecordsErrors() bool { return false }
func (p *AppendOnlySeries) Precision() time.Duration { return time.Millisecond }
func (p *AppendOnlySeries) Annotate([]Observation, int64) string { return MessageSample }

func (p *AppendOnlySeries) Baseline(h []Observation) *int64 {
	for i := len(h) - 1; i >= 0; i-- {
		if v, ok := h[i].Holders(); ok {
			return &v
		}
	}
	return nil
}

func (p *AppendOnlySeries) Insert(h []Observation, o Observation) []Observation {
	out := append(append(make([]Observation, 0, len(h)+1), h...), o)
	if len(out) > p.Max {
		out = out[len(out)-p.Max:]
	}
	return out
}

func (p *AppendOnlySeries) Latest(h []Observation) (Observation, bool) {
	if len(h) == 0 {
		return Observation{}, false
	}
	return h[len(h)-1], true
}

type seriesRecord struct {
	Timestamp int64  `json:"timestamp"`
	Holders   int64  `json:"holders"`
	DateStr   string `json:"date_str"`
}

func (p *AppendOnlySeries) Encode(h []Observation) ([]byte, error) {
	loc := orUTC(p.Location)
	records := make([]seriesRecord, 0, len(h))
	for _, o := range h {
		v, ok := o.Holders()
		if !ok {
			return nil, fmt.Errorf("series record at %s has no value", o.Timestamp.Format(time.RFC3339))
		}
		records = append(records, seriesRecord{
			Timestamp: o.Timestamp.UnixMilli(),
			Holders:   v,
			DateStr:   o.Timestamp.In(loc).Format(fullTimeLayout),
		})
	}
	return json.MarshalIndent(records, "", "  ")
}

func (p *AppendOnlySeries) Decode(data []byte) ([]Observation, error) {
	var records []seriesRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	loc := orUTC(p.Location)
	out := make([]Observation, 0, len(records))
	for _, rec := range records {
		out = append(out, Observation{
			Status:    StatusSuccess,
			Value:     rec.Holders,
			Timestamp: time.UnixMilli(rec.Timestamp).In(loc),
			Message:   MessageSample,
		})
	}
	return out, nil
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var (
	_ LogPolicy = (*RotatingAnnotated)(nil)
	_ LogPolicy = (*AppendOnlySeries)(nil)
)
