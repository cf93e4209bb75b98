package history

import (
	"fmt"
	"time"
)

// Status is the outcome of one sampling attempt.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

const (
	// MessageSync is used when a success has no baseline or no change.
	MessageSync = "System Sync"
	// MessageSyncFailed is used for errors without a description.
	MessageSyncFailed = "Sync Failed"
	// MessageSample is the in-memory message of series records, which carry
	// no annotation on disk.
	MessageSample = "Sample"

	maxErrorMessageLen = 50
)

// Observation is one timestamped sampling result. Value is meaningful only
// when Status is StatusSuccess.
type Observation struct {
	Status    Status
	Value     int64
	Timestamp time.Time
	Message   string
}

// Holders returns the value and whether the observation carries one.
func (o Observation) Holders() (int64, bool) {
	if o.Status != StatusSuccess {
		return 0, false
	}
	return o.Value, true
}

// DiffMessage annotates value against the previous successful value.
func DiffMessage(baseline *int64, value int64) string {
	if baseline == nil {
		return MessageSync
	}
	delta := value - *baseline
	switch {
	case delta > 0:
		return fmt.Sprintf("+%d New", delta)
	case delta < 0:
		return fmt.Sprintf("%d Left", delta)
	default:
		return MessageSync
	}
}

// ErrorMessage truncates an error description to 50 characters.
func ErrorMessage(text string) string {
	if text == "" {
		return MessageSyncFailed
	}
	runes := []rune(text)
	if len(runes) > maxErrorMessageLen {
		return string(runes[:maxErrorMessageLen])
	}
	return text
}
