package extract

import (
	"errors"
	"iter"
	"strconv"
	"strings"

	"github.com/doridoridoriand/holdwatch/internal/dom"
)

const (
	// DefaultThreshold is the plausibility floor; values must be strictly greater.
	DefaultThreshold int64 = 100
	// DefaultKeyword confirms a candidate when found in its context text.
	DefaultKeyword = "Holder"
)

// ErrNoCandidateFound is returned when no candidate passes the plausibility filter.
var ErrNoCandidateFound = errors.New("no plausible holder count found")

// Selection is the chosen value and how it was chosen.
type Selection struct {
	Value     int64
	Confirmed bool
	// Index is the position of the chosen candidate in scan order.
	Index int
}

// Selector picks one holder count out of scanned candidates.
type Selector struct {
	Threshold int64
	Keyword   string
}

// NewSelector returns a selector with the default threshold and keyword.
func NewSelector() *Selector {
	return &Selector{Threshold: DefaultThreshold, Keyword: DefaultKeyword}
}

// Select returns the first confirmed plausible candidate, or the first
// plausible one when none confirms.
func (s *Selector) Select(candidates iter.Seq[dom.Candidate]) (Selection, error) {
	var (
		best  Selection
		found bool
		index = -1
	)
	for c := range candidates {
		index++
		v, ok := ParseCount(c.Text)
		if !ok || v <= s.Threshold {
			continue
		}
		if !found {
			best = Selection{Value: v, Index: index}
			found = true
		}
		if confirmed, ok := s.confirm(c); ok && confirmed {
			return Selection{Value: v, Confirmed: true, Index: index}, nil
		}
	}
	if !found {
		return Selection{}, ErrNoCandidateFound
	}
	return best, nil
}

// confirm reports whether the candidate's context carries the keyword. The
// second result is false when there was no context to inspect.
func (s *Selector) confirm(c dom.Candidate) (bool, bool) {
	if !c.HasContext {
		return false, false
	}
	keyword := s.Keyword
	if keyword == "" {
		keyword = DefaultKeyword
	}
	return strings.Contains(c.Context, keyword), true
}

// ParseCount strips whitespace and thousands separators and parses what is
// left as a non-negative integer. Anything that is not all digits is rejected.
func ParseCount(raw string) (int64, bool) {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if clean == "" {
		return 0, false
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
