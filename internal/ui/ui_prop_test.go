package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/doridoridoriand/holdwatch/internal/history"
)

// **Feature: holdwatch, Property 8: dashboard bars fit their cell budget**
func TestPropertyBuildBarWidth(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	props := gopter.NewProperties(params)

	props.Property("bar length equals width and grows with value", prop.ForAll(
		func(a, b, c int64, width int) bool {
			lo, hi := a, a+b
			value := lo + c%(b+1)
			bar := buildBar(value, lo, hi, width)
			if len([]rune(bar)) != width {
				return false
			}
			filled := strings.Count(bar, "#")
			if filled < 1 || filled > width {
				return false
			}
			return strings.Count(buildBar(hi, lo, hi, width), "#") >= filled
		},
		gen.Int64Range(0, 100000),
		gen.Int64Range(0, 5000),
		gen.Int64Range(0, 5000),
		gen.IntRange(1, 80),
	))

	props.TestingRun(t, gopter.ConsoleReporter(false))
}

// **Feature: holdwatch, Property 9: recent view is newest first and bounded**
func TestPropertyRecentFirst(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	props := gopter.NewProperties(params)

	props.Property("recentFirst is sorted descending and capped", prop.ForAll(
		func(offsets []int, n int) bool {
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			h := make([]history.Observation, len(offsets))
			for i, off := range offsets {
				h[i] = history.Observation{Status: history.StatusSuccess, Value: int64(i), Timestamp: base.Add(time.Duration(off) * time.Second)}
			}
			got := recentFirst(h, n)
			if len(got) > n || len(got) != minInt(len(h), n) {
				return false
			}
			for i := 1; i < len(got); i++ {
				if got[i].Timestamp.After(got[i-1].Timestamp) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
		gen.IntRange(1, 30),
	))

	props.TestingRun(t, gopter.ConsoleReporter(false))
}
