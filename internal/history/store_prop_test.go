package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genHistory(maxLen int, withErrors bool) gopter.Gen {
	return gopter.Gen(func(params *gopter.GenParameters) *gopter.GenResult {
		n := params.Rng.Intn(maxLen + 1)
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		h := make([]Observation, 0, n)
		for i := 0; i < n; i++ {
			ts := base.Add(time.Duration(i) * time.Minute)
			if withErrors && params.Rng.Intn(4) == 0 {
				h = append(h, Observation{Status: StatusError, Timestamp: ts, Message: fmt.Sprintf("err %d", i)})
				continue
			}
			h = append(h, Observation{Status: StatusSuccess, Value: int64(params.Rng.Intn(5000)), Timestamp: ts, Message: MessageSync})
		}
		return gopter.NewGenResult(h, gopter.NoShrinker)
	})
}

func sameObservation(a, b Observation) bool {
	return a.Status == b.Status && a.Value == b.Value && a.Message == b.Message && a.Timestamp.Equal(b.Timestamp)
}

// **Feature: holdwatch, Property 1: retention cap and contiguity**
func TestPropertyInsertRespectsCap(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	props := gopter.NewProperties(params)

	props.Property("rotating insert keeps a prefix of the old history", prop.ForAll(
		func(h []Observation, max int) bool {
			policy := NewRotatingAnnotated(max, time.UTC)
			o := Observation{Status: StatusSuccess, Value: 1, Message: MessageSync}
			out := policy.Insert(h, o)
			if len(out) > max || len(out) != minInt(len(h)+1, max) {
				return false
			}
			if !sameObservation(out[0], o) {
				return false
			}
			for i := 1; i < len(out); i++ {
				if !sameObservation(out[i], h[i-1]) {
					return false
				}
			}
			return true
		},
		genHistory(30, true),
		gen.IntRange(1, 20),
	))

	props.Property("series insert keeps a suffix of the old history", prop.ForAll(
		func(h []Observation, max int) bool {
			policy := NewAppendOnlySeries(max, time.UTC)
			o := Observation{Status: StatusSuccess, Value: 1, Message: MessageSample}
			out := policy.Insert(h, o)
			if len(out) > max || len(out) != minInt(len(h)+1, max) {
				return false
			}
			if !sameObservation(out[len(out)-1], o) {
				return false
			}
			offset := len(h) + 1 - len(out)
			for i := 0; i < len(out)-1; i++ {
				if !sameObservation(out[i], h[offset+i]) {
					return false
				}
			}
			return true
		},
		genHistory(30, false),
		gen.IntRange(1, 20),
	))

	props.TestingRun(t, gopter.ConsoleReporter(false))
}

// **Feature: holdwatch, Property 2: diff message is a pure function**
func TestPropertyDiffMessage(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	props := gopter.NewProperties(params)

	props.Property("message depends only on baseline and value", prop.ForAll(
		func(b, v int64) bool {
			got := DiffMessage(&b, v)
			if got != DiffMessage(&b, v) {
				return false
			}
			switch {
			case v > b:
				return got == fmt.Sprintf("+%d New", v-b)
			case v < b:
				return got == fmt.Sprintf("%d Left", v-b)
			default:
				return got == MessageSync
			}
		},
		gen.Int64Range(0, 100000),
		gen.Int64Range(0, 100000),
	))

	props.TestingRun(t, gopter.ConsoleReporter(false))
}

// **Feature: holdwatch, Property 3: encode/decode round trip**
func TestPropertyRoundTrip(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	props := gopter.NewProperties(params)
	loc := time.FixedZone("UTC+8", 8*3600)

	props.Property("rotating history survives a write and read", prop.ForAll(
		func(h []Observation) bool {
			policy := NewRotatingAnnotated(0, loc)
			data, err := policy.Encode(h)
			if err != nil {
				return false
			}
			back, err := policy.Decode(data)
			if err != nil || len(back) != len(h) {
				return false
			}
			for i := range h {
				if !sameObservation(h[i], back[i]) {
					return false
				}
			}
			return true
		},
		genHistory(25, true),
	))

	props.Property("series history survives a write and read", prop.ForAll(
		func(h []Observation) bool {
			policy := NewAppendOnlySeries(0, loc)
			for i := range h {
				h[i].Message = MessageSample
				h[i].Timestamp = h[i].Timestamp.Add(time.Duration(i) * time.Millisecond)
			}
			data, err := policy.Encode(h)
			if err != nil {
				return false
			}
			back, err := policy.Decode(data)
			if err != nil || len(back) != len(h) {
				return false
			}
			for i := range h {
				if !sameObservation(h[i], back[i]) {
					return false
				}
			}
			return true
		},
		genHistory(25, false),
	))

	props.TestingRun(t, gopter.ConsoleReporter(false))
}

// **Feature: holdwatch, Property 4: tolerant load**
func TestPropertyTolerantLoad(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	props := gopter.NewProperties(params)

	props.Property("arbitrary file content never blocks a new record", prop.ForAll(
		func(content string, value int64) bool {
			dir, err := os.MkdirTemp("", "holdwatch-prop-")
			if err != nil {
				return false
			}
			defer os.RemoveAll(dir)
			path := filepath.Join(dir, "h.json")
			if err := os.WriteFile(path, []byte("{"+content), 0o644); err != nil {
				return false
			}
			store := NewStore(path, NewRotatingAnnotated(0, time.UTC), nil)
			if _, err := store.RecordSuccess(value, time.Now()); err != nil {
				return false
			}
			h, err := store.Load()
			return err == nil && len(h) == 1 && h[0].Value == value
		},
		gen.AlphaString(),
		gen.Int64Range(101, 1_000_000),
	))

	props.TestingRun(t, gopter.ConsoleReporter(false))
}
