package extract

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/doridoridoriand/holdwatch/internal/dom"
)

func cand(text, context string) dom.Candidate {
	return dom.Candidate{Text: text, Context: context, HasContext: true}
}

func TestSelectFirstPlausibleWithoutKeyword(t *testing.T) {
	sel, err := NewSelector().Select(slices.Values([]dom.Candidate{cand("200", "")}))
	require.NoError(t, err)
	assert.Equal(t, int64(200), sel.Value)
	assert.False(t, sel.Confirmed)
}

func TestSelectSkipsImplausibleEvenWhenLabelled(t *testing.T) {
	sel, err := NewSelector().Select(slices.Values([]dom.Candidate{
		cand("50", "Holders: 50"),
		cand("9999", "random text"),
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(9999), sel.Value)
	assert.False(t, sel.Confirmed)
	assert.Equal(t, 1, sel.Index)
}

func TestSelectBelowThresholdNeverReachesConfirmation(t *testing.T) {
	sel, err := NewSelector().Select(slices.Values([]dom.Candidate{
		cand("80", "Holders 80"),
		cand("500", "Other 500"),
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(500), sel.Value)
}

func TestSelectConfirmedBeatsEarlierPlausible(t *testing.T) {
	sel, err := NewSelector().Select(slices.Values([]dom.Candidate{
		cand("1,000,000,000", "Supply 1,000,000,000"),
		cand("3,345", "Holders 3,345"),
		cand("7777", "Holders again"),
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(3345), sel.Value)
	assert.True(t, sel.Confirmed)
	assert.Equal(t, 1, sel.Index)
}

func TestSelectMissingContextIsNotFatal(t *testing.T) {
	sel, err := NewSelector().Select(slices.Values([]dom.Candidate{
		{Text: "400"},
		cand("600", "Holders"),
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(600), sel.Value)
	assert.True(t, sel.Confirmed)
}

func TestSelectKeywordIsCaseSensitive(t *testing.T) {
	sel, err := NewSelector().Select(slices.Values([]dom.Candidate{
		cand("300", "holders"),
		cand("400", "HOLDERS"),
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(300), sel.Value)
	assert.False(t, sel.Confirmed)
}

func TestSelectThresholdIsStrict(t *testing.T) {
	_, err := NewSelector().Select(slices.Values([]dom.Candidate{cand("100", "Holders")}))
	assert.ErrorIs(t, err, ErrNoCandidateFound)

	sel, err := NewSelector().Select(slices.Values([]dom.Candidate{cand("101", "Holders")}))
	require.NoError(t, err)
	assert.Equal(t, int64(101), sel.Value)
}

func TestSelectNoCandidates(t *testing.T) {
	_, err := NewSelector().Select(slices.Values([]dom.Candidate{}))
	assert.ErrorIs(t, err, ErrNoCandidateFound)

	_, err = NewSelector().Select(slices.Values([]dom.Candidate{cand("n/a", ""), cand("12.5", "")}))
	assert.ErrorIs(t, err, ErrNoCandidateFound)
}

func TestSelectCustomThresholdAndKeyword(t *testing.T) {
	s := &Selector{Threshold: 10, Keyword: "Owners"}
	sel, err := s.Select(slices.Values([]dom.Candidate{cand("50", "Holders"), cand("60", "Owners")}))
	require.NoError(t, err)
	assert.Equal(t, int64(60), sel.Value)
	assert.True(t, sel.Confirmed)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"3,345", 3345, true},
		{"  42 ", 42, true},
		{"1,000,000", 1000000, true},
		{"0", 0, true},
		{"", 0, false},
		{"   ", 0, false},
		{",", 0, false},
		{"-5", 0, false},
		{"12.5", 0, false},
		{"1 000", 0, false},
		{"3.3K", 0, false},
		{"99999999999999999999999", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseCount(tt.raw)
		assert.Equal(t, tt.ok, ok, "ParseCount(%q)", tt.raw)
		assert.Equal(t, tt.want, got, "ParseCount(%q)", tt.raw)
	}
}

func TestSelectSplitNumberAndKeyword(t *testing.T) {
	root, err := html.Parse(strings.NewReader(
		`<section><p>Hold<b>ers</b></p><div class="font-semibold"><span>3,<!-- -->412</span></div></section>`))
	require.NoError(t, err)

	sel, err := NewSelector().Select(dom.NewScanner(dom.DefaultPattern()).Scan(root))
	require.NoError(t, err)
	assert.Equal(t, int64(3412), sel.Value)
	assert.True(t, sel.Confirmed)
}
