package annotate

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSegmenter_Segment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Segment
	}{
		{
			name:  "emphasis between text",
			input: "I'd suggest the **Trail Runner Jacket** (₹2499) for your trip.",
			expected: []Segment{
				{Kind: KindText, Content: "I'd suggest the ", Start: 0, End: 16},
				{Kind: KindEmphasis, Content: "Trail Runner Jacket", Start: 16, End: 39},
				{Kind: KindText, Content: " (₹2499) for your trip.", Start: 39, End: 64},
			},
		},
		{
			name:  "link with trailing text",
			input: "See [Trail Jacket](https://shop.test/p1) now",
			expected: []Segment{
				{Kind: KindText, Content: "See ", Start: 0, End: 4},
				{Kind: KindLink, Content: "Trail Jacket", URL: strPtr("https://shop.test/p1"), Start: 4, End: 40},
				{Kind: KindText, Content: " now", Start: 40, End: 44},
			},
		},
		{
			name:  "adjacent matches produce no empty text",
			input: "**one****two**",
			expected: []Segment{
				{Kind: KindEmphasis, Content: "one", Start: 0, End: 7},
				{Kind: KindEmphasis, Content: "two", Start: 7, End: 14},
			},
		},
		{
			name:  "unterminated emphasis stays text",
			input: "this is **not closed",
			expected: []Segment{
				{Kind: KindText, Content: "this is **not closed", Start: 0, End: 20},
			},
		},
		{
			name:  "empty input",
			input: "",
			expected: []Segment{
				{Kind: KindText, Content: "", Start: 0, End: 0},
			},
		},
		{
			name:  "link nested in emphasis keeps the outer match",
			input: "**see [x](u)** ok",
			expected: []Segment{
				{Kind: KindEmphasis, Content: "see [x](u)", Start: 0, End: 14},
				{Kind: KindText, Content: " ok", Start: 14, End: 17},
			},
		},
		{
			name:  "whitespace gap kept verbatim",
			input: "**a**\n\n[b](c)",
			expected: []Segment{
				{Kind: KindEmphasis, Content: "a", Start: 0, End: 5},
				{Kind: KindText, Content: "\n\n", Start: 5, End: 7},
				{Kind: KindLink, Content: "b", URL: strPtr("c"), Start: 7, End: 13},
			},
		},
	}

	s := NewSegmenter(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.Segment(tt.input))
		})
	}
}

func TestSegmenter_CoverageAndOrdering(t *testing.T) {
	inputs := []string{
		"plain text only",
		"**Bold** start and [link](http://x) end",
		"mixed **a** [b](c) **d**\n\ntrailing",
		"broken [label](no close and **half",
		"unicode **Čokoláda Bar** costs ₹12 [más](https://x.test/ñ)",
		"** ** [](x) []() **",
	}

	s := NewSegmenter(DefaultOptions())
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			segments := s.Segment(input)
			require.NotEmpty(t, segments)

			pos := 0
			var visible strings.Builder
			for _, seg := range segments {
				assert.Equal(t, pos, seg.Start, "segments must be contiguous")
				assert.GreaterOrEqual(t, seg.End, seg.Start)

				raw := input[seg.Start:seg.End]
				switch seg.Kind {
				case KindText:
					assert.Equal(t, raw, seg.Content)
					assert.Nil(t, seg.URL)
				case KindEmphasis:
					assert.Equal(t, "**"+seg.Content+"**", raw)
				case KindLink:
					require.NotNil(t, seg.URL)
					assert.Equal(t, "["+seg.Content+"]("+*seg.URL+")", raw)
				}
				visible.WriteString(seg.Content)
				pos = seg.End
			}
			assert.Equal(t, len(input), pos, "segments must cover the whole input")
			assert.LessOrEqual(t, visible.Len(), len(input))
		})
	}
}

func TestSegmenter_SegmentValue(t *testing.T) {
	s := NewSegmenter(DefaultOptions())

	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "nil", input: nil, expected: ""},
		{name: "int", input: 42, expected: "42"},
		{name: "zero", input: 0, expected: ""},
		{name: "zero float", input: 0.0, expected: ""},
		{name: "NaN", input: math.NaN(), expected: ""},
		{name: "false", input: false, expected: ""},
		{name: "true", input: true, expected: "true"},
		{name: "bytes", input: []byte("**raw**"), expected: "**raw**"},
		{name: "map", input: map[string]int{"a": 1}, expected: "map[a:1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := s.SegmentValue(tt.input)
			require.Len(t, segments, 1)
			assert.Equal(t, KindText, segments[0].Kind)
			assert.Equal(t, tt.expected, segments[0].Content)
		})
	}

	t.Run("string goes through the segmenter", func(t *testing.T) {
		segments := s.SegmentValue("hi **there**")
		require.Len(t, segments, 2)
		assert.Equal(t, KindEmphasis, segments[1].Kind)
	})
}
