package annotate

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
)

// SegmentKind is the kind of a display segment.
type SegmentKind string

const (
	KindText     SegmentKind = "text"
	KindEmphasis SegmentKind = "emphasis"
	KindLink     SegmentKind = "link"
)

var (
	emphasisRegex = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	linkRegex     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// Segment is one run of a reply. Start and End are byte offsets into the
// source text (End exclusive); for emphasis and link segments they cover the
// markup delimiters too.
type Segment struct {
	Kind    SegmentKind `json:"kind"`
	Content string      `json:"content"`
	URL     *string     `json:"url"`
	Start   int         `json:"start"`
	End     int         `json:"end"`
}

// markupMatch is a recognised inline construct before gap filling.
type markupMatch struct {
	kind    SegmentKind
	start   int
	end     int
	content string
	url     string
}

// Segmenter splits reply text into text, emphasis and link segments.
type Segmenter struct {
	opts Options
}

func NewSegmenter(opts Options) *Segmenter {
	return &Segmenter{opts: opts.withDefaults()}
}

// Segment partitions text into text, emphasis and link segments in source
// order. It never fails; text without markup comes back as one text segment.
func (s *Segmenter) Segment(text string) []Segment {
	matches := collectMarkup(text)

	segments := make([]Segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m.start > last {
			segments = append(segments, textSegment(text, last, m.start))
		}
		seg := Segment{
			Kind:    m.kind,
			Content: m.content,
			Start:   m.start,
			End:     m.end,
		}
		if m.kind == KindLink {
			url := m.url
			seg.URL = &url
		}
		segments = append(segments, seg)
		last = m.end
	}
	if last < len(text) {
		segments = append(segments, textSegment(text, last, len(text)))
	}

	if len(segments) == 0 {
		return []Segment{textSegment(text, 0, len(text))}
	}
	return segments
}

// SegmentValue segments a value of unknown type. Anything that is not a string
// degrades to a single text segment holding its best-effort string form.
func (s *Segmenter) SegmentValue(v any) []Segment {
	if text, ok := v.(string); ok {
		return s.Segment(text)
	}
	str := Stringify(v)
	return []Segment{textSegment(str, 0, len(str))}
}

// Stringify converts a non-string message to text. Absent and zero-valued
// scalars (nil, false, 0, NaN) become the empty string; everything else goes
// through fmt.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if !t {
			return ""
		}
		return "true"
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.IsZero() {
			return ""
		}
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f == 0 || math.IsNaN(f) {
			return ""
		}
	}
	return fmt.Sprint(v)
}

func textSegment(text string, start, end int) Segment {
	return Segment{Kind: KindText, Content: text[start:end], Start: start, End: end}
}

// collectMarkup scans for both constructs independently, orders the hits by
// start offset and drops any hit that begins inside an already accepted one.
func collectMarkup(text string) []markupMatch {
	var all []markupMatch
	for _, loc := range emphasisRegex.FindAllStringSubmatchIndex(text, -1) {
		all = append(all, markupMatch{
			kind:    KindEmphasis,
			start:   loc[0],
			end:     loc[1],
			content: text[loc[2]:loc[3]],
		})
	}
	for _, loc := range linkRegex.FindAllStringSubmatchIndex(text, -1) {
		all = append(all, markupMatch{
			kind:    KindLink,
			start:   loc[0],
			end:     loc[1],
			content: text[loc[2]:loc[3]],
			url:     text[loc[4]:loc[5]],
		})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].start < all[j].start })

	accepted := all[:0]
	end := 0
	for _, m := range all {
		if m.start < end {
			continue
		}
		accepted = append(accepted, m)
		end = m.end
	}
	return accepted
}
