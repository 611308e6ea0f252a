package annotate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ExtractPass records which scan produced a recommendation.
type ExtractPass string

const (
	PassInline    ExtractPass = "inline"
	PassProximity ExtractPass = "proximity"
)

var (
	spanRegex       = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
	linkMarkupRegex = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// Candidate is a (title, price) pair found in a reply before catalog resolution.
type Candidate struct {
	Title string
	Price float64
	Pass  ExtractPass
}

// Extractor finds recommended products in assistant text. It is catalog
// independent; the caller supplies a predicate telling it whether a title is
// known to the catalog.
type Extractor struct {
	opts        Options
	inlineRegex *regexp.Regexp
	priceRegex  *regexp.Regexp
}

// NewExtractor returns an extractor for the options' currency and thresholds.
func NewExtractor(opts Options) *Extractor {
	opts = opts.withDefaults()
	sym := regexp.QuoteMeta(opts.CurrencySymbol)
	return &Extractor{
		opts:        opts,
		inlineRegex: regexp.MustCompile(`(?:\*\*)?([^*\n]+?)(?:\*\*)?\s*\(` + sym + `([\d.]+)\)`),
		priceRegex:  regexp.MustCompile(sym + `([\d.]+)`),
	}
}

// Extract runs the inline pass, then the proximity pass, and returns their
// union with titles unique under case-insensitive trimmed comparison. A nil
// known predicate means there is no catalog to consult.
func (e *Extractor) Extract(text string, known func(title string) bool) []Candidate {
	seen := make(map[string]struct{})
	out := e.inlinePass(text, known, seen, nil)
	return e.proximityPass(text, seen, out)
}

// inlinePass handles "Title (₹price)" and "**Title** (₹price)".
func (e *Extractor) inlinePass(text string, known func(string) bool, seen map[string]struct{}, out []Candidate) []Candidate {
	for _, m := range e.inlineRegex.FindAllStringSubmatch(text, -1) {
		title := cleanTitle(m[1])
		if title == "" {
			continue
		}
		if !(known != nil && known(title)) && !e.longEnough(title) {
			continue
		}
		if !markSeen(seen, title) {
			continue
		}
		out = append(out, Candidate{Title: title, Price: parsePrice(m[2]), Pass: PassInline})
	}
	return out
}

// proximityPass pairs each emphasis span with the first price that starts at or
// after the span's end and within ProximityWindow code points of it.
func (e *Extractor) proximityPass(text string, seen map[string]struct{}, out []Candidate) []Candidate {
	prices := e.priceRegex.FindAllStringSubmatchIndex(text, -1)
	if len(prices) == 0 {
		return out
	}

	for _, span := range spanRegex.FindAllStringSubmatchIndex(text, -1) {
		title := cleanTitle(text[span[2]:span[3]])
		if !e.longEnough(title) {
			continue
		}
		if _, dup := seen[dedupeKey(title)]; dup {
			continue
		}

		// The window runs from the closing marker, so long titles keep the full range.
		end := span[1]
		for _, p := range prices {
			if p[0] < end {
				continue
			}
			if utf8.RuneCountInString(text[end:p[0]]) >= e.opts.ProximityWindow {
				break
			}
			markSeen(seen, title)
			out = append(out, Candidate{Title: title, Price: parsePrice(text[p[2]:p[3]]), Pass: PassProximity})
			break
		}
	}
	return out
}

func (e *Extractor) longEnough(title string) bool {
	return utf8.RuneCountInString(title) > e.opts.MinTitleLength
}

// cleanTitle trims a captured title and replaces link markup with its label.
func cleanTitle(raw string) string {
	return linkMarkupRegex.ReplaceAllString(strings.TrimSpace(raw), "$1")
}

func dedupeKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// markSeen reports false when the title was already recorded.
func markSeen(seen map[string]struct{}, title string) bool {
	key := dedupeKey(title)
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	return true
}

// parsePrice reads the longest leading decimal number of s, so "12.5.1" gives
// 12.5. A prefix without any digit yields NaN.
func parsePrice(s string) float64 {
	end := 0
	dot := false
	digits := false
	for end < len(s) {
		c := s[end]
		if c == '.' {
			if dot {
				break
			}
			dot = true
		} else if c >= '0' && c <= '9' {
			digits = true
		} else {
			break
		}
		end++
	}
	if !digits {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
