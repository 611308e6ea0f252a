// Package render presents an annotated reply. Structured mode shows the intro
// text, one card per recommendation and any leftover links; plain mode renders
// the segments in order.
package render

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"assistant-workers/internal/annotate"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const maxActivityTags = 3

// Options controls price formatting in the renderers.
type Options struct {
	CurrencySymbol string
	// ProductPath prefixes a matched entity id to build its link.
	ProductPath string
	Locale      language.Tag
}

func DefaultOptions() Options {
	return Options{
		CurrencySymbol: annotate.DefaultCurrencySymbol,
		ProductPath:    "/products/",
		Locale:         language.English,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CurrencySymbol == "" {
		o.CurrencySymbol = d.CurrencySymbol
	}
	if o.ProductPath == "" {
		o.ProductPath = d.ProductPath
	}
	if o.Locale == language.Und {
		o.Locale = d.Locale
	}
	return o
}

// layout is the part of a result both renderers agree on.
type layout struct {
	intro    []string
	cards    []annotate.Recommendation
	trailing []annotate.Segment
}

func planStructured(res *annotate.Result, priced *regexp.Regexp) layout {
	var l layout
	for _, seg := range res.Segments {
		switch {
		case seg.Kind == annotate.KindText && !priced.MatchString(seg.Content):
			if p := strings.TrimSpace(seg.Content); p != "" {
				l.intro = append(l.intro, p)
			}
		case seg.Kind == annotate.KindLink:
			l.trailing = append(l.trailing, seg)
		}
	}
	l.cards = res.Recommendations
	return l
}

func pricePattern(symbol string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(symbol) + `[\d.]+`)
}

// paragraphs splits a text segment on blank lines.
func paragraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// formatPrice groups digits for the locale and keeps at most two decimals.
func formatPrice(p *message.Printer, v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return p.Sprintf("%d", int64(v))
	}
	s := p.Sprintf("%.2f", v)
	return strings.TrimRight(strings.TrimRight(s, "0"), ".,")
}

func cardNumber(i int) string {
	return strconv.Itoa(i+1) + "."
}

func activityTags(rec annotate.Recommendation) []string {
	if rec.MatchedEntity == nil {
		return nil
	}
	acts := rec.MatchedEntity.Activities
	if len(acts) > maxActivityTags {
		acts = acts[:maxActivityTags]
	}
	return acts
}
