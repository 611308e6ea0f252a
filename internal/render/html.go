package render

import (
	"html"
	"regexp"
	"strings"

	"assistant-workers/internal/annotate"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/message"
)

var classPattern = regexp.MustCompile(`^[a-z][a-z-]*$`)

// HTMLRenderer writes a result as an HTML fragment. Output is passed
// through a bluemonday policy, so links with unsafe schemes lose their href.
type HTMLRenderer struct {
	opts    Options
	priced  *regexp.Regexp
	printer *message.Printer
	policy  *bluemonday.Policy
}

// NewHTMLRenderer returns a renderer whose output passes through a bluemonday policy.
func NewHTMLRenderer(opts Options) *HTMLRenderer {
	opts = opts.withDefaults()
	return &HTMLRenderer{
		opts:    opts,
		priced:  pricePattern(opts.CurrencySymbol),
		printer: message.NewPrinter(opts.Locale),
		policy:  newPolicy(),
	}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "p", "br", "strong", "h4", "span")
	p.AllowAttrs("class").Matching(classPattern).Globally()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

// HTML renders res with the default options.
func HTML(res *annotate.Result) string {
	return NewHTMLRenderer(Options{}).Render(res)
}

// Render lays out res as cards in structured mode or paragraphs in plain mode.
func (r *HTMLRenderer) Render(res *annotate.Result) string {
	var b strings.Builder
	b.WriteString(`<div class="formatted-message">`)
	if res != nil {
		if res.Mode == annotate.ModeStructured && len(res.Recommendations) > 0 {
			r.structured(&b, res)
		} else {
			r.plain(&b, res)
		}
	}
	b.WriteString(`</div>`)
	return r.policy.Sanitize(b.String())
}

func (r *HTMLRenderer) structured(b *strings.Builder, res *annotate.Result) {
	l := planStructured(res, r.priced)

	if len(l.intro) > 0 {
		b.WriteString(`<div class="message-intro">`)
		for _, p := range l.intro {
			b.WriteString("<p>" + html.EscapeString(p) + "</p>")
		}
		b.WriteString(`</div>`)
	}

	b.WriteString(`<div class="recommendations-grid">`)
	for i, rec := range l.cards {
		b.WriteString(`<div class="recommendation-card"><div class="rec-header">`)
		b.WriteString(`<span class="rec-number">` + cardNumber(i) + `</span>`)
		b.WriteString(`<h4 class="rec-title">` + html.EscapeString(rec.Title) + `</h4></div>`)
		if rec.HasPrice() {
			b.WriteString(`<div class="rec-price">` +
				html.EscapeString(r.opts.CurrencySymbol+formatPrice(r.printer, rec.Price)) + `</div>`)
		}
		if rec.MatchedEntity != nil {
			if tags := activityTags(rec); len(tags) > 0 {
				b.WriteString(`<div class="rec-features">`)
				for _, t := range tags {
					b.WriteString(`<span class="rec-tag">✔ ` + html.EscapeString(t) + `</span>`)
				}
				b.WriteString(`</div>`)
			}
			href := r.opts.ProductPath + rec.MatchedEntity.ID
			b.WriteString(`<a href="` + html.EscapeString(href) + `" class="rec-link">View Product →</a>`)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)

	for _, seg := range l.trailing {
		writeLink(b, seg)
	}
}

func (r *HTMLRenderer) plain(b *strings.Builder, res *annotate.Result) {
	for _, seg := range res.Segments {
		switch seg.Kind {
		case annotate.KindText:
			b.WriteString(`<div>`)
			for _, p := range paragraphs(seg.Content) {
				if p == "" {
					b.WriteString(`<p><br></p>`)
					continue
				}
				b.WriteString("<p>" + html.EscapeString(p) + "</p>")
			}
			b.WriteString(`</div>`)
		case annotate.KindEmphasis:
			b.WriteString("<strong>" + html.EscapeString(seg.Content) + "</strong>")
		case annotate.KindLink:
			writeLink(b, seg)
		}
	}
}

func writeLink(b *strings.Builder, seg annotate.Segment) {
	href := ""
	if seg.URL != nil {
		href = *seg.URL
	}
	b.WriteString(`<a href="` + html.EscapeString(href) + `" target="_blank" class="message-link">` +
		html.EscapeString(seg.Content) + `</a>`)
}
