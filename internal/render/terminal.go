package render

import (
	"regexp"
	"strings"

	"assistant-workers/internal/annotate"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/message"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorSuccess = lipgloss.Color("#10B981")
	colorMuted   = lipgloss.Color("#6B7280")
	colorLink    = lipgloss.Color("#06B6D4")
)

type terminalStyles struct {
	number lipgloss.Style
	title  lipgloss.Style
	price  lipgloss.Style
	tag    lipgloss.Style
	link   lipgloss.Style
	strong lipgloss.Style
	card   lipgloss.Style
}

func newTerminalStyles(r *lipgloss.Renderer) terminalStyles {
	return terminalStyles{
		number: r.NewStyle().Foreground(colorMuted),
		title:  r.NewStyle().Foreground(colorPrimary).Bold(true),
		price:  r.NewStyle().Foreground(colorSuccess),
		tag:    r.NewStyle().Foreground(colorMuted),
		link:   r.NewStyle().Foreground(colorLink).Underline(true),
		strong: r.NewStyle().Bold(true),
		card: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1),
	}
}

// TerminalRenderer draws a result for a terminal with lipgloss styles.
type TerminalRenderer struct {
	opts    Options
	priced  *regexp.Regexp
	printer *message.Printer
	styles  terminalStyles
}

// NewTerminalRenderer uses r for color detection; nil means the default
// renderer bound to stdout.
func NewTerminalRenderer(opts Options, r *lipgloss.Renderer) *TerminalRenderer {
	opts = opts.withDefaults()
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &TerminalRenderer{
		opts:    opts,
		priced:  pricePattern(opts.CurrencySymbol),
		printer: message.NewPrinter(opts.Locale),
		styles:  newTerminalStyles(r),
	}
}

// Render lays out res for a terminal.
func (t *TerminalRenderer) Render(res *annotate.Result) string {
	if res == nil {
		return ""
	}
	if res.Mode == annotate.ModeStructured && len(res.Recommendations) > 0 {
		return t.structured(res)
	}
	return t.plain(res)
}

func (t *TerminalRenderer) structured(res *annotate.Result) string {
	l := planStructured(res, t.priced)

	var blocks []string
	if len(l.intro) > 0 {
		blocks = append(blocks, strings.Join(l.intro, "\n\n"))
	}

	for i, rec := range l.cards {
		lines := []string{t.styles.number.Render(cardNumber(i)) + " " + t.styles.title.Render(rec.Title)}
		if rec.HasPrice() {
			lines = append(lines, t.styles.price.Render(t.opts.CurrencySymbol+formatPrice(t.printer, rec.Price)))
		}
		if tags := activityTags(rec); len(tags) > 0 {
			rendered := make([]string, len(tags))
			for j, tag := range tags {
				rendered[j] = t.styles.tag.Render("✔ " + tag)
			}
			lines = append(lines, strings.Join(rendered, "  "))
		}
		if rec.MatchedEntity != nil {
			lines = append(lines, t.styles.link.Render(t.opts.ProductPath+rec.MatchedEntity.ID))
		}
		blocks = append(blocks, t.styles.card.Render(strings.Join(lines, "\n")))
	}

	for _, seg := range l.trailing {
		blocks = append(blocks, t.link(seg))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (t *TerminalRenderer) plain(res *annotate.Result) string {
	var b strings.Builder
	for _, seg := range res.Segments {
		switch seg.Kind {
		case annotate.KindText:
			b.WriteString(seg.Content)
		case annotate.KindEmphasis:
			b.WriteString(t.styles.strong.Render(seg.Content))
		case annotate.KindLink:
			b.WriteString(t.link(seg))
		}
	}
	return b.String()
}

func (t *TerminalRenderer) link(seg annotate.Segment) string {
	if seg.URL == nil || *seg.URL == "" {
		return t.styles.link.Render(seg.Content)
	}
	return t.styles.link.Render(seg.Content) + " (" + *seg.URL + ")"
}
