package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RelativeFrom returns a humanized offset of t from now, e.g. "3 hours from now".
func RelativeFrom(t, now time.Time) string {
	if t.Equal(now) {
		return "now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// RelativeStyled colors RelativeFrom by urgency.
func RelativeStyled(t *time.Time, now time.Time) string {
	if t == nil {
		return StyleDim.Render("-")
	}
	text := RelativeFrom(*t, now)
	switch d := t.Sub(now); {
	case d <= 0:
		return StyleRed.Render(text)
	case d <= time.Hour:
		return StyleYellow.Render(text)
	default:
		return StyleFg.Render(text)
	}
}

// Clock renders an instant as a short UTC timestamp.
func Clock(t *time.Time) string {
	if t == nil {
		return StyleDim.Render("-")
	}
	return t.UTC().Format("Jan 02 15:04")
}

// Percent renders a probability as a percentage, "-" when absent.
func Percent(p *float64) string {
	if p == nil {
		return StyleDim.Render("-")
	}
	return ChanceStyle(*p).Render(fmt.Sprintf("%.1f%%", *p*100))
}

// Truncate shortens s to n visible runes with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

// IDs joins ids for display.
func IDs(ids []int64) string {
	if len(ids) == 0 {
		return StyleDim.Render("none")
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = humanize.Comma(id)
	}
	return strings.Join(parts, ", ")
}
