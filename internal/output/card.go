package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Aman-CERP/smre/internal/corpus"
)

// displayYear renders a year without the float suffix of dataframe exports.
func displayYear(m corpus.Moment) string {
	if y, ok := m.YearValue(); ok {
		return strconv.Itoa(y)
	}
	return m.Year
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}

type cardFields struct {
	title, matchup, context, highlight, tags string
}

func fieldsOf(m corpus.Moment) cardFields {
	return cardFields{
		title:     strings.TrimSpace(fmt.Sprintf("%s %s: %s (%s)", m.Tournament, displayYear(m), m.Event, m.Round)),
		matchup:   strings.TrimSpace(fmt.Sprintf("%s vs %s", m.Player1, m.Player2)),
		context:   fmt.Sprintf("Set %s, Game %s — %s", orUnknown(m.Set), orUnknown(m.Game), m.Point),
		highlight: m.Summary,
		tags:      m.Tags,
	}
}

// RenderCard returns the markdown card for m.
func RenderCard(m corpus.Moment) string {
	f := fieldsOf(m)
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n", f.title)
	fmt.Fprintf(&b, "**Match**: %s  \n", f.matchup)
	fmt.Fprintf(&b, "**Context**: %s  \n", f.context)
	fmt.Fprintf(&b, "**Highlight**: %s  \n", f.highlight)
	fmt.Fprintf(&b, "**Tags**: %s\n", f.tags)
	return b.String()
}

// CardStyle renders the card for a terminal with s.
func CardStyle(m corpus.Moment, s Styles) string {
	f := fieldsOf(m)
	lines := []string{
		s.Header.Render(f.title),
		s.Label.Render("Match:") + " " + f.matchup,
		s.Label.Render("Context:") + " " + f.context,
		s.Label.Render("Highlight:") + " " + f.highlight,
		s.Label.Render("Tags:") + " " + s.Dim.Render(f.tags),
	}
	return s.Panel.Render(strings.Join(lines, "\n"))
}
