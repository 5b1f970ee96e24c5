// Package output formats CLI output: status lines, ranked search results,
// moment cards and JSON. Color is used only when writing to a terminal
// and NO_COLOR is unset.
package output

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/Aman-CERP/smre/internal/search"
)

// Format names accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles Styles
	color  bool
}

// New creates a Writer that styles output when out is a terminal.
func New(out io.Writer) *Writer {
	color := IsTTY(out) && !DetectNoColor()
	return newWriter(out, color)
}

// NewPlain creates a Writer that never styles output.
func NewPlain(out io.Writer) *Writer {
	return newWriter(out, false)
}

func newWriter(out io.Writer, color bool) *Writer {
	styles := NoColorStyles()
	if color {
		styles = DefaultStyles()
	}
	return &Writer{out: out, styles: styles, color: color}
}

// Colored reports whether the writer styles its output.
func (w *Writer) Colored() bool { return w.color }

// Status prints a message with an icon. Write errors are ignored for
// console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress prints an in-place progress bar.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := int(float64(current) / float64(total) * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// ResultLine renders one ranked result on a single line.
func ResultLine(rank int, r search.Result) string {
	m := r.Moment
	return fmt.Sprintf("%d. %s %s — %s vs %s | %s | score=%.3f",
		rank, m.Tournament, displayYear(m), m.Player1, m.Player2, m.Point, r.Score)
}

// Results prints a result set as ranked lines with indented summaries.
// With explain set, the component scores follow each result.
func (w *Writer) Results(rs *search.ResultSet, explain bool) {
	if rs.FallbackApplied {
		w.Warning("filters matched nothing; showing unfiltered results")
	}
	if rs.VectorDegraded {
		w.Warning("embedding unavailable; ranked by keywords only")
	}
	if rs.Len() == 0 {
		w.Status("", "no results")
		return
	}

	for i, r := range rs.Results {
		line := ResultLine(i+1, r)
		if w.color {
			line = w.styles.Header.Render(fmt.Sprintf("%d.", i+1)) + strings.TrimPrefix(line, fmt.Sprintf("%d.", i+1))
		}
		_, _ = fmt.Fprintln(w.out, line)
		_, _ = fmt.Fprintf(w.out, "    %s\n", r.Moment.Summary)
		if explain {
			e := r.Explain
			_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(fmt.Sprintf(
				"    bm25=%.4f (norm %.3f) embed=%.4f (norm %.3f)",
				e.BM25Raw, e.BM25Norm, e.EmbedRaw, e.EmbedNorm)))
		}
	}
}

// Card prints the moment card, styled on terminals and markdown otherwise.
func (w *Writer) Card(r search.Result) {
	if w.color {
		_, _ = fmt.Fprintln(w.out, CardStyle(r.Moment, w.styles))
		return
	}
	_, _ = fmt.Fprintln(w.out, RenderCard(r.Moment))
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}
