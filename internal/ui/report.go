// Package ui renders scenario reports for a terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"ctfe/internal/scenario"
)

// Renderer writes reports as aligned rows. Width is the terminal width;
// values below 40 are raised to 40.
type Renderer struct {
	Width int
	Color bool
	Quiet bool // only failing queries and the totals line
}

const (
	statusWidth = 4
	opWidth     = 20
)

// Reports writes every report followed by a totals line. It returns the
// number of failing queries.
func (r Renderer) Reports(w io.Writer, reports []*scenario.Report) (int, error) {
	var b strings.Builder
	failed, total := 0, 0
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		failed += len(rep.Results) - rep.Passed()
		total += len(rep.Results)
		r.report(&b, rep)
	}
	summary := fmt.Sprintf("%d scenarios, %d queries, %d failed", len(reports), total, failed)
	if failed > 0 {
		b.WriteString(r.style("fail", summary))
	} else {
		b.WriteString(r.style("pass", summary))
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return failed, err
}

func (r Renderer) report(b *strings.Builder, rep *scenario.Report) {
	if r.Quiet && rep.OK() {
		return
	}
	header := fmt.Sprintf("%s  %d/%d passed in %s", rep.Name, rep.Passed(), len(rep.Results), rep.Dur.Round(time.Microsecond))
	b.WriteString(r.style("title", header))
	b.WriteByte('\n')

	width := max(r.Width, 40)
	nameWidth := max((width-statusWidth-opWidth-6)/3, 8)
	outWidth := max(width-statusWidth-opWidth-nameWidth-6, 12)
	for i := range rep.Results {
		res := &rep.Results[i]
		status := statusOf(res)
		if r.Quiet && status != "fail" {
			continue
		}
		out := res.Output
		if res.Err != nil {
			out = res.Err.Error()
		}
		fmt.Fprintf(b, "  %s %s %s %s\n",
			r.style(status, runewidth.FillRight(status, statusWidth)),
			runewidth.FillRight(truncate(res.Query.Name, nameWidth), nameWidth),
			runewidth.FillRight(string(res.Query.Op), opWidth),
			truncate(out, outWidth))
		if status == "fail" {
			want := res.Query.Expect
			if res.Query.ExpectError != "" {
				want = "error " + res.Query.ExpectError
			} else if want == "" {
				want = "no error"
			}
			fmt.Fprintf(b, "       %s %s\n", r.style("note", "want"), want)
		}
	}
}

func statusOf(res *scenario.Result) string {
	switch {
	case !res.Pass():
		return "fail"
	case res.Checked():
		return "pass"
	default:
		return "info"
	}
}

func (r Renderer) style(kind, s string) string {
	if !r.Color {
		return s
	}
	return styleFor(kind).Render(s)
}

func styleFor(kind string) lipgloss.Style {
	switch kind {
	case "pass":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "fail":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "info", "note":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	case "title":
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

// Lines writes plain lines under a bold title.
func (r Renderer) Lines(w io.Writer, title string, lines []string) error {
	var b strings.Builder
	if title != "" {
		b.WriteString(r.style("title", title))
		b.WriteByte('\n')
	}
	width := max(r.Width, 40)
	for _, l := range lines {
		b.WriteString(truncate(l, width))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
