// Package observability renders run progress and summaries for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

const (
	boxWidth       = 60
	maxItemsToShow = 10
)

// Printer handles formatted CLI output.
type Printer struct {
	out io.Writer
	now func() time.Time
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, now: time.Now}
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-3]) + "..."
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(title, inner), inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(line, inner), inner))
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSearch outputs the search a run is about to perform.
func (p *Printer) PrintSearch(req types.RunRequest, caller string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title:     %s\n", req.Title)
	fmt.Fprintf(&sb, "Location:  %s\n", req.Location)
	fmt.Fprintf(&sb, "Limit:     %d\n", req.Limit)
	fmt.Fprintf(&sb, "Caller:    %s", caller)
	p.printBox("EASY APPLY RUN", sb.String())
}

// PrintEvent outputs one status event as a timestamped line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvent(ev types.StatusEvent) {
	marker := "•"
	switch ev.Type {
	case types.EventError:
		marker = "✗"
	case types.EventComplete:
		marker = "✓"
	}
	fmt.Fprintf(p.out, "%s %s %s\n", p.now().Format("15:04:05"), marker, ev.Message)
}

// PrintRunSummary outputs the applications a run produced.
func (p *Printer) PrintRunSummary(result *types.RunResult, runErr error) {
	if result == nil {
		result = &types.RunResult{}
	}
	summary := result.Summarize()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Applied:   %d\n", summary.AppliedJobs)
	fmt.Fprintf(&sb, "Success:   %d%%\n", summary.SuccessRate)
	if runErr != nil {
		fmt.Fprintf(&sb, "Error:     %s\n", runErr)
	}

	if len(summary.Applications) > 0 {
		sb.WriteString("\n")
		count := min(len(summary.Applications), maxItemsToShow)
		for i := 0; i < count; i++ {
			rec := summary.Applications[i]
			fmt.Fprintf(&sb, "%s  %s @ %s\n", rec.Timestamp.Format("15:04"), rec.Title, rec.Company)
		}
		if len(summary.Applications) > maxItemsToShow {
			fmt.Fprintf(&sb, "... and %d more\n", len(summary.Applications)-maxItemsToShow)
		}
	}

	p.printBox("RUN SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// Sink returns a status sink printing every event.
func (p *Printer) Sink() types.StatusSink {
	return types.SinkFunc(p.PrintEvent)
}
