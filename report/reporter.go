// Package report renders the collected run outcomes as a plain-text report.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	apitest "github.com/rohan-js/automated-api-testing-framework"
)

// Reporter is a Sink that renders collected outcomes as a human-readable
// report. It embeds the in-memory RunReport collector and adds rendering,
// color, and file output.
type Reporter struct {
	*apitest.RunReport
	useColor bool
}

var _ apitest.Sink = (*Reporter)(nil)

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithColor toggles ANSI color in the rendered report, default on.
func WithColor(useColor bool) ReporterOption {
	return func(r *Reporter) {
		r.useColor = useColor
	}
}

// NewReporter creates a Reporter.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		RunReport: apitest.NewRunReport(),
		useColor:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render returns the full report as a string.
func (r *Reporter) Render() string {
	var b strings.Builder
	b.WriteString("========== TEST REPORT ==========\n")

	for _, entry := range r.Entries() {
		marker := "[PASS]"
		if !entry.Passed {
			marker = "[FAIL]"
		}
		if r.useColor {
			if entry.Passed {
				marker = text.FgGreen.Sprint(marker)
			} else {
				marker = text.FgRed.Sprint(marker)
			}
		}
		fmt.Fprintf(&b, "%s %s: %s - %s\n", marker, entry.Phase, entry.Name, entry.Message)
	}

	passed, failed := r.Summary()
	b.WriteString("==================================\n")
	fmt.Fprintf(&b, "Summary: passed=%d, failed=%d, total=%d", passed, failed, passed+failed)
	return b.String()
}

// Print writes the report to stdout.
func (r *Reporter) Print() {
	fmt.Println(r.Render())
}

// Write writes the report to a file. Color codes are stripped so the file
// stays plain text.
func (r *Reporter) Write(path string) error {
	rendered := r.Render()
	if r.useColor {
		rendered = text.StripEscape(rendered)
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
