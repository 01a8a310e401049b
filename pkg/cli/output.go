package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/moumouls/aero-4g-cam/pkg/report"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

const ruleWidth = 60

// colorsEnabled reports whether w is an interactive terminal that wants ANSI colors.
func colorsEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// printer writes progress and summaries for humans.
type printer struct {
	w      io.Writer
	colors bool
}

func newPrinter(w io.Writer, noANSI bool) *printer {
	return &printer{w: w, colors: !noANSI && colorsEnabled(w)}
}

// color returns the color code if colors are enabled, empty string otherwise
func (p *printer) color(c string) string {
	if p.colors {
		return c
	}
	return ""
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) section(title string) {
	p.printf("\n%s%s%s\n", p.color(colorBold), title, p.color(colorReset))
	p.printf("%s\n", strings.Repeat("═", ruleWidth))
}

func (p *printer) banner(runID string, started time.Time) {
	p.section(fmt.Sprintf("aero-4g-cam %s", Version))
	p.printf("  Run:     %s\n", runID)
	p.printf("  Started: %s\n", started.Format(time.RFC3339))
}

func (p *printer) success(msg string) {
	p.printf("  %s✓%s %s\n", p.color(colorGreen), p.color(colorReset), msg)
}

func (p *printer) fail(msg string) {
	p.printf("  %s✗%s %s\n", p.color(colorRed), p.color(colorReset), msg)
}

// onStepComplete is the live progress callback of the runner.
func (p *printer) onStepComplete(idx int, desc string, status core.StepStatus, d time.Duration, errMsg string) {
	durStr := formatDuration(d.Milliseconds())

	switch status {
	case core.StatusPassed:
		symbol := "✓"
		symbolColor := p.color(colorGreen)
		durColor := ""
		if d.Milliseconds() >= slowThresholdMs && !strings.HasPrefix(desc, "sleep") {
			durColor = p.color(colorYellow)
			symbol = "⚠"
			symbolColor = p.color(colorYellow)
		}
		p.printf("    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, p.color(colorReset), desc, durColor, durStr, p.color(colorReset))
	case core.StatusWarned:
		p.printf("    %s~%s %s (%s, optional)\n", p.color(colorYellow), p.color(colorReset), desc, durStr)
		if errMsg != "" {
			p.printf("      %s╰─%s %s\n", p.color(colorGray), p.color(colorReset), errMsg)
		}
	default:
		p.printf("    %s✗%s %s (%s)\n", p.color(colorRed), p.color(colorReset), desc, durStr)
		if errMsg != "" {
			p.printf("      %s╰─%s %s\n", p.color(colorGray), p.color(colorReset), errMsg)
		}
	}
}

func (p *printer) onPhase(phase flow.Phase) {
	p.printf("  %s▸ %s%s\n", p.color(colorCyan), phase, p.color(colorReset))
}

// printReport prints the step summary and the artifact locations.
func (p *printer) printReport(rep *report.Report, reportPath string) {
	s := rep.Summary
	p.printf("\n")
	if s.Passed > 0 {
		p.printf("  %s%d steps passing%s (%s)\n", p.color(colorGreen), s.Passed, p.color(colorReset), formatDuration(rep.Duration))
	}
	if s.Warned > 0 {
		p.printf("  %s%d optional steps failed%s\n", p.color(colorYellow), s.Warned, p.color(colorReset))
	}
	if s.Failed > 0 {
		p.printf("  %s%d steps failing%s\n", p.color(colorRed), s.Failed, p.color(colorReset))
	}
	if s.Skipped > 0 {
		p.printf("  %s%d steps skipped%s\n", p.color(colorCyan), s.Skipped, p.color(colorReset))
	}

	for _, cmd := range rep.Commands {
		if cmd.Screenshot != "" {
			p.printf("  Screenshot: %s\n", cmd.Screenshot)
		}
	}

	if pub := rep.Publish; pub != nil {
		p.printf("  Video (%s): %s %s(%d KB)%s\n", pub.Backend, objectLocation(pub.Video),
			p.color(colorGray), pub.Video.SizeKB, p.color(colorReset))
		if pub.Metadata != nil {
			p.printf("  Metadata: %s\n", objectLocation(*pub.Metadata))
		}
	}
	if reportPath != "" {
		p.printf("  Report: %s\n", reportPath)
	}
}

func (p *printer) finish(rep *report.Report) {
	p.printf("%s\n", strings.Repeat("─", ruleWidth))
	label := strings.ToUpper(string(rep.Status))
	statusColor := p.color(colorGreen)
	if rep.Status == report.StatusFailed {
		statusColor = p.color(colorRed)
	}
	p.printf("  %s%s%s  phase %s  total %s\n",
		statusColor, label, p.color(colorReset), rep.Phase, formatDuration(rep.Duration))
}

// logAvailable is always the last line of a run.
func (p *printer) logAvailable(path string) {
	if path == "" {
		return
	}
	p.printf("\n%sFull log available at: %s%s\n", p.color(colorGray), path, p.color(colorReset))
}

func objectLocation(o report.Object) string {
	if o.Error != "" {
		return "failed: " + o.Error
	}
	if o.URL != "" {
		return o.URL
	}
	return o.Key
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
