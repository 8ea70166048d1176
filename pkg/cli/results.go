package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/screenkit/pkg/report"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var resultsCommand = &cli.Command{
	Name:      "results",
	Usage:     "Print the step tree of every result in a results directory",
	ArgsUsage: "[dir]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "failed",
			Usage: "Only show failed and broken tests",
		},
	},
	Action: runResults,
}

func runResults(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	dir := resultsDir(c, cfg)

	results, err := report.ReadResults(dir)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}

	w := c.App.Writer
	if len(results) == 0 {
		fmt.Fprintf(w, "No results in %s\n", dir)
		return nil
	}

	shown := results
	if c.Bool("failed") {
		shown = nil
		for _, r := range results {
			if r.Status == report.StatusFailed || r.Status == report.StatusBroken {
				shown = append(shown, r)
			}
		}
	}

	for i := range shown {
		printResult(w, &shown[i], i, len(shown))
	}
	fmt.Fprintf(w, "\n  %s\n", summarize(results))
	return nil
}

// printResult prints a test header, its step tree and its outcome.
func printResult(w io.Writer, r *report.TestResult, idx, total int) {
	fmt.Fprintf(w, "\n  %s %s", cyan(fmt.Sprintf("[%d/%d]", idx+1, total)), bold(r.Name))
	if r.FullName != "" && r.FullName != r.Name {
		fmt.Fprintf(w, " (%s)", r.FullName)
	}
	fmt.Fprintln(w)
	if labels := formatLabels(r.Labels); labels != "" {
		fmt.Fprintf(w, "  %s\n", gray(labels))
	}
	fmt.Fprintln(w, "  "+strings.Repeat("─", 60))

	report.Walk(r.Steps, func(depth int, s *report.StepResult) {
		indent := strings.Repeat("  ", 2+depth)
		fmt.Fprintf(w, "%s%s %s %s\n", indent, statusSymbol(s.Status), s.Name, gray("("+formatDuration(s.Stop-s.Start)+")"))
	})

	fmt.Fprintf(w, "%s %s %s\n", statusSymbol(r.Status), r.Name, gray(formatDuration(r.Stop-r.Start)))
	if r.StatusDetails != nil && r.StatusDetails.Message != nil {
		fmt.Fprintf(w, "  %s %s\n", gray("╰─"), *r.StatusDetails.Message)
	}
}

func statusSymbol(s report.Status) string {
	switch s {
	case report.StatusPassed:
		return green("✓")
	case report.StatusFailed:
		return red("✗")
	case report.StatusBroken:
		return yellow("!")
	default:
		return cyan("-")
	}
}

func formatLabels(labels []report.Label) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Name+"="+l.Value)
	}
	return strings.Join(parts, " ")
}

// summarize counts results per status, e.g. "1 passed, 2 failed (3 tests)".
func summarize(results []report.TestResult) string {
	counts := make(map[report.Status]int)
	for _, r := range results {
		counts[r.Status]++
	}

	var parts []string
	for _, st := range []struct {
		status report.Status
		paint  func(...interface{}) string
	}{
		{report.StatusPassed, green},
		{report.StatusFailed, red},
		{report.StatusBroken, yellow},
		{report.StatusSkipped, cyan},
	} {
		if n := counts[st.status]; n > 0 {
			parts = append(parts, st.paint(fmt.Sprintf("%d %s", n, st.status)))
		}
	}

	noun := "tests"
	if len(results) == 1 {
		noun = "test"
	}
	return fmt.Sprintf("%s (%d %s)", strings.Join(parts, ", "), len(results), noun)
}

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
