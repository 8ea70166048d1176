package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/screenkit/pkg/logger"
	"github.com/devicelab-dev/screenkit/pkg/report"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check result files against the Allure result format",
	ArgsUsage: "[dir]",
	Action:    runValidate,
}

func runValidate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	dir := resultsDir(c, cfg)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("read results: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*-result.json"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	if len(files) == 0 {
		fmt.Fprintf(w, "No results in %s\n", dir)
		return nil
	}

	invalid := 0
	for _, path := range files {
		name := filepath.Base(path)

		var problems []error
		r, err := report.ReadResult(path)
		if err != nil {
			problems = append(problems, err)
		} else {
			problems = report.Validate(r)
		}

		if len(problems) == 0 {
			fmt.Fprintf(w, "  %s %s\n", green("✓"), name)
			continue
		}
		invalid++
		fmt.Fprintf(w, "  %s %s\n", red("✗"), name)
		for _, p := range problems {
			fmt.Fprintf(w, "    %s %v\n", gray("╰─"), p)
			logger.Warn("invalid result %s: %v", path, p)
		}
	}

	if invalid > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d result files invalid", invalid, len(files)), 1)
	}
	fmt.Fprintf(w, "\n  %s\n", green(fmt.Sprintf("%d result files valid", len(files))))
	return nil
}
