package cli

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/screenkit/pkg/report"
)

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "Print the effective configuration as YAML",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = c.App.Writer.Write(data)
		return err
	},
}

var categoriesCommand = &cli.Command{
	Name:      "categories",
	Usage:     "Write categories.json, environment.properties and executor.json",
	ArgsUsage: "[dir]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "executor",
			Usage: "Executor name shown in the report",
			Value: "screenkit",
		},
		&cli.StringFlag{
			Name:  "executor-type",
			Usage: "Executor type (local, github, jenkins, ...)",
			Value: "local",
		},
		&cli.StringFlag{
			Name:  "report-url",
			Usage: "Link to the published report",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Extra environment.properties entry (KEY=VALUE, repeatable)",
		},
	},
	Action: runCategories,
}

func runCategories(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	w := report.NewWriter(resultsDir(c, cfg))

	env := make(map[string]string, len(cfg.Results.Environment))
	for k, v := range cfg.Results.Environment {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}

	if err := w.WriteCategories(nil); err != nil {
		return err
	}
	if len(env) > 0 {
		if err := w.WriteEnvironment(env); err != nil {
			return err
		}
	}
	if err := w.WriteExecutor(report.AllureExecutor{
		Name:      c.String("executor"),
		Type:      c.String("executor-type"),
		ReportURL: c.String("report-url"),
	}); err != nil {
		return err
	}

	_, err = c.App.Writer.Write([]byte("Wrote run metadata to " + w.Dir() + "\n"))
	return err
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		if k, v, ok := strings.Cut(e, "="); ok {
			result[k] = v
		}
	}
	return result
}
