// Package cli contains the navsim command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	generalFlagConfig  = "config"
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"

	runFlagScenario = "scenario"
	runFlagSummary  = "summary"

	defaultConfigPath = "config/data/navigation.json5"
)

var app = &cli.App{
	Name:            "navsim",
	Usage:           "drive move actions through navigation scenarios",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    generalFlagConfig,
			Aliases: []string{"c"},
			Value:   defaultConfigPath,
			Usage:   "load navigation configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  generalFlagLogFile,
			Usage: "also write logs to the rotated `FILE`",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "run",
			Usage:     "run one or more scenarios and print their reports",
			UsageText: "navsim [global options] run --scenario <file> [--scenario <file>...]",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:     runFlagScenario,
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "scenario `FILE` to run, may be repeated",
				},
				&cli.BoolFlag{
					Name:  runFlagSummary,
					Usage: "print arrival statistics below each report",
				},
			},
			Action: RunAction,
		},
		{
			Name:      "validate",
			Usage:     "check the configuration and optionally scenarios without running them",
			ArgsUsage: "[scenario...]",
			Action:    ValidateAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the configuration file",
			Action: SchemaAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
