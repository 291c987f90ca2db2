package cli

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/16tons/emergency5-sdk-sub029/config"
	"github.com/16tons/emergency5-sdk-sub029/logging"
	"github.com/16tons/emergency5-sdk-sub029/sim"
)

// newLogger returns a logger writing to the app's error writer, so reports on Writer stay clean.
// The returned func closes the log file, if any.
func newLogger(c *cli.Context) (logging.Logger, func()) {
	logger := logging.NewBlankLogger("navsim")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	closeLog := func() {}
	if filename := c.String(generalFlagLogFile); filename != "" {
		file := logging.NewFileAppender(filename)
		logger.AddAppender(file)
		closeLog = func() {
			if err := file.Close(); err != nil {
				fmt.Fprintf(c.App.ErrWriter, "closing log file: %v\n", err)
			}
		}
	}
	logger.SetLevel(logging.INFO)
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	config.InitLoggingSettings(logger, c.Bool(generalFlagDebug))
	return logger, closeLog
}

func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	cfg, err := config.Read(c.String(generalFlagConfig))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load config %q", c.String(generalFlagConfig))
	}
	config.UpdateFileConfigDebug(cfg.Debug)
	if !c.Bool(generalFlagDebug) {
		logger.SetLevel(cfg.Level())
	}
	return cfg, nil
}

// RunAction runs every --scenario concurrently and renders one report per scenario.
func RunAction(c *cli.Context) error {
	logger, closeLog := newLogger(c)
	defer closeLog()
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	paths := c.StringSlice(runFlagScenario)
	scenarios := make([]*sim.Scenario, 0, len(paths))
	for _, p := range paths {
		scn, err := sim.ReadScenario(p)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, scn)
	}

	reports, err := sim.RunAll(c.Context, cfg, scenarios, logger)
	if err != nil {
		return err
	}
	for _, report := range reports {
		if err := report.Render(c.App.Writer); err != nil {
			return err
		}
		if !c.Bool(runFlagSummary) {
			continue
		}
		summary, err := report.Summary()
		if err != nil {
			return errors.Wrapf(err, "summarizing %q", report.Scenario)
		}
		fmt.Fprintf(c.App.Writer,
			"arrival mean %.2fs median %.2fs p90 %.2fs, traveled %.1f, mean retries %.2f\n",
			summary.MeanArrivalSec, summary.MedianArrivalSec, summary.P90ArrivalSec,
			summary.TotalTraveled, summary.MeanRetries)
	}
	return nil
}

// ValidateAction loads the config and every scenario given as argument and reports all problems.
func ValidateAction(c *cli.Context) error {
	logger, closeLog := newLogger(c)
	defer closeLog()
	if _, err := loadConfig(c, logger); err != nil {
		return err
	}
	var errs error
	for _, p := range c.Args().Slice() {
		if _, err := sim.ReadScenario(p); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return errs
	}
	fmt.Fprintf(c.App.Writer, "%s: ok\n", c.String(generalFlagConfig))
	for _, p := range c.Args().Slice() {
		fmt.Fprintf(c.App.Writer, "%s: ok\n", p)
	}
	return nil
}

// SchemaAction prints the configuration file's JSON schema.
func SchemaAction(c *cli.Context) error {
	out, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
