// Package commands implements the CLI commands for educrawler.
package commands

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/educrawler/internal/browser"
	"github.com/jmylchreest/educrawler/internal/config"
	"github.com/jmylchreest/educrawler/internal/logger"
	"github.com/jmylchreest/educrawler/internal/output"
)

const runIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// app is the state shared by every command of one invocation.
type app struct {
	cfgFile     string
	v           *viper.Viper
	newLauncher func(browser.Options) browser.Launcher
	now         func() time.Time
}

// NewRootCmd returns the educrawler command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{
		newLauncher: func(opts browser.Options) browser.Launcher { return browser.NewChrome(opts) },
		now:         time.Now,
	})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "educrawler",
		Short: "Crawl Azure Education course, lab and handout data",
		Long: `Educrawler signs in to the Azure portal and reads the Education
courses, labs and handouts you manage, with subscription details.

Credentials come from the config file, EDUCRAWLER_LOGIN_EMAIL and
EDUCRAWLER_LOGIN_PASSWORD, or a .env file.

Examples:
  # List courses
  educrawler course list

  # Every handout of one course as CSV
  educrawler handout list --course "Urban analytics" -f csv

  # One handout, JSON to a file
  educrawler handout list -c "Urban analytics" -l "week 1" --handout uahandout1 \
      -f json -o handout.json`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: config.yml or .educrawler.yaml in . or $HOME)")
	pf.StringP("output-format", "f", "table", "output format: table, csv, json, jsonl, yaml")
	pf.StringP("output", "o", "", "output file (default: stdout, csv: ec_output_<timestamp>.csv)")
	pf.Bool("debug", false, "enable debug logging")
	pf.BoolP("quiet", "q", false, "only log errors")
	pf.Int("verbose", 1, "verbosity: 0 minimal, 1 normal, 2 debug, 3 all")
	pf.Bool("headless", true, "run the browser without a window")
	pf.Bool("mfa", true, "wait for multi-factor approval after the password")

	cmd.AddCommand(
		newCourseCmd(a),
		newHandoutCmd(a),
		newUsageCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// setup loads .env and the configuration and initializes logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	// Load .env file if present (ignore errors)
	_ = godotenv.Load()

	v, err := config.New(a.cfgFile)
	if err != nil {
		return err
	}
	pf := cmd.Root().PersistentFlags()
	for _, key := range []string{"headless", "mfa", "verbose"} {
		if err := v.BindPFlag(key, pf.Lookup(key)); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	a.v = v

	if f, _ := pf.GetString("output-format"); cmd.Name() != "version" {
		if _, err := output.ParseFormat(f); err != nil {
			return err
		}
	}

	debug, _ := pf.GetBool("debug")
	quiet, _ := pf.GetBool("quiet")
	logger.Init(logger.Options{
		Level:  logger.LevelForVerbosity(v.GetInt("verbose")),
		Debug:  debug,
		Quiet:  quiet,
		Output: cmd.ErrOrStderr(),
	})

	runID, err := nanoid.Generate(runIDAlphabet, 8)
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	logger.SetLogger(logger.With("run", runID))
	logger.Debug("starting", "command", cmd.CommandPath())
	return nil
}

// config validates the loaded configuration.
func (a *app) config() (config.Config, error) {
	return config.Load(a.v)
}
