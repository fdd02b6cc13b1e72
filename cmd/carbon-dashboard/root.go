package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ecoledger/carbon-dashboard/internal/config"
)

// rootOptions holds the persistent flags and the state PersistentPreRunE
// derives from them.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "carbon-dashboard",
		Short:         "Track and report carbon emissions",
		Long:          "carbon-dashboard converts electricity, fuel, waste and water consumption into kg CO2e,\nstores consumption records and delivers scheduled emissions reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}
	cmd.SetErr(os.Stderr)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (json or console)")

	cmd.AddCommand(
		newServeCmd(opts),
		newCalcCmd(opts),
		newFactorsCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newArchiveCmd(opts),
	)
	return cmd
}

// load builds the configuration from file, environment and flags, then the
// logger. Errors are also printed so SilenceErrors does not hide them.
func (o *rootOptions) load(stderr io.Writer) error {
	err := o.loadConfig(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "[carbon-dashboard] %v\n", err)
	}
	return err
}

func (o *rootOptions) loadConfig(stderr io.Writer) error {
	bootstrap := zerolog.New(stderr).With().Timestamp().Logger()
	cfg, err := config.Load(o.configPath, bootstrap, func(c *config.Config) {
		if o.logLevel != "" {
			c.Log.Level = o.logLevel
		}
		if o.logFormat != "" {
			c.Log.Format = o.logFormat
		}
	})
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

// newLogger builds the process logger: JSON lines by default, or a
// human-readable console writer.
func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level: %w", err)
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", "carbon-dashboard").
		Logger(), nil
}
