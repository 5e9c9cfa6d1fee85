package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/heartrisk/config"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	dataset    string
	sheet      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "heartrisk",
		Short:         "Heart-attack risk analysis and classifier comparison",
		Long:          `heartrisk audits the heart-attack dataset, removes missing and outlier values, encodes the features and compares logistic regression, a decision tree, an SVC and a random forest by accuracy, cross-validated accuracy and ROC.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := cmd.PersistentFlags()
	f.StringVar(&opts.configFile, "config", "", "config file (default ./heartrisk.yaml when present)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	f.StringVar(&opts.logFormat, "log-format", "", "log format: text or json (overrides config)")
	f.StringVar(&opts.dataset, "dataset", "", "dataset path, .csv or .xlsx (overrides config)")
	f.StringVar(&opts.sheet, "sheet", "", "XLSX sheet name (overrides config)")

	cmd.AddCommand(newRunCmd(opts), newAuditCmd(opts), newVersionCmd())
	return cmd
}

// load reads the configuration, applies the flags that were set and
// installs the loggers. Flags win over env, file and defaults.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if f.Changed("dataset") {
		cfg.Dataset = o.dataset
	}
	if f.Changed("sheet") {
		cfg.Sheet = o.sheet
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setupLogging(cmd.ErrOrStderr(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging sends structured logs and estimator warnings to w. Warnings
// go through a zerolog console writer so their fields stay readable.
func setupLogging(w io.Writer, cfg *config.Config) error {
	if err := log.SetupLogger(w, cfg.LogLevel, cfg.LogFormat); err != nil {
		return errors.Wrap(err, "setup logger")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "parse log level")
	}
	var out io.Writer = w
	if cfg.LogFormat == "text" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: w != os.Stderr}
	}
	zl := zerolog.New(out).Level(level).With().Timestamp().Str("component", "warnings").Logger()
	errors.SetZerologWarnFunc(errors.ZerologWarnFunc(zl))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the heartrisk version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), "heartrisk "+version+"\n")
			return err
		},
	}
}
