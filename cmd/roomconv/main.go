// Command roomconv converts stage bundle room files between the binary STB
// format and XML.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/stbtool/internal/config"
	"github.com/cory-johannsen/stbtool/internal/convert"
	"github.com/cory-johannsen/stbtool/internal/observability"
	"github.com/cory-johannsen/stbtool/internal/stb"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "roomconv",
		Short:         "Convert stage bundle room files",
		Long:          `roomconv reads and writes room layouts in the binary STB format (Rebirth, Afterbirth+, Antibirth) and the XML interchange format.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newConvertCmd(a),
		newBatchCmd(a),
		newInfoCmd(a),
		newPreviewCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// options maps the convert section onto converter options.
func (a *app) options() (convert.Options, error) {
	dialect, err := stb.ParseDialect(a.cfg.Convert.STBDialect)
	if err != nil {
		return convert.Options{}, err
	}
	return convert.Options{
		Dialect:   dialect,
		Overwrite: a.cfg.Convert.Overwrite,
		Workers:   a.cfg.Convert.Workers,
	}, nil
}

func (a *app) converter() (*convert.Converter, error) {
	opts, err := a.options()
	if err != nil {
		return nil, err
	}
	return convert.New(a.logger, opts), nil
}

// outputFormat returns the --to flag value, or the configured default.
func (a *app) outputFormat(flag string) (convert.Format, error) {
	if flag == "" {
		flag = a.cfg.Convert.Output
	}
	return convert.ParseFormat(flag)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
