package main

import (
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/stackvm"
	"github.com/wippyai/stackvm/config"
	"github.com/wippyai/stackvm/metrics"
)

// cli carries what every command shares: output streams, the loaded
// configuration, the logger and the metrics registry.
type cli struct {
	out, err io.Writer
	cfg      *config.Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry

	configPath  string
	logLevel    string
	logFormat   string
	dumpMetrics bool
}

func newCLI(out, err io.Writer) *cli {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m)
	return &cli{
		out:      out,
		err:      err,
		cfg:      config.Default(),
		log:      zap.NewNop(),
		metrics:  m,
		registry: reg,
	}
}

func (c *cli) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.configPath, "config", "", "Path to stackvm.toml (default: search upwards from the working directory)")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&c.logFormat, "log-format", "", "Log format: console or json")
	flags.BoolVar(&c.dumpMetrics, "metrics", false, "Print collected metrics to stderr on exit")
}

// setup loads the configuration, applies flag overrides and installs the
// logger.
func (c *cli) setup() error {
	var err error
	if c.configPath != "" {
		c.cfg, err = config.Load(c.configPath)
	} else {
		c.cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		c.cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		c.cfg.Log.Format = c.logFormat
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.log, err = c.newLogger()
	if err != nil {
		return err
	}
	stackvm.SetLogger(c.log)
	if c.cfg.Path != "" {
		c.log.Debug("loaded config", zap.String("path", c.cfg.Path))
	}
	return nil
}

func (c *cli) newLogger() (*zap.Logger, error) {
	lvl, err := c.cfg.Level()
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if c.cfg.Log.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if isTerminal(c.err) {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(c.err), lvl)
	return zap.New(core), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// teardown flushes the logger and prints metrics when asked to.
func (c *cli) teardown() error {
	_ = c.log.Sync()
	if !c.dumpMetrics {
		return nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(c.err, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) budget() int {
	return c.cfg.Execution.Budget
}

func newRootCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stackvm",
		Short:         "Validate and run structured stack machine programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown()
		},
	}
	cmd.SetOut(c.out)
	cmd.SetErr(c.err)
	c.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newValidateCommand(c),
		newRunCommand(c),
		newStepCommand(c),
		newEmitCommand(c),
		newCompareCommand(c),
	)
	return cmd
}
