package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/talDoFlemis/hokkaido"
	"github.com/talDoFlemis/hokkaido/internal/command"
	"github.com/talDoFlemis/hokkaido/logger"
	"github.com/talDoFlemis/hokkaido/metrics"
)

const envPrefix = "GOJO"

// config is the resolved configuration: flags override environment
// variables, which override the config file.
type config struct {
	Input         string `mapstructure:"input"`
	Output        string `mapstructure:"output"`
	NewLine       bool   `mapstructure:"new-line"`
	ClampVersions bool   `mapstructure:"clamp-versions"`
	ModCapacity   int    `mapstructure:"mod-capacity"`
	QueryCache    uint32 `mapstructure:"query-cache"`
	LogLevel      string `mapstructure:"log-level"`
	LogBackend    string `mapstructure:"log-backend"`
	MetricsOut    string `mapstructure:"metrics-out"`
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "gojo",
		Short: "Process commands against a partially persistent red-black tree",
		Long: `gojo reads one command per line and writes the results.

  INC <key>            insert key, producing the next version
  IMP <version>        print the keys of version in ascending order
  SUC <key> <version>  print the smallest key greater than key in version,
                       or INFINITO when there is none

Commands are case-insensitive. Failing lines are reported as "error: ..."
lines and processing continues.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	flags.StringP("input", "i", "", "input file to read commands from (default stdin)")
	flags.StringP("output", "o", "", "output file to write results to (default stdout)")
	flags.BoolP("new-line", "n", true, "end the output with a newline")
	flags.Bool("clamp-versions", false, "read the latest version when a later one is requested")
	flags.Int("mod-capacity", hokkaido.DefaultModCapacity, "modifications recorded per node field before copying")
	flags.Uint32("query-cache", hokkaido.DefaultQueryCacheSize, "versions whose IMP result is cached (0 disables)")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.String("log-backend", logger.BackendZap, "log backend: zap or logrus")
	flags.String("metrics-out", "", "write tree metrics in Prometheus text format to this file")

	// Flag names double as config keys; binding cannot fail for flags that
	// were just defined.
	_ = v.BindPFlags(flags)

	return cmd
}

func loadConfig(v *viper.Viper, file string) (config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, cfg config) error {
	log, sync, err := logger.New(cfg.LogBackend, cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = sync() }()

	tree, err := hokkaido.New[int, int](
		hokkaido.WithModCapacity(cfg.ModCapacity),
		hokkaido.WithQueryCacheSize(cfg.QueryCache),
		hokkaido.WithLogger(log),
	)
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if cfg.Input != "" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var buf bytes.Buffer
	processor := command.NewProcessor(tree,
		command.WithClampVersions(cfg.ClampVersions),
		command.WithLogger(log))
	if _, err := processor.Run(in, &buf); err != nil {
		return err
	}

	if err := writeOutput(cmd.OutOrStdout(), cfg, buf.Bytes()); err != nil {
		return err
	}

	if cfg.MetricsOut != "" {
		if err := writeMetrics(cfg.MetricsOut, tree); err != nil {
			return err
		}
		log.Info("metrics written", "path", cfg.MetricsOut)
	}
	return nil
}

func writeOutput(stdout io.Writer, cfg config, out []byte) (err error) {
	if !cfg.NewLine {
		out = bytes.TrimSuffix(out, []byte("\n"))
	}

	if cfg.Output == "" {
		_, err = stdout.Write(out)
		return err
	}

	f, err := os.Create(cfg.Output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	_, err = f.Write(out)
	return err
}

func writeMetrics(path string, tree *hokkaido.Tree[int, int]) (err error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(tree, nil)); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return metrics.WriteText(f, reg)
}
