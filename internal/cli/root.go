// Package cli has the gifcat commands
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wader/gifcat/internal/config"
	"github.com/wader/gifcat/internal/logging"
	"github.com/wader/gifcat/internal/render/all"
)

type app struct {
	stdout  io.Writer
	stderr  io.Writer
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	log     *logrus.Logger
}

// configKeys have a flag with the same name using dashes
var configKeys = []string{
	"renderer", "status", "log_level", "loops",
	"cache_policy", "cache_limit", "max_window", "optimal_window",
	"workers", "predraw", "quality", "slowdown",
	"size_all_mib", "size_default_mib", "default_window", "low_window",
	"memory_limit_mib", "memory_poll", "metrics_addr",
}

func (a *app) addFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	fs := cmd.PersistentFlags()
	fs.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/"+config.Name+".yaml)")
	fs.String("renderer", d.Renderer, "renderer, auto or one of "+strings.Join(all.Names(), ", "))
	fs.Bool("status", d.Status, "show status line below the frame")
	fs.String("log-level", d.LogLevel, "log level (trace, debug, info, warn, error)")
	fs.Int("loops", d.Loops, "number of loops, 0 uses the file loop count, -1 loops forever")
	fs.String("cache-policy", d.CachePolicy, "cache growth policy, greedy, limited or limited:N")
	fs.Int("cache-limit", d.CacheLimit, "window limit for the limited policy")
	fs.Int("max-window", d.MaxWindow, "cap on the cache window, 0 no cap")
	fs.Int("optimal-window", d.OptimalWindow, "override the optimal cache window, 0 picks from decoded size")
	fs.Int("workers", d.Workers, "background decode workers")
	fs.Bool("predraw", d.Predraw, "scale frames in the background")
	fs.String("quality", d.Quality, "scaling quality, fast or good")
	fs.Float64("slowdown", d.Slowdown, "make background decoding take this many times longer")
	fs.Int("size-all-mib", d.SizeAllMiB, "decoded size in MiB at or below which all frames are cached")
	fs.Int("size-default-mib", d.SizeDefaultMiB, "decoded size in MiB at or below which the default window is used")
	fs.Int("default-window", d.DefaultWindow, "default cache window")
	fs.Int("low-window", d.LowWindow, "cache window for large files")
	fs.Int("memory-limit-mib", d.MemoryLimitMiB, "heap in use in MiB that signals memory pressure, 0 disables")
	fs.Duration("memory-poll", d.MemoryPoll, "heap sample interval")
	fs.String("metrics-addr", d.MetricsAddr, "serve prometheus metrics on this address")

	for _, k := range configKeys {
		// only fails for nil flags
		_ = a.v.BindPFlag(k, fs.Lookup(strings.ReplaceAll(k, "_", "-")))
	}
}

func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	cfgFile, err := homedir.Expand(a.cfgFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(a.v, cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(a.stderr, cfg.LogLevel)
	if f := a.v.ConfigFileUsed(); f != "" {
		a.log.Debugf("using config file %s", f)
	}
	return nil
}

// NewRootCommand creates the gifcat command, without a sub command it plays
// its arguments
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		v:      viper.New(),
	}

	rootCmd := &cobra.Command{
		Use:   "gifcat [FILE...]",
		Short: "Play animated GIFs in the terminal",
		Long: `gifcat plays animated GIFs in the terminal.

Frames are decoded in the background into a window of frames ahead of the
playback position. The window adapts to the decoded size of the file and
shrinks when memory runs low.

Configuration is read from $HOME/` + config.Name + `.yaml, ` + config.EnvPrefix + `_* environment
variables and flags.

Examples:
  gifcat cat.gif
  gifcat --renderer ansi --loops 2 cat.gif dog.gif
  gifcat info cat.gif`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.loadConfig,
		RunE:              a.play,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	a.addFlags(rootCmd)

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "play FILE...",
			Short: "Play files",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.play,
		},
		&cobra.Command{
			Use:   "info FILE...",
			Short: "Show frame, timing and cache information",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.info,
		},
	)

	return rootCmd
}

// Execute runs the root command and prints the error if any
func Execute(stdout, stderr io.Writer, args []string) error {
	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}
	return nil
}
