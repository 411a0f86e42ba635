package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/bibwatch/internal/config"
	"github.com/MeKo-Tech/bibwatch/internal/version"
)

var (
	configLoader *config.Loader
	globalConfig *config.Config
	cfgFile      string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bibwatch",
	Short: "Detect bib numbers in event photos and upload them",
	Long: `bibwatch watches a directory for race photos, finds the bib numbers on
them and uploads every number with the photo's capture time to a timing
service. Photos without a readable number are queued for manual review in
a small web interface.

Examples:
  bibwatch serve --dir /srv/photos --category finish
  bibwatch detect photo.jpg other/ -t 4 -o out
  bibwatch export -o results.xlsx
  bibwatch config init`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg))
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for tests.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

// ResetFlags restores every flag of every command to its default. Flag
// values otherwise persist between Execute calls in one process.
func ResetFlags() {
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		reset := func(f *pflag.Flag) {
			if !f.Changed {
				return
			}
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/bibwatch, /etc/bibwatch)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("category", "finish", "upload category: car or finish")
	pf.String("store", "", "results file for the file store")

	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("category", pf.Lookup("category"))
	_ = viper.BindPFlag("store.path", pf.Lookup("store"))
}

// loadConfig reads configuration on every command run. Flags bound to the
// global viper instance are part of the result.
func loadConfig() (*config.Config, error) {
	configLoader = config.NewLoader()
	cfg, err := configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	globalConfig = cfg
	return cfg, nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return globalConfig
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
