package main

import (
	"github.com/spf13/cobra"

	"github.com/feedwatch/feedwatch/internal/config"
	"github.com/feedwatch/feedwatch/internal/log"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "feedwatch",
		Short:         "Watch a live server-sent message feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default ./feedwatch.yaml) [env: FEEDWATCH_CONFIG_DEFAULT_PATH]")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	watch := newWatchCmd(flags)
	root.AddCommand(watch, newServeCmd(flags))

	// Bare "feedwatch" runs the watcher.
	root.Flags().AddFlagSet(watch.Flags())
	root.RunE = watch.RunE
	return root
}

// loadConfig applies the config file and env vars, then the persistent flags.
func (f *rootFlags) loadConfig() (config.Config, string, error) {
	cfg, path, err := config.Load(log.Nop(), f.configPath)
	if err != nil {
		return cfg, path, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, path, nil
}
