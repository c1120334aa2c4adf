package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
	log      zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{log: zerolog.Nop()}
	root := &cobra.Command{
		Use:           "aidispatch",
		Short:         "Route chat, embedding and vision calls to the best available AI backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", envStr("AIDISPATCH_LOG_LEVEL", ""),
		"Log level: debug|info|warn|error (defaults AIDISPATCH_LOG_LEVEL, then the config file, then info)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		opts.log = newLogger(opts.logLevel)
	}

	root.AddCommand(newServeCmd(opts), newStatusCmd(opts), newSwitchCmd(opts))
	return root
}

// newLogger builds the console logger. Unknown or empty levels mean info.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
