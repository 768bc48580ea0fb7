package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	config := viper.New()
	config.SetEnvPrefix("kansen")
	config.AutomaticEnv()

	if err := godotenv.Load(); err != nil {
		log.Debug("could not load .env file", "err", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: false,
	})

	Execute(ctx, logger, config)
}

func newRootCommand(logger *log.Logger, config *viper.Viper) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "kansen",
		Short: "Agent-based SEIR epidemic simulator",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logger.SetLevel(log.DebugLevel)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Include debug logs")

	cmd.AddCommand(newRunCommand(logger, config))
	cmd.AddCommand(newSweepCommand(logger, config))

	return cmd
}

func Execute(ctx context.Context, logger *log.Logger, config *viper.Viper) {
	root := newRootCommand(logger, config)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Fatal(err)
	}
}
