package main

import (
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSweepCommand(logger *log.Logger, config *viper.Viper) *cobra.Command {
	var (
		sc    scenario
		times uint
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the scenario repeatedly with fresh random seeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			for range times {
				seed1 := rand.Uint64()
				seed2 := rand.Uint64()

				err := runScenario(cmd.Context(), logger, sc, seed1, seed2, config.GetString("db"))
				if err != nil {
					return err
				}

				if err := cmd.Context().Err(); err != nil {
					return err
				}
			}
			return nil
		},
	}

	addScenarioFlags(cmd, &sc)
	cmd.Flags().UintVar(&times, "times", 10, "Amount of runs")

	return cmd
}
