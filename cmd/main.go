package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tisannai/ringer/pkg"
	"github.com/tisannai/ringer/pkg/buildsys/cmd"
	"github.com/tisannai/ringer/pkg/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tool",
	Short: "Build tools for ringer",
	Long: `This command bundles the tools used to build, test and ship the ringer library.
This includes the task runner, portable file helpers, packaging and a stress test.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		// the config is optional, a missing project root only means there's no ringer.toml
		projectRoot, _ := pkg.GetProjectRoot()

		var err error
		cfg, err = config.Load(projectRoot)
		if err != nil {
			return err
		}

		flags := c.Flags()
		if flags.Changed("log-json") {
			cfg.Log.JSON, _ = flags.GetBool("log-json")
		}
		if flags.Changed("log-level") {
			cfg.Log.Level, _ = flags.GetString("log-level")
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		log.Logger = cmd.NewLogger(os.Stderr, cfg.Log.JSON, cfg.LogLevel())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("log-json", false, "print JSON lines instead of colored messages")
	rootCmd.PersistentFlags().String("log-level", "info", "minimum level of printed messages")

	rootCmd.AddCommand(cmd.RootCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
