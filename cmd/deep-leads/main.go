package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-leads/pkg/config"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deep-leads",
		Short: "A terminal-based lead generation agent",
		Long: `deep-leads searches the web for people matching a who/what/where query and
extracts them as structured leads. It can also benchmark itself against a set of
verified samples.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			logger = cfg.NewLogger(os.Stderr)
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.AddCommand(newRunCmd(), newEvalCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
