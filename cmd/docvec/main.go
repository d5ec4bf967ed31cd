package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/config"
	logpkg "github.com/kailas-cloud/docvec/internal/logger"
	"github.com/kailas-cloud/docvec/internal/version"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	env        string
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func main() {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "docvec",
		Short:         "Embed JSON documents and run vector search over them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.env, "env", "e", config.GetEnv(), "Environment name (local, dev, prod)")
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default config/<env>.yaml)")

	rootCmd.AddCommand(
		newEmbedCmd(a),
		newSearchCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load(a.env)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a.logger, err = logpkg.NewLogger(a.env, a.cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
