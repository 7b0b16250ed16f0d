package main

import (
	"github.com/spf13/cobra"

	"compress-service/pkg/config"
	"compress-service/pkg/logger"
)

// commandContext lazily loads configuration shared by every subcommand.
type commandContext struct {
	configFlag *string
	logLevel   *string
	cfg        *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if c.configFlag != nil && *c.configFlag != "" {
		cfg, err = config.Load(*c.configFlag)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevel string
	ctx := &commandContext{configFlag: &configFlag, logLevel: &logLevel}

	rootCmd := &cobra.Command{
		Use:           "compressctl",
		Short:         "Compress videos locally with the compress-service engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(logLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for engine output")

	rootCmd.AddCommand(newPresetsCommand())
	rootCmd.AddCommand(newProbeCommand(ctx))
	rootCmd.AddCommand(newCompressCommand(ctx))

	return rootCmd
}
