// Command goguardgan trains an AnoGAN detector on CSV or pcap data and
// writes per-sample anomaly scores.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	envConfig   = "GOGUARDGAN_CONFIG"
	envLogLevel = "GOGUARDGAN_LOG_LEVEL"
)

type globalOptions struct {
	logLevel  string
	logFormat string
	logger    *logrus.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "goguardgan",
		Short:         "AnoGAN anomaly detection for tabular and packet data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			if !cmd.Flags().Changed("log-level") {
				if level := os.Getenv(envLogLevel); level != "" {
					opts.logLevel = level
				}
			}

			logger, err := newLogger(opts.logLevel, opts.logFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text|json")

	rootCmd.AddCommand(
		newDetectCmd(opts),
		newConfigCmd(),
	)

	return rootCmd
}
