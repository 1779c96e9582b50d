package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	rootCmd := &cobra.Command{
		Use:           "beerscannerd",
		Short:         "Beer menu scanner backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configPath, "path to the YAML configuration file")

	serveCmd := serveCommand(&configPath)
	rootCmd.AddCommand(
		serveCmd,
		checkCommand(&configPath),
		runOnceCommand(&configPath),
		exportHistoryCommand(&configPath),
	)
	// serve is the default command.
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}
