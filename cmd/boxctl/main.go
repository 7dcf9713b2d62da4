package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "boxctl",
		Short:         "Box rental operations tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config/config.dev.yaml", "Path to configuration file")

	root.AddCommand(
		migrateCmd(),
		priceCmd(),
		fragmentCmd(),
		tokenCmd(),
		boxCmd(),
	)
	return root
}
