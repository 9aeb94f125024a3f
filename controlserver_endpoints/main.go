package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded, using the process environment")
	}

	logger := newLogger()
	defer logger.Sync()

	serve := serveCmd(logger)
	rootCmd := &cobra.Command{
		Use:   "neuron_trainer",
		Short: "train a single sigmoid unit interactively or from the command line",
		RunE:  serve.RunE,
	}
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(trainCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getEnv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
