package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/retiscan/retiscan/internal/config"
	"github.com/retiscan/retiscan/internal/remote"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "retiscan",
	Short: "Retinopathy screening client",
	Long: "Command-line client for the retinopathy screening workflow: " +
		"capture an eye image, send it for remote classification, and browse " +
		"the detection history and patient registry.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(patientsCmd)
	rootCmd.AddCommand(stubCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func newAPIClient(cfg *config.Config) *remote.Client {
	opts := []remote.ClientOption{
		remote.WithTimeout(time.Duration(cfg.API.TimeoutSeconds) * time.Second),
	}
	if cfg.API.Token != "" {
		opts = append(opts, remote.WithToken(cfg.API.Token))
	}
	return remote.NewClient(cfg.API.BaseURL, opts...)
}
