package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/moltdeck/moltdeck/internal/config"
	"github.com/moltdeck/moltdeck/internal/server"
)

var (
	flagConfig      string
	flagAddr        string
	flagCredentials string
)

var rootCmd = &cobra.Command{
	Use:   "moltdeck",
	Short: "Local web dashboard for Moltbook agent identities",
	Long: `moltdeck is a single-user web dashboard for Moltbook agents.

It keeps agent credentials in a local JSON file, tracks which identity is
currently active, and proxies posting and stats lookups to the platform.
Start it and open the printed URL in a browser.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "config file (default ~/.config/moltdeck/config.yaml)")
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	rootCmd.Flags().StringVar(&flagCredentials, "credentials", "", "credential store file (overrides config)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	// Flags beat the file.
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	if flagCredentials != "" {
		cfg.Storage.CredentialsFile = flagCredentials
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	credentialsPath, err := cfg.CredentialsPath()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		TemplateDir:     cfg.Server.TemplateDir,
		StaticDir:       cfg.Server.StaticDir,
		CredentialsFile: credentialsPath,
		APIBaseURL:      cfg.Platform.BaseURL,
		RequestTimeout:  cfg.RequestTimeout(),
	}, logger)
	if err != nil {
		return err
	}

	return srv.Start()
}
