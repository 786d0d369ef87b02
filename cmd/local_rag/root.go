package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"local_rag/internal/app"
	"local_rag/internal/config"
	"local_rag/internal/store"
)

var (
	envFile   string
	dataDir   string
	namespace string

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "local_rag",
	Short: "Local retrieval over a directory of documents",
	Long: `Chunks the documents of a directory into overlapping windows, embeds
them and keeps them in a local vector store. Questions are answered with the
most similar chunks.

Configuration comes from the environment and an optional .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: openApp,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load (optional)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "document directory (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "index of one user, isolated from the others (overrides NAMESPACE)")
}

func openApp(cmd *cobra.Command, args []string) error {
	// the .env file is optional
	_ = godotenv.Load(envFile)

	if dataDir != "" {
		os.Setenv("DATA_DIR", dataDir)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if namespace != "" {
		cfg.Namespace = namespace
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Vector store: %s (%s, collection %s)", cfg.StorePath, cfg.StoreBackend, store.CollectionName(cfg.Collection, cfg.Namespace))

	a, err := app.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	if err := a.Init(cmd.Context()); err != nil {
		a.Close()
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	application = a
	return nil
}

// checkEmbedder runs before the commands that embed text.
func checkEmbedder(cmd *cobra.Command, args []string) error {
	return application.CheckEmbedder(cmd.Context())
}

func closeApp() error {
	if application == nil {
		return nil
	}
	err := application.Close()
	application = nil
	return err
}
