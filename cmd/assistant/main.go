// Command assistant runs the study assistant API and its operator tools.
//
//	@title						Study Assistant API
//	@version					1.0
//	@description				Ho Chi Minh Thought tutor chat, course document uploads and the teacher question registry.
//	@BasePath					/api
//	@securityDefinitions.apikey	UserID
//	@in							header
//	@name						X-User-ID
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-study-assistant/internal/config"
	"github.com/tbourn/go-study-assistant/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "assistant: %v\n", err)
		os.Exit(1)
	}
}

var envFile string

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assistant",
		Short: "Study assistant API server and tools",
		Long: `assistant serves the study assistant HTTP API (tutor chat, document uploads,
teacher questions) and bundles a few operator commands for migrations, local
text extraction and one-off chat turns.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside development.
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newExtractCmd(),
		newAskCmd(),
	)
	return cmd
}

// loadConfig reads the environment and installs the process logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stderr, cfg.LogPretty, cfg.OTEL.ServiceName)
	return cfg, nil
}
