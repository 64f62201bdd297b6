package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/denysvitali/rclone-api-go/pkg/config"
	"github.com/denysvitali/rclone-api-go/pkg/server"
	"github.com/denysvitali/rclone-api-go/pkg/telemetry"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the rclone API server",
	Long: `Start the HTTP server exposing /upload_encrypted, /delete_file and
/list_encrypted_files. The bearer token is read from RCLONE_API_BEARER_TOKEN.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "0.0.0.0", "Address to listen on")
	serverCmd.Flags().IntP("port", "p", 5002, "Port to listen on")
	serverCmd.Flags().String("bearer-token", "", "Bearer token clients must present (prefer RCLONE_API_BEARER_TOKEN)")
	serverCmd.Flags().Bool("enable-mcp", false, "Expose copy/delete/list as MCP tools under /mcp")
	serverCmd.Flags().String("remote", "encrypted", "rclone remote every path is namespaced under")
	serverCmd.Flags().String("rclone-binary", "rclone", "Path to the rclone binary")
	serverCmd.Flags().String("rclone-config", "", "rclone config file passed as --config")
	serverCmd.Flags().Duration("timeout", 0, "Timeout for a single rclone invocation (0 disables)")
	serverCmd.Flags().Uint("retries", 0, "Retries for a failed rclone invocation")
	serverCmd.Flags().Bool("empty-listing-is-error", true, "Answer 500 when the remote listing is empty")
	serverCmd.Flags().Bool("enable-telemetry", false, "Enable OpenTelemetry tracing")
	serverCmd.Flags().String("otel-endpoint", "", "OpenTelemetry endpoint (if empty, uses auto-export)")

	_ = viper.BindPFlag("server.host", serverCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serverCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.bearer_token", serverCmd.Flags().Lookup("bearer-token"))
	_ = viper.BindPFlag("server.enable_mcp", serverCmd.Flags().Lookup("enable-mcp"))
	_ = viper.BindPFlag("rclone.remote", serverCmd.Flags().Lookup("remote"))
	_ = viper.BindPFlag("rclone.binary", serverCmd.Flags().Lookup("rclone-binary"))
	_ = viper.BindPFlag("rclone.config_file", serverCmd.Flags().Lookup("rclone-config"))
	_ = viper.BindPFlag("rclone.timeout", serverCmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("rclone.retries", serverCmd.Flags().Lookup("retries"))
	_ = viper.BindPFlag("rclone.empty_listing_is_error", serverCmd.Flags().Lookup("empty-listing-is-error"))
	_ = viper.BindPFlag("telemetry.enabled", serverCmd.Flags().Lookup("enable-telemetry"))
	_ = viper.BindPFlag("telemetry.endpoint", serverCmd.Flags().Lookup("otel-endpoint"))
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := GetLogger()
	logger.Info("Starting rclone API server")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Telemetry.Enabled {
		logger.Info("Initializing OpenTelemetry")
		cleanup, err := telemetry.Initialize(cfg.Telemetry, logger)
		if err != nil {
			logger.Warnf("Failed to initialize telemetry: %v", err)
		} else {
			defer cleanup()
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-interrupt:
		logger.Infof("Received signal %v, shutting down...", sig)

		// In-flight transfers get this long to finish
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
			return err
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}
