package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kartoza/price-gateway/internal/server"
)

// portAttempts is how many consecutive ports serve tries
const portAttempts = 10

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP prediction gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		// Find an available port (try up to 10 ports starting from the requested one)
		availablePort, err := findAvailablePort(cfg.Port, portAttempts)
		if err != nil {
			return err
		}
		if availablePort != cfg.Port {
			logger.Warn("Port in use, using another",
				zap.Int("requested", cfg.Port),
				zap.Int("port", availablePort),
			)
			cfg.Port = availablePort
		}

		logger.Info("Price gateway starting",
			zap.String("version", cfg.Version),
			zap.Int("port", cfg.Port),
			zap.String("model", cfg.ModelPath),
			zap.String("history_driver", cfg.HistoryDriver),
		)

		srv, err := server.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("create server: %w", err)
		}

		// Graceful shutdown on SIGINT/SIGTERM
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stop)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		return waitForShutdown(srv, errCh, stop, logger)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port (overrides PORT)")
	serveCmd.Flags().String("history-driver", "", "Prediction history driver: sqlite3, postgres or none (overrides HISTORY_DRIVER)")
	serveCmd.Flags().String("history-dsn", "", "Prediction history data source (overrides HISTORY_DSN)")
}

// stopper is the part of the server the shutdown loop needs
type stopper interface {
	Stop() error
}

// waitForShutdown blocks until the server exits on its own or a signal
// arrives, then stops it. Stop failures are logged on both paths.
func waitForShutdown(srv stopper, errCh <-chan error, stop <-chan os.Signal, logger *zap.Logger) error {
	select {
	case err := <-errCh:
		if stopErr := srv.Stop(); stopErr != nil {
			logger.Error("Error during shutdown", zap.Error(stopErr))
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		if err := srv.Stop(); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
			return err
		}
		return nil
	}
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
