// ABOUTME: Development backend serving the in-memory chat server over HTTP
// ABOUTME: REST under /api and the push websocket at /ws, for running chat-tui locally

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arham771790/Chat-Frontend/internal/config"
	"github.com/arham771790/Chat-Frontend/internal/fakeserver"
	"github.com/arham771790/Chat-Frontend/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "chat-devserver",
	Short: "In-memory chat backend for local development",
	RunE:  runServer,
}

var (
	flagAddr      string
	flagSecret    string
	flagEcho      bool
	flagSeed      []string
	flagLogLevel  string
	flagLogFormat string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAddr, "addr", ":5000", "listen address")
	flags.StringVar(&flagSecret, "secret", os.Getenv("CHAT_DEV_SECRET"), "token signing secret (random when empty)")
	flags.BoolVar(&flagEcho, "echo", false, "also push newMessage to the sender")
	flags.StringSliceVar(&flagSeed, "seed", nil, "accounts to create at startup as name:email:password; repeat or comma-separated")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&flagLogFormat, "log-format", "text", "log format (text or json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	logger := logging.New(config.LoggingConfig{Level: flagLogLevel, Format: flagLogFormat}, os.Stderr)
	slog.SetDefault(logger)

	srv := fakeserver.New(fakeserver.Options{
		Secret:       []byte(flagSecret),
		EchoToSender: flagEcho,
		Logger:       logger,
	})
	defer srv.Close()

	for _, spec := range flagSeed {
		if err := seed(srv, spec); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:              flagAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving chat backend", "addr", flagAddr, "api", "/api", "push", "/ws")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// seed registers one name:email:password account.
func seed(srv *fakeserver.Server, spec string) error {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return fmt.Errorf("invalid --seed %q, want name:email:password", spec)
	}
	user, err := srv.Register(parts[0], parts[1], parts[2])
	if err != nil {
		return fmt.Errorf("seeding %s: %w", parts[1], err)
	}
	slog.Info("seeded account", "user_id", user.ID, "email", user.Email)
	return nil
}
