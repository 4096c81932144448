package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/procdoc/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the review scheduler",
	Long: `Starts the JSON API, the SSE event stream and the background review scheduler.

SIGHUP reloads settings.json: log level, policies and cookie settings apply
immediately; other changes are logged and need a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), cmd)
	},
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.reviews.RecoverMissed(ctx); err != nil {
		logger.Warn("recovering missed reviews failed", slog.String("error", err.Error()))
	}
	if err := a.reviews.Start(ctx); err != nil {
		return err
	}

	handler, err := a.apiHandler(cfg)
	if err != nil {
		return err
	}
	swapper := newHandlerSwapper(handler)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:           swapper,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if err := writePIDFile(); err != nil {
		logger.Warn("could not write pid file", slog.String("error", err.Error()))
	}
	defer os.Remove(pidPath())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("procdoc listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-hup:
			reload(a, swapper, cmd)
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

// reload re-reads configuration and applies what can change without a restart.
func reload(a *app, swapper *handlerSwapper, cmd *cobra.Command) {
	next, err := loadConfig(configPath)
	if err == nil {
		err = applyFlags(&next, cmd.Flags())
	}
	if err != nil {
		logger.Error("config reload failed", slog.String("error", err.Error()))
		return
	}

	d := diffConfigs(cfg, next)
	if d.LogLevelChanged {
		logLevel.Set(logging.ParseLevel(next.LogLevel))
		cfg.LogLevel = next.LogLevel
		logger.Info("log level changed", slog.String("level", next.LogLevel))
	}
	if d.HandlerChanged {
		live := cfg
		live.Policies, live.CookieName, live.CookieSecure = next.Policies, next.CookieName, next.CookieSecure
		h, err := a.apiHandler(live)
		if err != nil {
			logger.Error("rebuilding api handler failed; keeping previous policies", slog.String("error", err.Error()))
		} else {
			swapper.Swap(h)
			cfg = live
			logger.Info("api handler reloaded")
		}
	}
	// cfg keeps describing the running server, so these are reported on every reload until restart.
	if len(d.RestartNeeded) > 0 {
		logger.Warn("config changes need a restart", slog.Any("fields", d.RestartNeeded))
	}
}

func writePIDFile() error {
	if err := os.MkdirAll(procdocDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}
