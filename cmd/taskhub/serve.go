package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskhub/internal/api"
	"taskhub/internal/config"
	"taskhub/internal/metrics"
	"taskhub/pkg/apperr"
	"taskhub/pkg/notification"
	"taskhub/pkg/push"
	"taskhub/pkg/reminder"
	"taskhub/pkg/tracker"
	"taskhub/pkg/user"
)

var seedAdmin string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and real-time stream",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&seedAdmin, "seed-admin", "", "create this admin user if missing and print a token for it")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	m := metrics.New()
	hub := push.NewHub(
		push.WithBuffer(cfg.Push.Buffer),
		push.WithLogger(logger),
		push.WithDropHook(m.PushDropped),
	)
	m.Gauge("stream_connections", "Open real-time streams.", func() float64 {
		return float64(hub.Connections())
	})

	throttle, closeThrottle, err := newThrottle(ctx, cfg.Push, logger)
	if err != nil {
		return err
	}
	defer closeThrottle()

	notifier := notification.NewNotifier(
		be.repos.Notifications, be.repos.Tasks, be.repos.Projects, hub, throttle,
		notification.WithRecorder(m),
		notification.WithLogger(logger),
	)
	svc := tracker.New(be.uow, be.repos, notifier, hub,
		tracker.WithLogger(logger),
		tracker.WithCompletionGate(cfg.Dependencies.EnforceCompletion),
	)
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	if seedAdmin != "" {
		token, err := ensureAdmin(ctx, svc, be, auth, seedAdmin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "admin token for %s: %s\n", seedAdmin, token)
	}

	var reminderDone <-chan struct{}
	if cfg.Reminder.Enabled {
		job := reminder.New(be.repos.Tasks, be.repos.Notifications, notifier, cfg.Reminder.Lead,
			reminder.WithLogger(logger))
		if reminderDone, err = job.Start(ctx, cfg.Reminder.Schedule); err != nil {
			return err
		}
	}

	srv := api.New(svc, hub, auth, api.WithLogger(logger), api.WithMetrics(m.Handler()))
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", cfg.Server.Addr, "storage", cfg.Storage.Backend)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("server: shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server: shutdown", "err", err)
	}
	if reminderDone != nil {
		<-reminderDone
	}
	return nil
}

// newThrottle builds the configured push throttle and its cleanup.
func newThrottle(ctx context.Context, cfg config.Push, logger *slog.Logger) (notification.Throttle, func(), error) {
	switch cfg.ThrottleBackend {
	case "redis":
		client, err := push.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("push: redis throttle", "window", cfg.ThrottleWindow)
		return push.NewRedisThrottle(client, cfg.ThrottleWindow), func() { client.Close() }, nil
	case "", "memory":
		t := push.NewMemoryThrottle(cfg.ThrottleWindow, time.Now)
		go t.Run(ctx, 10*cfg.ThrottleWindow)
		return t, func() {}, nil
	}
	return nil, nil, fmt.Errorf("push: unknown throttle backend %q", cfg.ThrottleBackend)
}

// ensureAdmin registers username as an admin unless it already exists and
// mints a day-long token for it.
func ensureAdmin(ctx context.Context, svc *tracker.Service, be *backend, auth *api.Authenticator, username string) (string, error) {
	u, err := be.repos.Users.ByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		u, err = svc.RegisterUser(ctx, tracker.NewUser{Username: username, Role: user.RoleAdmin})
	}
	if err != nil {
		return "", err
	}
	if u.Role != user.RoleAdmin {
		return "", fmt.Errorf("seed admin: %s exists with role %s", username, u.Role)
	}
	return auth.Mint(u, 24*time.Hour)
}
