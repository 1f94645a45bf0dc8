package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/auth"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API, the /auth endpoint and the frontend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initDashboard(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		params, err := initParameterStore(ctx)
		if err != nil {
			return err
		}
		verifier := auth.NewVerifier(params, cfg.Auth.UsernameParam, cfg.Auth.PasswordParam)

		state := env.Dashboard.Reload(ctx)
		zap.L().Info("dashboard loaded",
			zap.String("source", cfg.Data.Source),
			zap.Int("companies", state.Total),
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: buildRouter(env.Dashboard, verifier, routerOptions{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				StaticDir:      cfg.Server.StaticDir,
				ExportFilename: cfg.Export.Filename,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
