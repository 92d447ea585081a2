package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medlab/medlab/internal/config"
	"github.com/medlab/medlab/internal/domain/analysis"
	"github.com/medlab/medlab/internal/domain/catalog"
	"github.com/medlab/medlab/internal/domain/identity"
	"github.com/medlab/medlab/internal/domain/patient"
	"github.com/medlab/medlab/internal/platform/apperror"
	"github.com/medlab/medlab/internal/platform/auth"
	"github.com/medlab/medlab/internal/platform/db"
	"github.com/medlab/medlab/internal/platform/middleware"
	"github.com/medlab/medlab/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medlab-server",
		Short: "Medical laboratory API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the laboratory API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// newEcho builds the server with its global middleware. Trailing slashes
// are normalized away so /api/patients/ and /api/patients are the same
// route.
func newEcho(logger zerolog.Logger, corsOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger)

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: corsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	return e
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	jwtCfg := auth.JWTConfig{
		SigningKey: []byte(cfg.JWTSigningKey),
		Issuer:     cfg.JWTIssuer,
		TTL:        cfg.JWTTTL(),
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Notification pipeline. With Redis configured, completion notices ride
	// a queue drained by a background worker; without it they stay
	// in-process.
	templates := notification.NewTemplateEngine()
	mailer := notification.NewMailer(notification.NewLogSender(logger), templates, cfg.MailFrom)

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	var dispatcher notification.Dispatcher
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		logger.Info().Msg("connected to redis")

		dispatcher = notification.NewRedisDispatcher(client, notification.DefaultQueueKey)
		worker := notification.NewWorker(client, notification.DefaultQueueKey, mailer, cfg.NotifyRetries, logger)
		go worker.Run(workerCtx)
	} else {
		ch := notification.NewChannelDispatcher(64)
		dispatcher = ch
		go ch.Drain(workerCtx, mailer, logger)
		logger.Info().Msg("redis not configured, using in-process notifications")
	}

	// Repositories and services
	userRepo := identity.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	typeRepo := catalog.NewRepoPG(pool)
	analysisRepo := analysis.NewRepoPG(pool)

	identitySvc := identity.NewService(userRepo, jwtCfg)
	patientSvc := patient.NewService(patientRepo, identitySvc, mailer, logger)
	catalogSvc := catalog.NewService(typeRepo)
	analysisSvc := analysis.NewService(analysisRepo, patientRepo, typeRepo, dispatcher, logger)

	// Echo server
	e := newEcho(logger, cfg.CORSOrigins)

	// API groups. Login, registration and the service catalog are open;
	// everything on the authenticated group requires a token.
	open := e.Group("/api")
	public := e.Group("/api/public")
	api := e.Group("/api")
	api.Use(auth.JWTMiddleware(jwtCfg))

	identity.NewHandler(identitySvc).RegisterRoutes(api, open)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	catalog.NewHandler(catalogSvc).RegisterRoutes(api, public)
	analysis.NewHandler(analysisSvc).RegisterRoutes(api)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	workerCancel()
	logger.Info().Msg("server stopped")
	return nil
}
