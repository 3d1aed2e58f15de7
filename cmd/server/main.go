package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/healthcare-coordination/internal/config"
	"github.com/iliyamo/healthcare-coordination/internal/database"
	"github.com/iliyamo/healthcare-coordination/internal/handler"
	"github.com/iliyamo/healthcare-coordination/internal/middleware"
	"github.com/iliyamo/healthcare-coordination/internal/queue"
	"github.com/iliyamo/healthcare-coordination/internal/repository"
	"github.com/iliyamo/healthcare-coordination/internal/router"
	"github.com/iliyamo/healthcare-coordination/internal/service"
	"github.com/iliyamo/healthcare-coordination/internal/utils"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := setupLogger(cfg.IsDevelopment())
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			logger.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
	}

	issuer, err := utils.NewTokenIssuer(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		logger.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = service.NewAMQPPublisher(cfg.RabbitURL, logger)
		go func() {
			err := queue.StartRegistrationConsumer(rootCtx, cfg.RabbitURL, cfg.RegistrationsLog, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("registration consumer stopped", "error", err)
			}
		}()
	}

	authSvc, err := service.NewAuthService(repository.NewUserRepo(db), issuer, events, cfg.BcryptCost, logger)
	if err != nil {
		logger.Error("failed to create auth service", "error", err)
		os.Exit(1)
	}

	rlCfg := config.LoadRateLimitConfig()
	rdb, err := config.NewRedisClient()
	if err != nil {
		logger.Warn("redis unavailable, rate limiting disabled", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc, cfg.DBTimeout, logger), issuer,
		middleware.NewTokenBucket(rlCfg, rdb, logger))
	router.RegisterAdmin(e, handler.NewAdminHandler(authSvc, cfg.DBTimeout, logger), issuer)

	go func() {
		addr := ":" + cfg.Port
		logger.Info("starting server", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	authSvc.Drain()
}

func setupLogger(development bool) *slog.Logger {
	if development {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// requestLogger writes one structured line per request.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}
