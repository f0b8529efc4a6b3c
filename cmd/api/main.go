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

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/buildingpro/sentinel/internal/auth"
	"github.com/buildingpro/sentinel/internal/challenge"
	"github.com/buildingpro/sentinel/internal/config"
	"github.com/buildingpro/sentinel/internal/database"
	"github.com/buildingpro/sentinel/internal/handlers"
	"github.com/buildingpro/sentinel/internal/repositories"
	"github.com/buildingpro/sentinel/internal/routes"
	"github.com/buildingpro/sentinel/internal/services"
	"github.com/buildingpro/sentinel/migrations"
	pkghttp "github.com/buildingpro/sentinel/pkg/http"
	"github.com/buildingpro/sentinel/pkg/logger"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := migrate(cfg); err != nil {
		return err
	}

	pool, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	sender, err := services.NewSender(ctx, &cfg.Delivery, log)
	if err != nil {
		return err
	}

	accountRepo := repositories.NewAccountRepository(pool)
	attemptRepo := repositories.NewAttemptRepository(pool)
	codeRepo := repositories.NewCodeRepository(pool)
	tokenRepo := repositories.NewTokenRepository(pool)

	audit := logger.NewAuditLogger(log)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	challenges := challenge.NewStore(redisClient, challenge.TextRenderer{}, cfg.Auth.ChallengeTTL)

	accountSvc := services.NewAccountService(accountRepo, cfg.Protection)
	guardSvc := services.NewGuardService(attemptRepo, cfg.Protection, log)
	codeSvc := services.NewCodeService(codeRepo, sender, cfg.Auth.LoginCodeTTL)
	tokenSvc := services.NewTokenService(tokenRepo, cfg.Auth.SessionToken, cfg.Auth.ResetToken)
	authSvc := services.NewAuthService(
		accountSvc, codeSvc, tokenSvc, guardSvc, challenges,
		sender, tokenManager, audit, log)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	router := routes.New(routes.Deps{
		Auth:        handlers.NewAuthHandler(authSvc, challenges, ipConfig, cfg.Server.EchoTokens, log),
		Health:      handlers.NewHealthHandler(pool),
		Maintenance: handlers.NewMaintenanceHandler(tokenRepo, attemptRepo, log),
		Tokens:      tokenManager,
		IPConfig:    ipConfig,
		Logger:      log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", server.Addr), slog.String("env", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func migrate(cfg *config.Config) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	return goose.Up(db, ".")
}
