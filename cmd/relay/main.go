// Package main is the entrypoint for the support relay: it wires the
// Telegram transport, the SQLite store, and the agent dashboard API into a
// single process and supervises both loops until shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "github.com/zeffr-it/go-support-relay/docs"
	"github.com/zeffr-it/go-support-relay/internal/bot"
	"github.com/zeffr-it/go-support-relay/internal/config"
	"github.com/zeffr-it/go-support-relay/internal/domain"
	httpapi "github.com/zeffr-it/go-support-relay/internal/http"
	"github.com/zeffr-it/go-support-relay/internal/notify"
	"github.com/zeffr-it/go-support-relay/internal/observability"
	"github.com/zeffr-it/go-support-relay/internal/repo"
	"github.com/zeffr-it/go-support-relay/internal/services"
	"github.com/zeffr-it/go-support-relay/internal/session"
	"github.com/zeffr-it/go-support-relay/internal/sysutil"
)

const version = "1.0.0"

// @title           Support Relay Dashboard API
// @version         1.0
// @description     Agent-facing REST API for the Telegram support relay.
// @BasePath        /api/v1
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

// run builds every component, starts the HTTP server and the Telegram long
// poller under one errgroup, and blocks until a signal or a fatal error.
// It returns the process exit code.
func run(ctx context.Context) int {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize tracing")
		return 1
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
		return 1
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	if err := repo.AutoMigrate(db); err != nil {
		log.Error().Err(err).Msg("schema migration failed")
		return 1
	}
	if err := seedAdmin(ctx, db, cfg.Admin); err != nil {
		log.Error().Err(err).Msg("failed to seed admin login")
		return 1
	}

	events := newPublisher(cfg)
	defer events.Close()

	// Application services.
	contacts := services.NewContactService(db)
	convs := services.NewConversationService(db)
	msgs := services.NewMessageService(db)
	support := services.NewSupportService(contacts, convs, msgs, events)
	contract := services.NewContractService(
		session.NewStore(), contacts, convs, msgs,
		cfg.Contract.ContractURL, cfg.Contract.PrivacyURL,
	)

	botSvc, err := bot.New(cfg.Telegram.Token, contacts, support, contract, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("failed to create Telegram bot")
		return 1
	}
	bridge := services.NewBridge(db, botSvc)

	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, bridge, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("dashboard API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Msg("telegram relay polling")
		return botSvc.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(c)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("relay stopped with error")
		return 1
	}

	log.Info().Msg("relay stopped gracefully")
	return 0
}

// setupLogging configures the global zerolog output and level.
func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)
}

// seedAdmin creates the initial dashboard agent if it does not exist yet.
func seedAdmin(ctx context.Context, db *gorm.DB, admin config.AdminConfig) error {
	_, err := repo.GetStaffUserByUsername(ctx, db, admin.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	var u domain.StaffUser
	if err := u.SetPassword(admin.Password); err != nil {
		return err
	}
	if _, err := repo.CreateStaffUser(ctx, db, admin.Username, admin.Email, u.PasswordHash, true); err != nil {
		return err
	}
	log.Info().Str("username", admin.Username).Msg("seeded admin agent")
	return nil
}

// newPublisher picks the AMQP publisher when a broker URL is configured,
// otherwise the drop-everything fallback.
func newPublisher(cfg config.Config) notify.Publisher {
	if cfg.AMQP.URL == "" {
		log.Info().Msg("no AMQP_URL configured, agent notifications disabled")
		return notify.NewFallback()
	}
	pub, err := notify.New(cfg.AMQP.URL, cfg.AMQP.Exchange, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("broker unavailable, agent notifications disabled")
		return notify.NewFallback()
	}
	log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("agent notifications enabled")
	return pub
}
