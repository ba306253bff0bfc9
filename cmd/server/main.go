// @title        Admin Console BFF
// @version      1.0
// @description  Session and authorization gate in front of the admin dashboard.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/admin-console/internal/api"
	"github.com/99minutos/admin-console/internal/core/ports"
	"github.com/99minutos/admin-console/internal/core/service"
	"github.com/99minutos/admin-console/internal/infrastructure/backend"
	"github.com/99minutos/admin-console/internal/infrastructure/config"
	"github.com/99minutos/admin-console/internal/infrastructure/db/mongo"
	"github.com/99minutos/admin-console/internal/infrastructure/db/redis"
	"github.com/99minutos/admin-console/internal/infrastructure/queue"
	"github.com/99minutos/admin-console/internal/infrastructure/session"
	"github.com/99minutos/admin-console/pkg/logger"
)

const appName = "admin-console"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "admin-console: %v\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			debug.PrintStack()
			returnError = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	displayAppname(appName)
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: appName,
	})

	// --- Optional stores ---
	var rdb *goredis.Client
	var revocations ports.RevocationList
	if cfg.Redis.Addr != "" {
		rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		revocations = redis.NewRevocationList(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("revocation list: redis")
	} else {
		memory := session.NewMemoryRevocationList()
		defer memory.Stop()
		revocations = memory
		log.Warn().Msg("revocation list: in-memory, logouts are not shared between instances")
	}

	var db *mongodriver.Database
	var auditRepo ports.AuditRepository
	if cfg.Mongo.URI != "" {
		client, database, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		repo := mongo.NewAuditRepository(database, cfg.Mongo.AuditRetention)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return err
		}
		db, auditRepo = database, repo
		log.Info().Str("db", cfg.Mongo.Database).Msg("audit trail: mongodb")
	} else {
		log.Warn().Msg("audit trail: log only")
	}

	// --- Audit pipeline ---
	auditLog := logger.Component("audit")
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, service.NewAuditService(auditRepo, auditLog), auditLog)
	// Workers outlive the signal context so Close can drain the queues.
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	// --- Session core ---
	codec, err := session.NewJWTCodec([]byte(cfg.Session.Secret))
	if err != nil {
		return err
	}
	store := service.NewSessionStore(codec, revocations, cfg.Session.TTL, logger.Component("session"))
	client := backend.NewClient(backend.Config{
		APIURL:     cfg.Backend.APIURL,
		ProfileURL: cfg.ProfileEndpoint(),
		Timeout:    cfg.Backend.Timeout,
	})
	authService := service.NewAuthService(client, store, dispatcher, logger.Component("auth"))
	gate := service.NewRouteGate(cfg.Gate.PublicRoutes, cfg.Gate.Redirect)

	e, err := api.NewRouter(api.Dependencies{
		Config:      cfg,
		Log:         logger.Component("http"),
		AuthService: authService,
		Sessions:    store,
		Gate:        gate,
		Transport:   client.HTTPClient().Transport,
		Mongo:       db,
		Redis:       rdb,
	})
	if err != nil {
		return err
	}

	server := &http.Server{Addr: ":" + cfg.Port, Handler: e}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(server, log) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(server, cfg, log)
}

func listenAndServe(server *http.Server, log zerolog.Logger) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe: %w", err)
	}
	return nil
}

func shutdown(server *http.Server, cfg *config.Config, log zerolog.Logger) error {
	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
