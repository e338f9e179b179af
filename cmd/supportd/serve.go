package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/wincLei/customer-service-sub000/internal/config"
	"github.com/wincLei/customer-service-sub000/internal/db"
	"github.com/wincLei/customer-service-sub000/internal/events"
	"github.com/wincLei/customer-service-sub000/internal/gateway"
	"github.com/wincLei/customer-service-sub000/internal/handlers"
	"github.com/wincLei/customer-service-sub000/internal/history"
	"github.com/wincLei/customer-service-sub000/internal/logger"
	"github.com/wincLei/customer-service-sub000/internal/outbound"
	"github.com/wincLei/customer-service-sub000/internal/provision"
	"github.com/wincLei/customer-service-sub000/internal/server"
	"github.com/wincLei/customer-service-sub000/internal/store"
	"github.com/wincLei/customer-service-sub000/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideStore,
			provideGatewayClient,
			events.NewHub,
			provideWebhookIngestor,
			provideOutboundService,
			provideProvisionService,
			provideConsumer,
			provideSweeper,
			provideHistoryService,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideMessagesHandler),
			provideServerHandler(provideTokenHandler),
			provideServerHandler(provideHistoryHandler),
			provideServerHandler(provideEventsHandler),
			provideServer,
		),
		fx.Invoke(
			startConsumer,
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideStore(log *slog.Logger, conn *pgxpool.Pool) *store.Store {
	return store.New(log, conn)
}

func provideGatewayClient(log *slog.Logger, cfg config.Config) *gateway.Client {
	return gateway.NewClient(log, gateway.Config{
		BaseURL:  cfg.Gateway.BaseURL,
		Token:    cfg.Gateway.Token,
		Timeout:  time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
		TokenTTL: time.Duration(cfg.Gateway.TokenTTLMinutes) * time.Minute,
	})
}

func provideWebhookIngestor(log *slog.Logger, st *store.Store, hub *events.Hub) *webhook.Ingestor {
	return webhook.NewIngestor(log, st, hub)
}

func provideOutboundService(log *slog.Logger, st *store.Store, gw *gateway.Client) *outbound.Service {
	return outbound.NewService(log, st, gw)
}

func provideProvisionService(log *slog.Logger, st *store.Store, gw *gateway.Client) *provision.Service {
	return provision.NewService(log, st, gw)
}

func provideConsumer(log *slog.Logger, svc *provision.Service, st *store.Store, cfg config.Config) *provision.Consumer {
	return provision.NewConsumer(log, svc, st, cfg.AMQP)
}

func provideSweeper(log *slog.Logger, svc *provision.Service, st *store.Store, cfg config.Config) *provision.Sweeper {
	return provision.NewSweeper(log, svc, st, cfg.Provision)
}

func provideHistoryService(log *slog.Logger, gw *gateway.Client) *history.Service {
	return history.NewService(log, gw)
}

func provideWebhookHandler(log *slog.Logger, ingestor *webhook.Ingestor) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, ingestor)
}

func provideMessagesHandler(log *slog.Logger, sender *outbound.Service, st *store.Store) *handlers.MessagesHandler {
	return handlers.NewMessagesHandler(log, sender, st)
}

func provideTokenHandler(log *slog.Logger, gw *gateway.Client, st *store.Store) *handlers.TokenHandler {
	return handlers.NewTokenHandler(log, gw, st)
}

func provideHistoryHandler(log *slog.Logger, svc *history.Service) *handlers.HistoryHandler {
	return handlers.NewHistoryHandler(log, svc)
}

func provideEventsHandler(log *slog.Logger, hub *events.Hub) *handlers.EventsHandler {
	return handlers.NewEventsHandler(log, hub)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.ServerHandlers)
}

func startConsumer(lc fx.Lifecycle, logger *slog.Logger, consumer *provision.Consumer) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := consumer.Start(ctx); err != nil {
				// The HTTP surface still works without the broker.
				logger.Error("visitor-created consumer unavailable", slog.Any("error", err))
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return consumer.Stop(stopCtx)
		},
	})
}

func startSweeper(lc fx.Lifecycle, sweeper *provision.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return sweeper.Start() },
		OnStop:  func(ctx context.Context) error { sweeper.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
