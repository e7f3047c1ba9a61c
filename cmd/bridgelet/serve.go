package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gocql/gocql"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/bridgelet/bridgelet/internal/chatroom"
	"github.com/bridgelet/bridgelet/internal/config"
	"github.com/bridgelet/bridgelet/internal/content"
	"github.com/bridgelet/bridgelet/internal/coreapi"
	"github.com/bridgelet/bridgelet/internal/db"
	"github.com/bridgelet/bridgelet/internal/events"
	"github.com/bridgelet/bridgelet/internal/handlers"
	"github.com/bridgelet/bridgelet/internal/identity"
	"github.com/bridgelet/bridgelet/internal/logger"
	"github.com/bridgelet/bridgelet/internal/objectstore"
	"github.com/bridgelet/bridgelet/internal/relay"
	"github.com/bridgelet/bridgelet/internal/scylla"
	"github.com/bridgelet/bridgelet/internal/server"
	"github.com/bridgelet/bridgelet/internal/telegram"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideScyllaSession,
			provideEventPublisher,
			provideCoreClient,
			provideObjectStore,
			provideSender,
			provideClassifier,
			provideIdentityResolver,
			provideRoomStore,
			provideRoomService,
			provideMessageLog,
			provideRelayService,
			providePingHandler,
			provideWebhookHandler,
			provideOutboundHandler,
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
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

func provideScyllaSession(lc fx.Lifecycle, cfg config.Config) (*gocql.Session, error) {
	session, err := scylla.NewSession(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("scylla connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { session.Close(); return nil }})
	return session, nil
}

func provideEventPublisher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (events.Publisher, error) {
	if cfg.Events.URL == "" {
		log.Warn("event broker not configured, fan-out failures will only be logged")
		return nil, nil
	}
	publisher, err := events.NewAMQPPublisher(log, cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("events connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return publisher.Close() }})
	return publisher, nil
}

func provideCoreClient(log *slog.Logger, cfg config.Config) *coreapi.Client {
	return coreapi.New(log, cfg.Core)
}

func provideObjectStore(log *slog.Logger, cfg config.Config) *objectstore.Client {
	return objectstore.New(log, cfg.ObjectStore)
}

func provideSender(log *slog.Logger) *telegram.Sender {
	return telegram.NewSender(log)
}

func provideClassifier(log *slog.Logger, sender *telegram.Sender, store *objectstore.Client) *content.Classifier {
	return content.NewClassifier(log, sender, store)
}

func provideIdentityResolver(log *slog.Logger, conn *pgxpool.Pool) *identity.Resolver {
	return identity.NewResolver(log, identity.NewPGStore(conn))
}

func provideRoomStore(conn *pgxpool.Pool) *chatroom.PGStore {
	return chatroom.NewPGStore(conn)
}

func provideRoomService(log *slog.Logger, rooms *chatroom.PGStore, session *gocql.Session, core *coreapi.Client, publisher events.Publisher) *chatroom.Service {
	return chatroom.NewService(log, rooms, chatroom.NewCQLQueue(session), core, publisher)
}

func provideMessageLog(session *gocql.Session) *relay.CQLMessageLog {
	return relay.NewCQLMessageLog(session)
}

func provideRelayService(
	log *slog.Logger,
	clients *identity.Resolver,
	rooms *chatroom.Service,
	routes *chatroom.PGStore,
	classifier *content.Classifier,
	core *coreapi.Client,
	messageLog *relay.CQLMessageLog,
	store *objectstore.Client,
	sender *telegram.Sender,
	cfg config.Config,
) *relay.Service {
	return relay.NewService(log, clients, rooms, routes, classifier, core, messageLog, store, sender, cfg.Replies)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideWebhookHandler(log *slog.Logger, relayService *relay.Service, sender *telegram.Sender, cfg config.Config) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, relayService, sender, cfg)
}

func provideOutboundHandler(log *slog.Logger, relayService *relay.Service, cfg config.Config) *handlers.OutboundHandler {
	return handlers.NewOutboundHandler(log, relayService, cfg.Outbound)
}

func provideServer(log *slog.Logger, cfg config.Config, pingHandler *handlers.PingHandler, webhookHandler *handlers.WebhookHandler, outboundHandler *handlers.OutboundHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, pingHandler, webhookHandler, outboundHandler)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
