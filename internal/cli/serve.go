package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
)

const (
	shutdownTimeout  = 10 * time.Second
	eventQueueLength = 256
)

func newServeCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if version != "" && cfg.App.Version == "dev" {
				cfg.App.Version = version
			}
			logger, err := observability.NewLogger(cfg.Logger, cfg.App)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// repositories is the storage backend chosen at startup.
type repositories struct {
	articles      repository.ArticleRepository
	tickets       repository.TicketRepository
	ticketHistory repository.TicketHistoryRepository
	chatSessions  repository.ChatSessionRepository
	chatMessages  repository.ChatMessageRepository
	notes         repository.NoteRepository
}

func postgresRepositories(db repository.DB) repositories {
	return repositories{
		articles:      repository.NewArticleRepository(db),
		tickets:       repository.NewTicketRepository(db),
		ticketHistory: repository.NewTicketHistoryRepository(db),
		chatSessions:  repository.NewChatSessionRepository(db),
		chatMessages:  repository.NewChatMessageRepository(db),
		notes:         repository.NewNoteRepository(db),
	}
}

func memoryRepositories() repositories {
	r := memory.NewStore().Repositories()
	return repositories{
		articles:      r.Articles,
		tickets:       r.Tickets,
		ticketHistory: r.TicketHistory,
		chatSessions:  r.ChatSessions,
		chatMessages:  r.ChatMessages,
		notes:         r.Notes,
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	var repos repositories
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		repos = postgresRepositories(pg.PoolHandle())
	} else {
		repos = memoryRepositories()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	hub := realtime.NewHub(metrics.SubscriberGauge())
	var broker realtime.Broker = realtime.NewMemoryBroker(hub)
	if redis.Enabled() {
		redisBroker := realtime.NewRedisBroker(redis.Client, cfg.Chat.ChannelPrefix, hub, logger)
		go func() {
			if err := redisBroker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis broker stopped", zap.Error(err))
			}
		}()
		broker = redisBroker
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger))

	sink := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	var forwarder *worker.EventForwarder
	if sink.Enabled() {
		forwarder = worker.NewEventForwarder(sink.Handle, eventQueueLength, logger)
		forwarder.Register(dispatcher)
		forwarder.Start(workerCtx)
	}

	policy, err := service.PolicyFromConfig(cfg.Workflow.TicketStatusPolicy)
	if err != nil {
		return err
	}

	articleService := service.NewArticleService(service.ArticleDependencies{
		ArticleRepo: repos.articles,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Config:      cfg.Workflow,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		HistoryRepo: repos.ticketHistory,
		Policy:      policy,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Config:      cfg.Workflow,
	})
	chatService := service.NewChatService(service.ChatDependencies{
		SessionRepo: repos.chatSessions,
		MessageRepo: repos.chatMessages,
		TicketRepo:  repos.tickets,
		Broker:      broker,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	conversationService := service.NewConversationService(service.ConversationDependencies{
		TicketRepo:  repos.tickets,
		SessionRepo: repos.chatSessions,
		MessageRepo: repos.chatMessages,
		NoteRepo:    repos.notes,
		Logger:      logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	chatHandler := handlers.NewChatHandler(chatService, cfg.Chat.SubscriberBuffer, logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			handlers.Dependency{Name: "postgres", Pinger: pg},
			handlers.Dependency{Name: "redis", Pinger: redis},
		),
		Articles:       handlers.NewArticlesHandler(articleService),
		Tickets:        handlers.NewTicketsHandler(ticketService, conversationService),
		Chat:           chatHandler,
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Gatherer:       registry,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("ticket_policy", policy.Name()),
			zap.Bool("postgres", pg.Enabled()),
			zap.Bool("redis", redis.Enabled()),
			zap.Bool("kafka", sink.Enabled()),
		)
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-listenErr:
		runErr = fmt.Errorf("fiber listen: %w", err)
	}

	chatHandler.Close()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancelWorkers()
	if forwarder != nil {
		forwarder.Wait()
	}
	if err := sink.Close(); err != nil {
		logger.Warn("kafka sink close", zap.Error(err))
	}
	return runErr
}
