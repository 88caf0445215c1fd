package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/connectfour-backend/internal/config"
	"github.com/rocketscienceinc/connectfour-backend/internal/events"
	"github.com/rocketscienceinc/connectfour-backend/internal/repository"
	"github.com/rocketscienceinc/connectfour-backend/internal/repository/storage"
	"github.com/rocketscienceinc/connectfour-backend/internal/service"
	"github.com/rocketscienceinc/connectfour-backend/internal/session"
	"github.com/rocketscienceinc/connectfour-backend/internal/usecase"
	"github.com/rocketscienceinc/connectfour-backend/transport/rest"
	"github.com/rocketscienceinc/connectfour-backend/transport/websocket"
)

const shutdownTimeout = 10 * time.Second

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	postgresStorage, err := storage.NewPostgresStorage(ctx, conf.Postgres.URL)
	if err != nil {
		return fmt.Errorf("could not connect to postgres storage: %w", err)
	}
	defer postgresStorage.Close()

	if err = postgresStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not init postgres schema: %w", err)
	}

	redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}
	defer func() {
		if closeErr := redisStorage.Close(); closeErr != nil {
			log.Error("could not close redis storage", "error", closeErr)
		}
	}()

	publisher, closePublisher, err := buildPublisher(logger, conf.Kafka)
	if err != nil {
		return fmt.Errorf("could not create event publisher: %w", err)
	}
	defer closePublisher()

	gameRepo := repository.NewGameRepository(postgresStorage.Pool)
	statsRepo := repository.NewStatsRepository(postgresStorage.Pool, redisStorage.Connection)

	resultsService := service.NewResultsService(logger, gameRepo, statsRepo)
	botService := service.NewBotService()

	registry := session.NewRegistry()
	gameManager := usecase.NewGameManager(logger, registry, botService, resultsService, publisher, conf.Game)

	wsServer := websocket.New(logger, gameManager)
	gameManager.SetNotifier(wsServer)

	restHandlers := rest.NewHandlers(logger, statsRepo, gameRepo, gameManager, postgresStorage.Pool)
	restServer := rest.New(restHandlers)

	if len(conf.Kafka.Brokers) > 0 {
		analytics := events.NewAnalyticsWorker(logger, postgresStorage.Pool)
		consumer, consErr := events.NewConsumer(logger, conf.Kafka.Brokers, conf.Kafka.ConsumerGroup, conf.Kafka.Topic, analytics)
		if consErr != nil {
			return fmt.Errorf("could not create analytics consumer: %w", consErr)
		}
		defer consumer.Close()

		go func() {
			if runErr := consumer.Run(ctx); runErr != nil {
				log.Error("analytics consumer stopped", "error", runErr)
			}
		}()
	}

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := restServer.Start(conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run WebSocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if shutdownErr := wsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("WebSocket server shutdown error", "error", shutdownErr)
		}
		if shutdownErr := restServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("HTTP server shutdown error", "error", shutdownErr)
		}
		return nil
	}
}

// buildPublisher returns a Kafka producer when brokers are configured and a
// no-op publisher otherwise, so a broker-less deployment still plays games.
func buildPublisher(logger *slog.Logger, conf config.Kafka) (session.EventPublisher, func(), error) {
	if len(conf.Brokers) == 0 {
		logger.Info("no kafka brokers configured, game events disabled")
		return events.NopPublisher{}, func() {}, nil
	}

	producer, err := events.NewProducer(logger, conf.Brokers, conf.Topic)
	if err != nil {
		return nil, nil, err
	}

	closeProducer := func() {
		if closeErr := producer.Close(); closeErr != nil {
			logger.Error("could not close kafka producer", "error", closeErr)
		}
	}

	return producer, closeProducer, nil
}
