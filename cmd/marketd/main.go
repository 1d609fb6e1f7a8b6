package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pietro1412/fantacontratti/internal/auction"
	"github.com/pietro1412/fantacontratti/internal/config"
	"github.com/pietro1412/fantacontratti/internal/database"
	"github.com/pietro1412/fantacontratti/internal/dbconfig"
	"github.com/pietro1412/fantacontratti/internal/gateway"
	"github.com/pietro1412/fantacontratti/internal/market"
	"github.com/pietro1412/fantacontratti/internal/outbox"
	"github.com/pietro1412/fantacontratti/internal/sweeper"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Getenv("MARKETD_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := database.Connect(ctx, dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	log.Info().
		Str("database", dbCfg.Database).
		Str("nats_url", cfg.NATS.URL).
		Str("addr", cfg.HTTP.Addr).
		Msg("starting marketd")

	clock := clockwork.NewRealClock()
	controller := market.NewController(market.NewPgxDB(pool), clock)

	// Outbox worker: state changes commit first, this ships them to the bus.
	publisher, err := outbox.NewJetStreamPublisher(outbox.JetStreamPublisherConfig{
		URL:           cfg.NATS.URL,
		StreamName:    cfg.NATS.StreamName,
		SubjectPrefix: cfg.NATS.SubjectPrefix,
		MaxReconnects: -1,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()

	workerCfg := outbox.DefaultWorkerConfig()
	workerCfg.PollInterval = cfg.Market.OutboxPollInterval
	workerCfg.BatchSize = cfg.Market.OutboxBatchSize
	worker := outbox.NewWorker(pool, publisher, workerCfg, clock)
	if err := worker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox worker")
	}
	defer worker.Stop()

	// Sweeper: closes expired auctions nobody is touching.
	sweepCfg := sweeper.DefaultConfig()
	sweepCfg.Interval = cfg.Market.SweepInterval
	sw := sweeper.New(auction.NewRepository(pool), controller, clock, sweepCfg)
	go func() {
		if err := sw.Run(ctx); err != nil {
			log.Error().Err(err).Msg("sweeper stopped with error")
		}
	}()

	// Gateway: websocket fan-out fed from JetStream, plus the HTTP surface.
	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go connectionManager.Start(ctx)

	consumerCfg := gateway.DefaultJetStreamConsumerConfig()
	consumerCfg.URL = cfg.NATS.URL
	consumerCfg.StreamName = cfg.NATS.StreamName
	consumerCfg.ConsumerName = cfg.NATS.ConsumerName
	consumerCfg.SubjectFilter = cfg.NATS.SubjectPrefix + ".>"
	consumer, err := gateway.NewEventConsumer(connectionManager, consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}
	defer consumer.Stop()
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer stopped with error")
		}
	}()

	service := gateway.NewService(controller, connectionManager, clock, cfg.Market)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: service.Routes(),
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}
