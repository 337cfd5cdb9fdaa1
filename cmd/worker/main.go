package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/tradesim/config"
	postgres_wrapper "github.com/joripage/tradesim/pkg/infra/postgres"
	kafkawrapper "github.com/joripage/tradesim/pkg/kafka_wrapper"
	"github.com/joripage/tradesim/pkg/logging"
	"github.com/joripage/tradesim/pkg/oms/repo"
	"github.com/joripage/tradesim/pkg/oms/worker"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // nolint
	zap.ReplaceGlobals(logger)

	if cfg.OmsDB == nil {
		logger.Fatal("oms_db is not configured")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// init db
	db, err := postgres_wrapper.InitPostgresWithBackoff(cfg.OmsDB)
	if err != nil {
		logger.Fatal("init db", zap.Error(err))
	}

	// init repo
	sqlRepo := repo.NewRepo(db)

	consumerCfg := cfg.Worker
	if len(consumerCfg.Brokers) == 0 && cfg.Kafka != nil {
		consumerCfg.Brokers = cfg.Kafka.Brokers
	}
	if consumerCfg.Topic == "" {
		consumerCfg.Topic = cfg.Journal.Topic
	}
	consumer := kafkawrapper.NewConsumerGroup(consumerCfg, logger)
	defer consumer.Close() // nolint

	w := worker.NewWorker(sqlRepo, logger)
	if err := w.StartConsumer(ctx, consumer); err != nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("worker exited")
}
