package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/tradesim/config"
	redis_wrapper "github.com/joripage/tradesim/pkg/infra/redis"
	kafkawrapper "github.com/joripage/tradesim/pkg/kafka_wrapper"
	"github.com/joripage/tradesim/pkg/logging"
	"github.com/joripage/tradesim/pkg/marketdata"
	"github.com/joripage/tradesim/pkg/oms"
	eventstore "github.com/joripage/tradesim/pkg/oms/event_store"
	fixgateway "github.com/joripage/tradesim/pkg/oms/fix"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "./config/exchange.yaml", "Specify config file path")
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
	logger = logger.With(zap.String("service", cfg.ServiceName))

	if cfg.PprofAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.PprofAddr, nil); err != nil {
				logger.Warn("pprof server stopped", zap.Error(err))
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var producer *kafkawrapper.Producer
	if cfg.Kafka != nil && len(cfg.Kafka.Brokers) > 0 {
		producer = kafkawrapper.NewProducer(*cfg.Kafka)
		defer producer.Close() // nolint
	}

	fixGateway := fixgateway.NewFixGateway(&cfg.Fix, logger)

	publisher := marketdata.NewPublisher(cfg.MarketData, logger, fixGateway)
	if cfg.Redis != nil {
		client, err := redis_wrapper.InitRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("init redis", zap.Error(err))
		}
		defer client.Close() // nolint
		publisher.AddSink(marketdata.NewRedisSink(client, cfg.MarketData.RedisChannelPrefix))
	}
	if producer != nil && cfg.MarketData.KafkaTopic != "" {
		publisher.AddSink(marketdata.NewKafkaSink(producer, cfg.MarketData.KafkaTopic))
	}
	fixGateway.SetSnapshotSource(publisher)

	opts := []oms.Option{
		oms.WithLogger(logger),
		oms.WithSnapshotSink(publisher),
	}
	if cfg.Journal.Enabled {
		if producer == nil {
			logger.Fatal("journal enabled without kafka brokers")
		}
		opts = append(opts, oms.WithEventStore(eventstore.NewKafkaEventStore(producer, cfg.Journal.Topic, logger)))
	}
	omsInstance := oms.NewOMS(cfg.OMS, opts...)
	fixGateway.AddOmsInstance(omsInstance)

	omsInstance.Start(ctx)
	defer omsInstance.Stop()
	go publisher.Run(ctx)

	if err := fixGateway.Start(ctx); err != nil {
		logger.Fatal("start fix gateway", zap.Error(err))
	}
	logger.Info("exchange started", zap.String("fix_config", cfg.Fix.ConfigFilepath))

	<-ctx.Done()
	logger.Info("shutting down")
	fixGateway.Stop()
	logger.Info("exited cleanly")
}
