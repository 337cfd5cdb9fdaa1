package config

import (
	"os"

	postgres_wrapper "github.com/joripage/tradesim/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/tradesim/pkg/infra/redis"
	kafkawrapper "github.com/joripage/tradesim/pkg/kafka_wrapper"
	"github.com/joripage/tradesim/pkg/logging"
	"github.com/joripage/tradesim/pkg/marketdata"
	"github.com/joripage/tradesim/pkg/oms"
	fixgateway "github.com/joripage/tradesim/pkg/oms/fix"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type JournalConfig struct {
	// Enabled publishes every order event to Topic.
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	Log         logging.Config                   `yaml:"log"`
	Fix         fixgateway.FixGatewayConfig      `yaml:"fix"`
	OMS         oms.Config                       `yaml:"oms"`
	MarketData  marketdata.Config                `yaml:"market_data"`
	Journal     JournalConfig                    `yaml:"journal"`
	Kafka       *kafkawrapper.KafkaConfig        `yaml:"kafka"`
	Worker      kafkawrapper.ConsumerConfig      `yaml:"worker"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
	OmsDB       *postgres_wrapper.PostgresConfig `yaml:"oms_db"`
	PprofAddr   string                           `yaml:"pprof_addr"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}

	cfg, err := Parse(configBytes)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}

// Parse expands environment variables in b and decodes it.
func Parse(b []byte) (*AppConfig, error) {
	b = []byte(os.ExpandEnv(string(b)))

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "tradesim"
	}
	return cfg, nil
}
