package main

import (
	"flag"

	"github.com/joripage/tradesim/config"
	"github.com/joripage/tradesim/pkg/infra"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	if cfg.OmsDB == nil {
		zap.S().Fatal("oms_db is not configured")
	}

	source := cfg.OmsDB.MigrationSource
	if source == "" {
		source = "file://migration/sql"
	}
	if err := infra.Migrate(source, cfg.OmsDB.MigrationConnURL); err != nil {
		zap.S().Fatalf("migrate: %v", err)
	}
}
