package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/config"
	httpserver "github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/http"
)

func main() {
	_ = godotenv.Load()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	srv, err := httpserver.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	logger.Info("server listening", zap.String("port", cfg.Port))
	if err := srv.Run(); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if os.Getenv("DEBUG") != "" {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zapCfg.Build()
}
