package http

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/config"
	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/services"
	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/storage"
)

type Server struct {
	engine *gin.Engine
	cfg    config.Config
}

func NewServer(cfg config.Config, logger *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()

	fm, err := storage.NewFileManager(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init file manager: %w", err)
	}

	store := storage.NewStore()

	// A missing Drive token is not fatal: the dashboard starts disconnected
	// and the drive routes report it.
	var drive services.Drive
	driveSvc, err := services.NewDriveService(ctx, cfg, logger)
	if err != nil {
		logger.Warn("google drive not connected", zap.Error(err))
	} else {
		drive = driveSvc
	}

	var generator services.MetadataGenerator
	generator, err = services.NewMetadataGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Warn("AI provider not configured", zap.Error(err))
		generator = nil
	}

	extractor := services.NewExtractor(logger)
	processor := services.NewProcessor(store, drive, generator, extractor, cfg.ProcessingDelay, logger)
	reportSvc := services.NewReportService()
	shareSvc := services.NewShareService(cfg)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))
	engine.Use(MaxBodySize(cfg.MaxDownloadBytes))
	engine.Use(CORS())

	api := NewAPI(cfg, logger, store, fm, drive, processor, reportSvc, shareSvc)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg}, nil
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	return s.engine.Run(addr)
}
