// Package httpapi HTTP API поверх аналитического конвейера.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/skalibog/quantladder/internal/analysis/liquidation"
	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/pkg/logger"
	"github.com/skalibog/quantladder/pkg/models"
)

const shutdownTimeout = 10 * time.Second

// Service операции конвейера, доступные через API
type Service interface {
	MarketData(ctx context.Context, symbol string) (models.MarketData, error)
	Analyze(ctx context.Context, symbol string, accountEquity float64) (*models.AnalysisResult, error)
	Liquidation(ctx context.Context, symbol string, tf models.Timeframe, opts liquidation.Options) (models.LiquidationMap, error)
	LiquidationOptions() liquidation.Options
}

// Server HTTP сервер
type Server struct {
	config  config.HTTPConfig
	service Service
	metrics *Metrics
	engine  *gin.Engine
	log     *zap.Logger
}

// NewServer создает сервер и регистрирует маршруты
func NewServer(cfg config.HTTPConfig, service Service) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:  cfg,
		service: service,
		metrics: NewMetrics(),
		engine:  gin.New(),
		log:     logger.Named("http"),
	}

	s.engine.Use(gin.Recovery(), requestID(), accessLog(s.log), s.metrics.middleware())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/market-data", s.handleMarketData)
	api.POST("/analyze", s.handleAnalyze)
	api.GET("/liquidation", s.handleLiquidation)

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run слушает адрес до отмены контекста, затем корректно завершает соединения
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP сервер запущен", zap.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ошибка HTTP сервера: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("Остановка HTTP сервера")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP сервера: %w", err)
	}
	return nil
}
