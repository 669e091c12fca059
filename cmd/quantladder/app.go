package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skalibog/quantladder/internal/advisor"
	"github.com/skalibog/quantladder/internal/analysis/aggregator"
	"github.com/skalibog/quantladder/internal/cache"
	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/internal/exchange"
	"github.com/skalibog/quantladder/internal/storage"
	"github.com/skalibog/quantladder/pkg/logger"
)

// app связывает источник свечей, хранилища и анализатор
type app struct {
	analyzer *aggregator.Analyzer
	store    *storage.InfluxDBStorage
	redis    *redis.Client
}

// newApp собирает цепочку источников: Binance -> архив InfluxDB -> кэш Redis
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	runID := uuid.NewString()
	log := logger.Named("app").With(zap.String("run_id", runID))

	client, err := exchange.NewBinanceClient(cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации клиента биржи: %w", err)
	}

	a := &app{}
	var source exchange.CandleSource = client

	if cfg.Storage.Enabled {
		store, err := storage.NewInfluxDBStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации хранилища: %w", err)
		}
		a.store = store
		source = storage.NewArchiveSource(source, store, cfg.Storage.Fallback)
		log.Info("Архив свечей InfluxDB подключен", zap.String("bucket", cfg.Storage.Bucket))
	}

	if cfg.Cache.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
		}
		a.redis = rdb
		source = cache.NewRedisSource(rdb, source, cfg.Cache)
		log.Info("Кэш свечей Redis подключен", zap.String("addr", cfg.Cache.Addr))
	}

	var formatter advisor.Formatter
	if cfg.Advisor.APIKey != "" {
		formatter = advisor.NewOpenAIFormatter(cfg.Advisor, cfg.Analysis.TradePlan.RiskPerTrade)
		log.Info("Отчет формируется моделью", zap.String("model", cfg.Advisor.Model))
	} else {
		log.Info("Ключ модели не задан, отчет строится по шаблону")
	}

	a.analyzer = aggregator.NewAnalyzer(cfg.Analysis, source, formatter)
	return a, nil
}

// Close освобождает соединения
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Ошибка закрытия Redis", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}
