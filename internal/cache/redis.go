// Package cache кэширует свечи в Redis поверх любого источника свечей.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/internal/exchange"
	"github.com/skalibog/quantladder/pkg/logger"
	"github.com/skalibog/quantladder/pkg/models"
)

// RedisSource источник свечей с кэшем в Redis.
// Ошибки Redis не прерывают запрос: данные берутся из upstream.
type RedisSource struct {
	client   *redis.Client
	upstream exchange.CandleSource
	config   config.CacheConfig
	log      *zap.Logger
}

// NewRedisClient создает клиент и проверяет соединение
func NewRedisClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisSource оборачивает upstream кэшем
func NewRedisSource(client *redis.Client, upstream exchange.CandleSource, cfg config.CacheConfig) *RedisSource {
	return &RedisSource{
		client:   client,
		upstream: upstream,
		config:   cfg,
		log:      logger.Named("cache"),
	}
}

// Key ключ кэша для символа и таймфрейма
func Key(symbol string, tf models.Timeframe) string {
	return fmt.Sprintf("candles:%s:%s", symbol, tf)
}

// GetCandles возвращает свечи из кэша или из upstream с последующей записью в кэш
func (s *RedisSource) GetCandles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	key := Key(symbol, tf)

	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var candles []models.Candle
		if err := json.Unmarshal(data, &candles); err == nil {
			s.log.Debug("Свечи из кэша", zap.String("key", key), zap.Int("count", len(candles)))
			return candles, nil
		}
		s.log.Warn("Поврежденная запись кэша", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		s.log.Warn("Redis недоступен, читаем напрямую", zap.String("key", key), zap.Error(err))
	}

	candles, err := s.upstream.GetCandles(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(candles)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации свечей: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, s.config.TTL(string(tf))).Err(); err != nil {
		s.log.Warn("Ошибка записи в кэш", zap.String("key", key), zap.Error(err))
	}
	return candles, nil
}
