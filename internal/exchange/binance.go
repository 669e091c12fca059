package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/pkg/logger"
	"github.com/skalibog/quantladder/pkg/models"
)

// BinanceClient клиент публичных спотовых данных Binance с перебором зеркал
type BinanceClient struct {
	mirrors     []*binance.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration
	log         *zap.Logger
}

// NewBinanceClient создает клиент по списку базовых URL
func NewBinanceClient(cfg config.ExchangeConfig) (*BinanceClient, error) {
	if len(cfg.BaseURLs) == 0 {
		return nil, fmt.Errorf("не задан ни один базовый URL Binance")
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	mirrors := make([]*binance.Client, len(cfg.BaseURLs))
	for i, url := range cfg.BaseURLs {
		// публичные эндпоинты не требуют ключей
		spot := binance.NewClient("", "")
		spot.BaseURL = url
		spot.HTTPClient = httpClient
		mirrors[i] = spot
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = len(mirrors)
	}

	return &BinanceClient{
		mirrors:     mirrors,
		limiter:     rate.NewLimiter(limit, 1),
		maxAttempts: maxAttempts,
		backoffMin:  time.Duration(cfg.BackoffMinMs) * time.Millisecond,
		backoffMax:  time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
		log:         logger.Named("exchange"),
	}, nil
}

// GetCandles получает свечи таймфрейма; при ошибке переходит к следующему зеркалу
func (c *BinanceClient) GetCandles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("неподдерживаемый таймфрейм: %s", tf)
	}

	b := &backoff.Backoff{Min: c.backoffMin, Max: c.backoffMax, Factor: 2}
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.Duration()):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		mirror := c.mirrors[attempt%len(c.mirrors)]
		klines, err := mirror.NewKlinesService().
			Symbol(symbol).
			Interval(string(tf)).
			Limit(CandleLimit(tf)).
			Do(ctx)
		if err != nil {
			lastErr = err
			c.log.Warn("Ошибка получения свечей, пробуем следующее зеркало",
				zap.String("symbol", symbol),
				zap.String("timeframe", string(tf)),
				zap.String("base_url", mirror.BaseURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		return ConvertKlines(klines)
	}

	return nil, fmt.Errorf("Binance error for %s: %w", tf, lastErr)
}

// ConvertKlines переводит строковые поля свечей Binance в числа
func ConvertKlines(klines []*binance.Kline) ([]models.Candle, error) {
	candles := make([]models.Candle, len(klines))
	for i, k := range klines {
		fields := [...]struct {
			raw string
			dst *float64
		}{
			{k.Open, &candles[i].Open},
			{k.High, &candles[i].High},
			{k.Low, &candles[i].Low},
			{k.Close, &candles[i].Close},
			{k.Volume, &candles[i].Volume},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return nil, fmt.Errorf("ошибка разбора свечи %d: %w", k.OpenTime, err)
			}
			*f.dst = v
		}
		candles[i].OpenTime = k.OpenTime
	}
	return candles, nil
}
