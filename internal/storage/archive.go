package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/skalibog/quantladder/internal/exchange"
	"github.com/skalibog/quantladder/pkg/logger"
	"github.com/skalibog/quantladder/pkg/models"
)

// Storage архив сырых свечей
type Storage interface {
	SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error)
}

// ArchiveSource источник свечей, который сохраняет каждую успешную выборку в архив
// и при включенном fallback отдает архивные свечи, если upstream недоступен.
type ArchiveSource struct {
	upstream exchange.CandleSource
	store    Storage
	fallback bool
	log      *zap.Logger
}

// NewArchiveSource оборачивает upstream архивом
func NewArchiveSource(upstream exchange.CandleSource, store Storage, fallback bool) *ArchiveSource {
	return &ArchiveSource{
		upstream: upstream,
		store:    store,
		fallback: fallback,
		log:      logger.Named("archive"),
	}
}

// GetCandles получает свечи из upstream и архивирует их
func (a *ArchiveSource) GetCandles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	candles, err := a.upstream.GetCandles(ctx, symbol, tf)
	if err == nil {
		if saveErr := a.store.SaveCandles(ctx, symbol, tf, candles); saveErr != nil {
			a.log.Warn("Ошибка архивации свечей", zap.String("symbol", symbol), zap.String("timeframe", string(tf)), zap.Error(saveErr))
		}
		return candles, nil
	}

	if !a.fallback || errors.Is(err, context.Canceled) {
		return nil, err
	}

	archived, archiveErr := a.store.GetCandles(ctx, symbol, tf, exchange.CandleLimit(tf))
	if archiveErr != nil {
		return nil, fmt.Errorf("%w (архив: %v)", err, archiveErr)
	}
	if len(archived) == 0 {
		return nil, err
	}

	a.log.Warn("Upstream недоступен, используем архивные свечи",
		zap.String("symbol", symbol),
		zap.String("timeframe", string(tf)),
		zap.Int("count", len(archived)),
		zap.Error(err))
	return archived, nil
}
