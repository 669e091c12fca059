package exchange

import (
	"context"

	"github.com/skalibog/quantladder/pkg/models"
)

// CandleSource источник свечей. Свечи возвращаются по возрастанию времени открытия.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error)
}

// SourceFunc адаптер функции к CandleSource
type SourceFunc func(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error)

// GetCandles вызывает f
func (f SourceFunc) GetCandles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	return f(ctx, symbol, tf)
}
