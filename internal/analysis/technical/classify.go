package technical

import (
	"math"

	"github.com/skalibog/quantladder/pkg/models"
)

// Пороги классификации импульса
const (
	strongRSI   = 60.0
	moderateRSI = 50.0
	weakRSI     = 40.0
)

// DeriveTrend классифицирует тренд по взаимному положению цены, EMA50 и EMA200.
// Без любой из средних тренд нейтральный.
func DeriveTrend(price float64, ema50, ema200 *float64) models.Trend {
	if ema50 == nil || ema200 == nil {
		return models.TrendNeutral
	}
	switch {
	case price > *ema50 && *ema50 > *ema200:
		return models.TrendBullish
	case price < *ema50 && *ema50 < *ema200:
		return models.TrendBearish
	default:
		return models.TrendNeutral
	}
}

// DeriveMomentum классифицирует импульс по RSI и гистограмме MACD.
// Порядок проверок важен: strong раньше moderate.
func DeriveMomentum(rsi, histogram *float64) models.Momentum {
	if rsi == nil || histogram == nil {
		return models.MomentumMixed
	}
	switch {
	case *rsi >= strongRSI && *histogram > 0:
		return models.MomentumStrong
	case *rsi >= moderateRSI && *histogram > 0:
		return models.MomentumModerate
	case *rsi <= weakRSI && *histogram < 0:
		return models.MomentumWeak
	default:
		return models.MomentumMixed
	}
}

// SupportResistance минимум low и максимум high за последние lookback свечей
func SupportResistance(candles []models.Candle, lookback int) (support, resistance float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	start := 0
	if lookback > 0 && len(candles) > lookback {
		start = len(candles) - lookback
	}

	support, resistance = math.Inf(1), math.Inf(-1)
	for _, c := range candles[start:] {
		support = math.Min(support, c.Low)
		resistance = math.Max(resistance, c.High)
	}
	return support, resistance
}
