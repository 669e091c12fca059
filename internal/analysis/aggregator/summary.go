package aggregator

import (
	"fmt"
	"math"
	"time"

	"github.com/skalibog/quantladder/internal/analysis/technical"
	"github.com/skalibog/quantladder/pkg/mathutil"
	"github.com/skalibog/quantladder/pkg/models"
)

const (
	// trendRegimeScore модуль согласованности, начиная с которого режим считается трендовым
	trendRegimeScore = 0.67
	// rangeRegimeScore модуль согласованности, до которого режим считается боковым
	rangeRegimeScore = 0.33
)

// BuildQuantSummary анализирует 4h, 1d и 1w и сводит их в рыночный режим.
// Нехватка свечей на любом таймфрейме делает сводку невозможной.
func BuildQuantSummary(tech *technical.Analyzer, symbol string, data map[models.Timeframe][]models.Candle, asOf time.Time) (models.QuantSummary, error) {
	analyses := make(map[models.Timeframe]models.TimeframeAnalysis, len(models.Timeframes))
	for _, tf := range models.Timeframes {
		candles, ok := data[tf]
		if !ok {
			return models.QuantSummary{}, fmt.Errorf("нет свечей для таймфрейма %s", tf)
		}
		analysis, err := tech.Analyze(tf, candles)
		if err != nil {
			return models.QuantSummary{}, fmt.Errorf("ошибка анализа %s %s: %w", symbol, tf, err)
		}
		analyses[tf] = analysis
	}

	score := AlignmentScore(analyses)
	return models.QuantSummary{
		Symbol:         symbol,
		AsOfISO:        models.FormatISO(asOf),
		MarketRegime:   DeriveRegime(score),
		AlignmentScore: score,
		Analyses:       analyses,
	}, nil
}

// AlignmentScore (бычьи − медвежьи) / число отслеживаемых таймфреймов, округлено до 2 знаков
func AlignmentScore(analyses map[models.Timeframe]models.TimeframeAnalysis) float64 {
	var bullish, bearish int
	for _, tf := range models.Timeframes {
		switch analyses[tf].Trend {
		case models.TrendBullish:
			bullish++
		case models.TrendBearish:
			bearish++
		}
	}
	return mathutil.Round(float64(bullish-bearish)/float64(len(models.Timeframes)), 2)
}

// DeriveRegime режим по согласованности; трендовый порог проверяется первым
func DeriveRegime(score float64) models.Regime {
	abs := math.Abs(score)
	if abs >= trendRegimeScore {
		return models.RegimeTrend
	}
	if abs <= rangeRegimeScore {
		return models.RegimeRange
	}
	return models.RegimeMixed
}
