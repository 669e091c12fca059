package technical

import (
	"github.com/markcheno/go-talib"
	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/pkg/mathutil"
	"github.com/skalibog/quantladder/pkg/models"
)

// Периоды, зашитые в имена полей снимка
const (
	emaFastPeriod   = 20
	emaMidPeriod    = 50
	emaSlowPeriod   = 200
	volumeSMAPeriod = 20
	bbDeviation     = 2.0

	indicatorDecimals = 4
	priceDecimals     = 6
)

// Analyzer реализует индикаторный движок и анализ одного таймфрейма
type Analyzer struct {
	config config.TechnicalConfig
}

// NewAnalyzer создает новый анализатор технических индикаторов
func NewAnalyzer(cfg config.TechnicalConfig) *Analyzer {
	def := config.Default().Analysis.Technical
	if cfg.MinCandles <= 0 {
		cfg.MinCandles = def.MinCandles
	}
	if cfg.SRLookback <= 0 {
		cfg.SRLookback = def.SRLookback
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.BBPeriod <= 0 {
		cfg.BBPeriod = def.BBPeriod
	}
	if cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 {
		cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal = def.MACDFast, def.MACDSlow, def.MACDSignal
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	return &Analyzer{config: cfg}
}

// MinCandles минимальное число свечей для анализа таймфрейма
func (a *Analyzer) MinCandles() int {
	return a.config.MinCandles
}

// Analyze рассчитывает индикаторы и классифицирует тренд, импульс и уровни для таймфрейма
func (a *Analyzer) Analyze(timeframe models.Timeframe, candles []models.Candle) (models.TimeframeAnalysis, error) {
	if len(candles) < a.config.MinCandles {
		return models.TimeframeAnalysis{}, &InsufficientDataError{
			Timeframe: timeframe,
			Need:      a.config.MinCandles,
			Got:       len(candles),
		}
	}

	snapshot := a.Snapshot(candles)
	latestPrice := candles[len(candles)-1].Close
	support, resistance := SupportResistance(candles, a.config.SRLookback)

	return models.TimeframeAnalysis{
		Timeframe:   timeframe,
		LatestPrice: mathutil.Round(latestPrice, priceDecimals),
		Trend:       DeriveTrend(latestPrice, snapshot.EMA50, snapshot.EMA200),
		Momentum:    DeriveMomentum(snapshot.RSI14, snapshot.MACDHistogram),
		Support:     mathutil.Round(support, priceDecimals),
		Resistance:  mathutil.Round(resistance, priceDecimals),
		Indicators:  snapshot,
	}, nil
}

// Snapshot рассчитывает индикаторы и берет значения на последней свече.
// Индикатор, для которого не хватает данных, остается nil.
func (a *Analyzer) Snapshot(candles []models.Candle) models.IndicatorSnapshot {
	// Подготавливаем данные для анализа
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))

	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	var s models.IndicatorSnapshot
	s.EMA20 = a.calculateEMA(closes, emaFastPeriod)
	s.EMA50 = a.calculateEMA(closes, emaMidPeriod)
	s.EMA200 = a.calculateEMA(closes, emaSlowPeriod)
	s.RSI14 = a.calculateRSI(closes)
	s.MACD, s.MACDSignal, s.MACDHistogram = a.calculateMACD(closes)
	s.BBUpper, s.BBMiddle, s.BBLower = a.calculateBollingerBands(closes)
	s.ATR14 = a.calculateATR(highs, lows, closes)
	s.VolumeSMA20 = a.calculateSMA(volumes, volumeSMAPeriod)
	return s
}

// calculateEMA экспоненциальная средняя, посеянная SMA первого окна
func (a *Analyzer) calculateEMA(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}
	return last(talib.Ema(closes, period))
}

// calculateSMA простая средняя
func (a *Analyzer) calculateSMA(values []float64, period int) *float64 {
	if len(values) < period {
		return nil
	}
	return last(talib.Sma(values, period))
}

// calculateRSI RSI со сглаживанием Уайлдера; нужен period+1 close
func (a *Analyzer) calculateRSI(closes []float64) *float64 {
	if len(closes) <= a.config.RSIPeriod {
		return nil
	}
	return last(talib.Rsi(closes, a.config.RSIPeriod))
}

// calculateMACD рассчитывает MACD, сигнальную линию и гистограмму; все три или ничего.
// Сигнальная EMA считается только по значениям MACD после прогрева медленной EMA.
func (a *Analyzer) calculateMACD(closes []float64) (*float64, *float64, *float64) {
	slow, fast, period := a.config.MACDSlow, a.config.MACDFast, a.config.MACDSignal
	if fast > slow {
		fast, slow = slow, fast
	}
	if len(closes) < slow+period-1 {
		return nil, nil, nil
	}

	fastEMA := talib.Ema(closes, fast)
	slowEMA := talib.Ema(closes, slow)

	macd := make([]float64, len(closes)-(slow-1))
	for i := range macd {
		macd[i] = fastEMA[i+slow-1] - slowEMA[i+slow-1]
	}
	signal := talib.Ema(macd, period)

	lastMACD := macd[len(macd)-1]
	lastSignal := signal[len(signal)-1]

	m := mathutil.RoundPtr(lastMACD, indicatorDecimals)
	s := mathutil.RoundPtr(lastSignal, indicatorDecimals)
	h := mathutil.RoundPtr(lastMACD-lastSignal, indicatorDecimals)
	if m == nil || s == nil || h == nil {
		return nil, nil, nil
	}
	return m, s, h
}

// calculateBollingerBands полосы Боллинджера на SMA с двумя стандартными отклонениями
func (a *Analyzer) calculateBollingerBands(closes []float64) (*float64, *float64, *float64) {
	if len(closes) < a.config.BBPeriod {
		return nil, nil, nil
	}

	upper, middle, lower := talib.BBands(
		closes,
		a.config.BBPeriod,
		bbDeviation,
		bbDeviation,
		talib.SMA,
	)

	u, m, l := last(upper), last(middle), last(lower)
	if u == nil || m == nil || l == nil {
		return nil, nil, nil
	}
	return u, m, l
}

// calculateATR средний истинный диапазон со сглаживанием Уайлдера
func (a *Analyzer) calculateATR(highs, lows, closes []float64) *float64 {
	if len(closes) <= a.config.ATRPeriod {
		return nil
	}
	return last(talib.Atr(highs, lows, closes, a.config.ATRPeriod))
}

// last берет последнее значение ряда, округленное до 4 знаков; NaN дает nil
func last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	return mathutil.RoundPtr(series[len(series)-1], indicatorDecimals)
}
