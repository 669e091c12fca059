// Package liquidation строит синтетическую лестницу оценочных ликвидаций вокруг текущей цены.
//
// Модель эвристическая: плотность складывается из кластеров по типичным плечам, кластера
// рядом с ценой, веса исторического объема и смещения по тренду. От модели требуются
// воспроизводимость и монотонность, а не точность.
package liquidation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/quantladder/pkg/mathutil"
	"github.com/skalibog/quantladder/pkg/models"
)

// NoDataNote заметка для пустого ввода
const NoDataNote = "No candle data available."

// modelNotes фиксированные оговорки модели
var modelNotes = []string{
	"Estimated liquidation pressure using recent volatility, leverage-distance clustering, and nearby traded volume.",
	"Levels are model-based risk zones, not exact exchange liquidation positions.",
	"Use this as context for scenario planning, not as a standalone trading signal.",
}

// Options параметры отрисовки лестницы
type Options struct {
	Symbol    string
	Timeframe models.Timeframe
	RangePct  float64
	StepPct   float64
}

// MaxLevels предел числа уровней одной лестницы
const MaxLevels = 1000

// ErrInvalidOptions параметры лестницы вне допустимых границ
var ErrInvalidOptions = errors.New("invalid ladder options")

// withDefaults подставляет значения по умолчанию вместо неположительных
func (o Options) withDefaults() Options {
	if o.RangePct <= 0 {
		o.RangePct = DefaultRangePct
	}
	if o.StepPct <= 0 {
		o.StepPct = DefaultStepPct
	}
	return o
}

// Validate проверяет, что шаг не больше диапазона и лестница не длиннее MaxLevels
func (o Options) Validate() error {
	o = o.withDefaults()
	if o.RangePct >= 1 {
		return fmt.Errorf("%w: rangePct must be below 1, got %v", ErrInvalidOptions, o.RangePct)
	}
	if o.StepPct > o.RangePct {
		return fmt.Errorf("%w: stepPct %v exceeds rangePct %v", ErrInvalidOptions, o.StepPct, o.RangePct)
	}
	if levels := math.Floor(2*o.RangePct/o.StepPct+1e-6) + 1; levels > MaxLevels {
		return fmt.Errorf("%w: %.0f levels requested, limit is %d", ErrInvalidOptions, levels, MaxLevels)
	}
	return nil
}

// Modeler строит карты ликвидаций
type Modeler struct {
	params Params
	now    func() time.Time
}

// NewModeler создает модель с параметрами по умолчанию
func NewModeler() *Modeler {
	return NewModelerWithParams(DefaultParams())
}

// NewModelerWithParams создает модель с заданными параметрами
func NewModelerWithParams(p Params) *Modeler {
	return &Modeler{params: p, now: time.Now}
}

// marketState характеристики рынка, общие для всех уровней лестницы
type marketState struct {
	currentPrice  float64
	volatility    float64
	trendBias     float64
	volumeImpulse float64
	baseNotional  float64
	window        []models.Candle
	windowAvgVol  float64
}

// Build строит карту ликвидаций. Не возвращает ошибок: пустой ввод дает пустую карту.
func (m *Modeler) Build(candles []models.Candle, opts Options) models.LiquidationMap {
	opts = opts.withDefaults()

	out := models.LiquidationMap{
		Symbol:         opts.Symbol,
		Timeframe:      opts.Timeframe,
		GeneratedAtISO: models.FormatISO(m.now()),
		Levels:         []models.LiquidationLevel{},
		TopLongLevels:  []models.LiquidationLevel{},
		TopShortLevels: []models.LiquidationLevel{},
	}

	if len(candles) == 0 {
		out.ModelNotes = []string{NoDataNote}
		return out
	}

	state := m.marketState(candles)
	out.CurrentPrice = state.currentPrice
	out.Levels = m.levels(state, opts)
	out.TopLongLevels = topLevels(out.Levels, models.ZoneBelow, m.params.TopLevels, func(l models.LiquidationLevel) int64 { return l.LongUSD })
	out.TopShortLevels = topLevels(out.Levels, models.ZoneAbove, m.params.TopLevels, func(l models.LiquidationLevel) int64 { return l.ShortUSD })
	out.ModelNotes = append([]string(nil), modelNotes...)
	return out
}

func (m *Modeler) marketState(candles []models.Candle) marketState {
	p := m.params
	latest := candles[len(candles)-1]
	window := tail(candles, p.VolatilityWindow)

	volumes := make([]float64, len(window))
	for i, c := range window {
		volumes[i] = c.Volume
	}
	avgVolume := mathutil.Mean(volumes)

	volumeImpulse := 1.0
	if avgVolume > 0 {
		volumeImpulse = mathutil.Clamp(latest.Volume/avgVolume, p.VolumeImpulseMin, p.VolumeImpulseMax)
	}

	volatility := RealizedVolatility(window)
	lookup := tail(window, p.VolumeLookup)
	lookupVolumes := make([]float64, len(lookup))
	for i, c := range lookup {
		lookupVolumes[i] = c.Volume
	}

	return marketState{
		currentPrice:  latest.Close,
		volatility:    volatility,
		trendBias:     TrendBias(tail(window, p.TrendWindow)),
		volumeImpulse: volumeImpulse,
		baseNotional:  p.BaseNotional(volatility, volumeImpulse),
		window:        lookup,
		windowAvgVol:  mathutil.Mean(lookupVolumes),
	}
}

func (m *Modeler) levels(state marketState, opts Options) []models.LiquidationLevel {
	p := m.params

	toLongs := mathutil.Clamp(1+state.trendBias*p.TrendSensitivity, p.TrendFactorMin, p.TrendFactorMax)
	toShorts := mathutil.Clamp(1-state.trendBias*p.TrendSensitivity, p.TrendFactorMin, p.TrendFactorMax)

	var levels []models.LiquidationLevel
	for i := 0; ; i++ {
		// индекс вместо накопления шага, чтобы не копить ошибку округления
		pct := -opts.RangePct + float64(i)*opts.StepPct
		if pct > opts.RangePct+p.StepTolerance {
			break
		}

		distance := math.Abs(pct)
		price := state.currentPrice * (1 + pct)
		zone := p.Zone(pct)

		leverage := p.LeverageDensity(distance)
		nearCurrent := gauss(distance, opts.RangePct*p.NearCenterRatio, opts.RangePct*p.NearSpreadRatio)
		volumeWeight := p.historicalVolumeWeight(state.window, state.windowAvgVol, price)

		var longPressure, shortPressure float64
		switch zone {
		case models.ZoneBelow:
			longPressure = state.baseNotional * p.dominant(leverage, nearCurrent) * volumeWeight * toLongs
			shortPressure = state.baseNotional * p.residual(leverage)
		case models.ZoneAbove:
			shortPressure = state.baseNotional * p.dominant(leverage, nearCurrent) * volumeWeight * toShorts
			longPressure = state.baseNotional * p.residual(leverage)
		default:
			longPressure = state.baseNotional * p.CurrentShare
			shortPressure = state.baseNotional * p.CurrentShare
		}

		longUSD := roundUSD(longPressure)
		shortUSD := roundUSD(shortPressure)

		levels = append(levels, models.LiquidationLevel{
			Price:       price,
			DistancePct: pct,
			LongUSD:     longUSD,
			ShortUSD:    shortUSD,
			TotalUSD:    longUSD + shortUSD,
			Zone:        zone,
		})
	}
	return levels
}

// RealizedVolatility стандартное отклонение логарифмических доходностей (генеральное)
func RealizedVolatility(candles []models.Candle) float64 {
	returns := make([]float64, 0, len(candles))
	for i := 1; i < len(candles); i++ {
		r := math.Log(candles[i].Close / candles[i-1].Close)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		returns = append(returns, r)
	}
	if len(returns) < 2 {
		return 0
	}
	sd := talib.StdDev(returns, len(returns), 1)
	return sd[len(sd)-1]
}

// TrendBias относительное изменение цены от первой до последней свечи окна
func TrendBias(candles []models.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	return candles[len(candles)-1].Close/candles[0].Close - 1
}

// topLevels n уровней зоны с наибольшим значением key; при равенстве сохраняется порядок лестницы
func topLevels(levels []models.LiquidationLevel, zone models.LiquidationZone, n int, key func(models.LiquidationLevel) int64) []models.LiquidationLevel {
	filtered := make([]models.LiquidationLevel, 0, len(levels))
	for _, l := range levels {
		if l.Zone == zone {
			filtered = append(filtered, l)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return key(filtered[i]) > key(filtered[j])
	})
	if len(filtered) > n {
		filtered = filtered[:n]
	}
	return filtered
}

func gauss(x, center, spread float64) float64 {
	normalized := (x - center) / spread
	return math.Exp(-normalized * normalized)
}

func roundUSD(v float64) int64 {
	return int64(math.Round(v))
}

func tail(candles []models.Candle, n int) []models.Candle {
	if n > 0 && len(candles) > n {
		return candles[len(candles)-n:]
	}
	return candles
}
