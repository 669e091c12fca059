package liquidation

import (
	"math"

	"github.com/skalibog/quantladder/pkg/mathutil"
	"github.com/skalibog/quantladder/pkg/models"
)

const (
	// DefaultRangePct полуширина лестницы по умолчанию
	DefaultRangePct = 0.15
	// DefaultStepPct шаг лестницы по умолчанию
	DefaultStepPct = 0.01
)

// LeverageAnchor кластер ликвидаций для типичного плеча: расстояние от цены и вес
type LeverageAnchor struct {
	Distance float64
	Weight   float64
}

// Params настройки модели плотности
type Params struct {
	LeverageAnchors []LeverageAnchor
	// AnchorSpreadBase + Distance*AnchorSpreadScale ширина гауссианы якоря
	AnchorSpreadBase  float64
	AnchorSpreadScale float64

	// NearCenterRatio и NearSpreadRatio кластер рядом с ценой в долях от диапазона
	NearCenterRatio float64
	NearSpreadRatio float64

	BaseNotionalUSD  float64
	VolatilityScale  float64
	VolatilityMinAdd float64
	VolatilityMaxAdd float64

	VolumeImpulseMin float64
	VolumeImpulseMax float64
	VolumeWeightMin  float64
	VolumeWeightMax  float64

	TrendSensitivity float64
	TrendFactorMin   float64
	TrendFactorMax   float64

	// Доли базового объема для доминирующей стороны, обратной стороны и текущей зоны
	DominantBase     float64
	DominantLeverage float64
	DominantNear     float64
	ResidualBase     float64
	ResidualLeverage float64
	CurrentShare     float64

	VolatilityWindow int
	TrendWindow      int
	VolumeLookup     int

	ZoneEpsilon   float64
	StepTolerance float64
	TopLevels     int
}

// DefaultParams параметры модели по умолчанию
func DefaultParams() Params {
	return Params{
		LeverageAnchors: []LeverageAnchor{
			{Distance: 0.012, Weight: 1.2},
			{Distance: 0.02, Weight: 1.15},
			{Distance: 0.04, Weight: 1},
			{Distance: 0.07, Weight: 0.8},
			{Distance: 0.11, Weight: 0.6},
		},
		AnchorSpreadBase:  0.012,
		AnchorSpreadScale: 0.15,

		NearCenterRatio: 0.42,
		NearSpreadRatio: 0.22,

		BaseNotionalUSD:  34_000_000,
		VolatilityScale:  20,
		VolatilityMinAdd: 0.04,
		VolatilityMaxAdd: 0.65,

		VolumeImpulseMin: 0.7,
		VolumeImpulseMax: 1.6,
		VolumeWeightMin:  0.6,
		VolumeWeightMax:  1.8,

		TrendSensitivity: 2.2,
		TrendFactorMin:   0.55,
		TrendFactorMax:   1.7,

		DominantBase:     0.35,
		DominantLeverage: 0.45,
		DominantNear:     0.5,
		ResidualBase:     0.03,
		ResidualLeverage: 0.04,
		CurrentShare:     0.11,

		VolatilityWindow: 220,
		TrendWindow:      80,
		VolumeLookup:     180,

		ZoneEpsilon:   0.0005,
		StepTolerance: 1e-6,
		TopLevels:     4,
	}
}

// BaseNotional базовый объем в USD с поправкой на волатильность и всплеск объема
func (p Params) BaseNotional(volatility, volumeImpulse float64) float64 {
	return p.BaseNotionalUSD *
		(1 + mathutil.Clamp(volatility*p.VolatilityScale, p.VolatilityMinAdd, p.VolatilityMaxAdd)) *
		volumeImpulse
}

// Zone зона уровня по относительному отклонению; границы строгие
func (p Params) Zone(distancePct float64) models.LiquidationZone {
	if distancePct > p.ZoneEpsilon {
		return models.ZoneAbove
	}
	if distancePct < -p.ZoneEpsilon {
		return models.ZoneBelow
	}
	return models.ZoneCurrent
}

// LeverageDensity сумма взвешенных гауссиан по якорям плеча
func (p Params) LeverageDensity(distance float64) float64 {
	density := 0.0
	for _, a := range p.LeverageAnchors {
		density += a.Weight * gauss(distance, a.Distance, p.AnchorSpreadBase+a.Distance*p.AnchorSpreadScale)
	}
	return density
}

func (p Params) dominant(leverage, nearCurrent float64) float64 {
	return p.DominantBase + leverage*p.DominantLeverage + nearCurrent*p.DominantNear
}

func (p Params) residual(leverage float64) float64 {
	return p.ResidualBase + leverage*p.ResidualLeverage
}

// historicalVolumeWeight объем свечи, чья середина ближе всего к цене, относительно среднего
func (p Params) historicalVolumeWeight(window []models.Candle, avgVolume, price float64) float64 {
	if len(window) == 0 || avgVolume == 0 {
		return 1
	}
	best := math.Inf(1)
	volume := window[0].Volume
	for _, c := range window {
		mid := (c.High + c.Low) / 2
		d := math.Abs(mid-price) / price
		if d < best {
			best = d
			volume = c.Volume
		}
	}
	return mathutil.Clamp(volume/avgVolume, p.VolumeWeightMin, p.VolumeWeightMax)
}
