// Package tradeplan строит три лонг-плана (Conservative/Base/Aggressive) с фиксированным риском
// на основе дневного анализа и EMA20 четырехчасового таймфрейма.
package tradeplan

import (
	"fmt"
	"math"
	"strconv"

	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/pkg/mathutil"
	"github.com/skalibog/quantladder/pkg/models"
)

const (
	// minRiskPerUnit нижняя граница риска на единицу и стопа, защищает от деления на ноль
	minRiskPerUnit = 1e-7
	// atrFallbackPct замена ATR при его отсутствии, доля от цены
	atrFallbackPct = 0.02
	// minATR нижняя граница замены ATR
	minATR = 0.0001
	// invalidationRSI порог RSI(14) на 1D для консервативного плана
	invalidationRSI = 45
)

// Множители ATR для стопов и целей
const (
	conservativeStopATR = 1.0
	conservativeT1ATR   = 1.2
	conservativeT2ATR   = 2.2

	baseStopATR = 0.5
	baseT1ATR   = 1.5
	baseT2ATR   = 3.0

	aggressiveStopATR = 0.8
	aggressiveT1ATR   = 1.0
	aggressiveT2ATR   = 2.0
)

// Builder строит торговые планы
type Builder struct {
	config config.TradePlanConfig
}

// NewBuilder создает построитель планов
func NewBuilder(cfg config.TradePlanConfig) *Builder {
	if cfg.RiskPerTrade <= 0 {
		cfg.RiskPerTrade = config.Default().Analysis.TradePlan.RiskPerTrade
	}
	return &Builder{config: cfg}
}

// Build возвращает планы Conservative, Base и Aggressive для сводки и размера счета
func (b *Builder) Build(summary models.QuantSummary, accountEquity float64) ([]models.Plan, error) {
	daily, ok := summary.Analyses[models.Timeframe1D]
	if !ok {
		return nil, fmt.Errorf("в сводке нет анализа %s", models.Timeframe1D)
	}
	h4, ok := summary.Analyses[models.Timeframe4H]
	if !ok {
		return nil, fmt.Errorf("в сводке нет анализа %s", models.Timeframe4H)
	}

	price := daily.LatestPrice
	atr := math.Max(price*atrFallbackPct, minATR)
	if daily.Indicators.ATR14 != nil {
		atr = *daily.Indicators.ATR14
	}
	riskBudget := accountEquity * b.config.RiskPerTrade

	conservativeEntry := price
	if h4.Indicators.EMA20 != nil {
		conservativeEntry = math.Min(price, *h4.Indicators.EMA20)
	}
	conservativeStop := floorStop(daily.Support - atr*conservativeStopATR)

	baseEntry := price
	baseStop := floorStop(daily.Support - atr*baseStopATR)

	aggressiveEntry := price
	aggressiveStop := floorStop(aggressiveEntry - atr*aggressiveStopATR)

	return []models.Plan{
		newPlan(models.PlanConservative, conservativeEntry, conservativeStop,
			conservativeEntry+atr*conservativeT1ATR, conservativeEntry+atr*conservativeT2ATR, riskBudget,
			fmt.Sprintf("Daily close below %s or RSI(14) on 1D < %d", formatPrice(conservativeStop), invalidationRSI)),
		newPlan(models.PlanBase, baseEntry, baseStop,
			baseEntry+atr*baseT1ATR, baseEntry+atr*baseT2ATR, riskBudget,
			fmt.Sprintf("Break and hold below daily support %s", formatPrice(daily.Support))),
		newPlan(models.PlanAggressive, aggressiveEntry, aggressiveStop,
			aggressiveEntry+atr*aggressiveT1ATR, aggressiveEntry+atr*aggressiveT2ATR, riskBudget,
			fmt.Sprintf("4H structure breaks and closes below %s", formatPrice(aggressiveStop))),
	}, nil
}

func newPlan(name models.PlanName, entry, stop, t1, t2, riskBudget float64, invalidation string) models.Plan {
	return models.Plan{
		Name:              name,
		Direction:         models.DirectionLong,
		Entry:             mathutil.RoundByMagnitude(entry),
		Stop:              mathutil.RoundByMagnitude(stop),
		Target1:           mathutil.RoundByMagnitude(t1),
		Target2:           mathutil.RoundByMagnitude(t2),
		Invalidation:      invalidation,
		RiskRewardToT1:    RiskReward(entry, stop, t1),
		RiskRewardToT2:    RiskReward(entry, stop, t2),
		PositionSizeUnits: mathutil.RoundByMagnitude(PositionSize(riskBudget, entry, stop)),
	}
}

// RiskReward отношение |target-entry| к |entry-stop|, округленное до 2 знаков; 0 при нулевом риске
func RiskReward(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return mathutil.Round(math.Abs(target-entry)/risk, 2)
}

// PositionSize количество единиц при заданном бюджете риска
func PositionSize(riskBudget, entry, stop float64) float64 {
	return riskBudget / math.Max(minRiskPerUnit, entry-stop)
}

func floorStop(stop float64) float64 {
	return math.Max(minRiskPerUnit, stop)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(mathutil.RoundByMagnitude(v), 'f', -1, 64)
}
