package models

import (
	"time"
)

// ISOLayout формат временных меток во всех ответах (UTC, миллисекунды)
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatISO приводит время к UTC и форматирует в ISOLayout
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// Timeframe таймфрейм свечей
type Timeframe string

const (
	Timeframe4H Timeframe = "4h"
	Timeframe1D Timeframe = "1d"
	Timeframe1W Timeframe = "1w"
)

// Timeframes три отслеживаемых таймфрейма в порядке анализа
var Timeframes = []Timeframe{Timeframe4H, Timeframe1D, Timeframe1W}

// Valid сообщает, входит ли таймфрейм в поддерживаемый набор
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe4H, Timeframe1D, Timeframe1W:
		return true
	}
	return false
}

// Duration длительность одной свечи таймфрейма
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe4H:
		return 4 * time.Hour
	case Timeframe1D:
		return 24 * time.Hour
	case Timeframe1W:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Candle представляет свечу
type Candle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Time возвращает время открытия свечи
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

// Trend направление тренда
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// Momentum сила импульса
type Momentum string

const (
	MomentumStrong   Momentum = "strong"
	MomentumModerate Momentum = "moderate"
	MomentumWeak     Momentum = "weak"
	MomentumMixed    Momentum = "mixed"
)

// Regime рыночный режим
type Regime string

const (
	RegimeTrend Regime = "trend"
	RegimeRange Regime = "range"
	RegimeMixed Regime = "mixed"
)

// IndicatorSnapshot значения индикаторов на последней свече.
// nil означает, что ряд короче периода индикатора.
type IndicatorSnapshot struct {
	EMA20         *float64 `json:"ema20"`
	EMA50         *float64 `json:"ema50"`
	EMA200        *float64 `json:"ema200"`
	RSI14         *float64 `json:"rsi14"`
	MACD          *float64 `json:"macd"`
	MACDSignal    *float64 `json:"macdSignal"`
	MACDHistogram *float64 `json:"macdHistogram"`
	BBUpper       *float64 `json:"bbUpper"`
	BBMiddle      *float64 `json:"bbMiddle"`
	BBLower       *float64 `json:"bbLower"`
	ATR14         *float64 `json:"atr14"`
	VolumeSMA20   *float64 `json:"volumeSma20"`
}

// TimeframeAnalysis результат анализа одного таймфрейма
type TimeframeAnalysis struct {
	Timeframe   Timeframe         `json:"timeframe"`
	LatestPrice float64           `json:"latestPrice"`
	Trend       Trend             `json:"trend"`
	Momentum    Momentum          `json:"momentum"`
	Support     float64           `json:"support"`
	Resistance  float64           `json:"resistance"`
	Indicators  IndicatorSnapshot `json:"indicators"`
}

// QuantSummary сводка по трем таймфреймам
type QuantSummary struct {
	Symbol         string                          `json:"symbol"`
	AsOfISO        string                          `json:"asOfISO"`
	MarketRegime   Regime                          `json:"marketRegime"`
	AlignmentScore float64                         `json:"alignmentScore"`
	Analyses       map[Timeframe]TimeframeAnalysis `json:"analyses"`
}

// PlanName название торгового плана
type PlanName string

const (
	PlanConservative PlanName = "Conservative"
	PlanBase         PlanName = "Base"
	PlanAggressive   PlanName = "Aggressive"
)

// Direction направление плана (только спот, без шортов)
type Direction string

const (
	DirectionLong Direction = "long"
	DirectionWait Direction = "wait"
)

// Plan торговый план с фиксированным риском
type Plan struct {
	Name              PlanName  `json:"name" validate:"required,oneof=Conservative Base Aggressive"`
	Direction         Direction `json:"direction" validate:"required,oneof=long wait"`
	Entry             float64   `json:"entry"`
	Stop              float64   `json:"stop"`
	Target1           float64   `json:"target1"`
	Target2           float64   `json:"target2"`
	Invalidation      string    `json:"invalidation" validate:"required"`
	RiskRewardToT1    float64   `json:"riskRewardToT1" validate:"gte=0"`
	RiskRewardToT2    float64   `json:"riskRewardToT2" validate:"gte=0"`
	PositionSizeUnits float64   `json:"positionSizeUnits" validate:"gte=0"`
}

// Scenario сценарий развития цены в отчете
type Scenario struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// Report текстовый отчет для пользователя
type Report struct {
	BeginnerExplanation string     `json:"beginner_explanation" validate:"required"`
	ProAnalysis         string     `json:"pro_analysis" validate:"required"`
	Scenarios           []Scenario `json:"scenarios" validate:"required,dive"`
	TradePlan           []Plan     `json:"trade_plan" validate:"required,dive"`
	Risks               []string   `json:"risks" validate:"required,dive,required"`
	Disclaimer          string     `json:"disclaimer" validate:"required"`
}

// MarketData свечи по всем таймфреймам
type MarketData struct {
	Symbol  string                 `json:"symbol"`
	Data    map[Timeframe][]Candle `json:"data"`
	AsOfISO string                 `json:"asOfISO"`
}

// AnalysisResult полный ответ анализа
type AnalysisResult struct {
	Symbol       string                 `json:"symbol"`
	AsOfISO      string                 `json:"asOfISO"`
	MarketData   map[Timeframe][]Candle `json:"marketData"`
	Summary      QuantSummary           `json:"summary"`
	Report       Report                 `json:"report"`
	UsedFallback bool                   `json:"usedFallback"`
}
