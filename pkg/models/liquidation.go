package models

// LiquidationZone положение уровня относительно текущей цены
type LiquidationZone string

const (
	ZoneAbove   LiquidationZone = "above"
	ZoneBelow   LiquidationZone = "below"
	ZoneCurrent LiquidationZone = "current"
)

// LiquidationLevel оценка ликвидаций на одном ценовом уровне
type LiquidationLevel struct {
	Price       float64         `json:"price"`
	DistancePct float64         `json:"distancePct"`
	LongUSD     int64           `json:"longUsd"`
	ShortUSD    int64           `json:"shortUsd"`
	TotalUSD    int64           `json:"totalUsd"`
	Zone        LiquidationZone `json:"zone"`
}

// LiquidationMap ценовая лестница оценочных ликвидаций
type LiquidationMap struct {
	Symbol         string             `json:"symbol"`
	Timeframe      Timeframe          `json:"timeframe"`
	CurrentPrice   float64            `json:"currentPrice"`
	GeneratedAtISO string             `json:"generatedAtISO"`
	Levels         []LiquidationLevel `json:"levels"`
	TopLongLevels  []LiquidationLevel `json:"topLongLevels"`
	TopShortLevels []LiquidationLevel `json:"topShortLevels"`
	ModelNotes     []string           `json:"modelNotes"`
}
