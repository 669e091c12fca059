// Package mathutil содержит общие численные помощники: округление, ограничение, средние.
package mathutil

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round округляет до places знаков, половина от нуля, по десятичному представлению
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}

// RoundPtr округляет значение и возвращает указатель; NaN и бесконечность дают nil
func RoundPtr(v float64, places int) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := Round(v, places)
	return &r
}

// RoundByMagnitude округляет цену по величине: >=1000 до 2 знаков, >=1 до 4, иначе до 6
func RoundByMagnitude(v float64) float64 {
	switch {
	case v >= 1000:
		return Round(v, 2)
	case v >= 1:
		return Round(v, 4)
	default:
		return Round(v, 6)
	}
}

// Clamp ограничивает значение диапазоном [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Mean среднее арифметическое; 0 для пустого ряда
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
