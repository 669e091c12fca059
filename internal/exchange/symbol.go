package exchange

import (
	"errors"
	"regexp"
	"strings"

	"github.com/skalibog/quantladder/pkg/models"
)

// QuoteAsset котируемый актив всех пар
const QuoteAsset = "USDT"

// ErrInvalidSymbol символ не прошел проверку формата
var ErrInvalidSymbol = errors.New("Symbol must be alphanumeric and end with USDT (example: BTCUSDT)")

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{3,20}USDT$`)

// candleLimits глубина истории для каждого таймфрейма
var candleLimits = map[models.Timeframe]int{
	models.Timeframe4H: 500,
	models.Timeframe1D: 500,
	models.Timeframe1W: 200,
}

// NormalizeSymbol убирает пробелы, переводит в верхний регистр и дописывает USDT
func NormalizeSymbol(input string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(input))
	if !strings.HasSuffix(cleaned, QuoteAsset) {
		return cleaned + QuoteAsset
	}
	return cleaned
}

// ValidateSymbol проверяет нормализованный символ
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return ErrInvalidSymbol
	}
	return nil
}

// CandleLimit количество запрашиваемых свечей для таймфрейма
func CandleLimit(tf models.Timeframe) int {
	if limit, ok := candleLimits[tf]; ok {
		return limit
	}
	return 500
}
