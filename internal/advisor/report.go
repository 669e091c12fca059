// Package advisor превращает сводку и планы в обучающий текстовый отчет:
// через языковую модель или по детерминированному шаблону.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/skalibog/quantladder/pkg/models"
)

// Disclaimer обязательная оговорка отчета
const Disclaimer = "Educational only, not financial advice."

// ErrInvalidReport ответ модели не удалось разобрать или он не прошел проверку
var ErrInvalidReport = errors.New("некорректный отчет модели")

// Formatter строит отчет по сводке и планам
type Formatter interface {
	Format(ctx context.Context, summary models.QuantSummary, plans []models.Plan) (*models.Report, error)
}

var validate = validator.New()

// ParseReport разбирает JSON ответа модели. Если весь ответ не является JSON,
// разбирается фрагмент от первой '{' до последней '}'.
func ParseReport(raw string) (*models.Report, error) {
	var report models.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: Model did not return valid JSON", ErrInvalidReport)
		}
		report = models.Report{}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &report); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
		}
	}

	if err := validate.Struct(report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return &report, nil
}

// SummaryText краткая строка режима для профессионального раздела
func SummaryText(summary models.QuantSummary) string {
	return fmt.Sprintf("Regime=%s, alignmentScore=%v, 1D trend=%s, 4H trend=%s",
		summary.MarketRegime,
		summary.AlignmentScore,
		summary.Analyses[models.Timeframe1D].Trend,
		summary.Analyses[models.Timeframe4H].Trend)
}

// FallbackReport шаблонный отчет, не требующий языковой модели
func FallbackReport(symbol string, summary models.QuantSummary, plans []models.Plan) *models.Report {
	return &models.Report{
		BeginnerExplanation: symbol + " is being checked using trend (EMA), momentum (RSI/MACD), volatility (Bollinger/ATR), and volume. " +
			"If indicators align, plans can be followed; if they conflict, wait for clearer confirmation.",
		ProAnalysis: SummaryText(summary),
		Scenarios: []models.Scenario{
			{
				Name:        "Bullish continuation",
				Description: "Price holds above key support and 4H/1D momentum remains constructive.",
			},
			{
				Name:        "Range/chop",
				Description: "Price oscillates between support and resistance with mixed RSI/MACD signals.",
			},
			{
				Name:        "Bearish failure",
				Description: "Support breaks with rising sell volume and momentum turns negative.",
			},
		},
		TradePlan: plans,
		Risks: []string{
			"Crypto volatility can invalidate setups quickly.",
			"Macro or exchange-specific news may cause sudden moves.",
			"Low liquidity periods can increase slippage.",
		},
		Disclaimer: Disclaimer,
	}
}
