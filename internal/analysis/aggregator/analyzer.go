package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/quantladder/internal/advisor"
	"github.com/skalibog/quantladder/internal/analysis/liquidation"
	"github.com/skalibog/quantladder/internal/analysis/technical"
	"github.com/skalibog/quantladder/internal/analysis/tradeplan"
	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/internal/exchange"
	"github.com/skalibog/quantladder/pkg/logger"
	"github.com/skalibog/quantladder/pkg/models"
)

// Analyzer объединяет все аналитические компоненты
type Analyzer struct {
	config           config.AnalysisConfig
	source           exchange.CandleSource
	formatter        advisor.Formatter
	technicalAnal    *technical.Analyzer
	planBuilder      *tradeplan.Builder
	liquidationModel *liquidation.Modeler
	now              func() time.Time
}

// NewAnalyzer создает новый анализатор. formatter может быть nil: тогда отчет строится по шаблону.
func NewAnalyzer(cfg config.AnalysisConfig, source exchange.CandleSource, formatter advisor.Formatter) *Analyzer {
	return &Analyzer{
		config:           cfg,
		source:           source,
		formatter:        formatter,
		technicalAnal:    technical.NewAnalyzer(cfg.Technical),
		planBuilder:      tradeplan.NewBuilder(cfg.TradePlan),
		liquidationModel: liquidation.NewModeler(),
		now:              time.Now,
	}
}

// MarketData получает свечи всех таймфреймов параллельно; первая ошибка отменяет остальные запросы
func (a *Analyzer) MarketData(ctx context.Context, symbol string) (models.MarketData, error) {
	symbol = exchange.NormalizeSymbol(symbol)
	if err := exchange.ValidateSymbol(symbol); err != nil {
		return models.MarketData{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	data := make(map[models.Timeframe][]models.Candle, len(models.Timeframes))

	for _, tf := range models.Timeframes {
		tf := tf
		g.Go(func() error {
			candles, err := a.source.GetCandles(gctx, symbol, tf)
			if err != nil {
				return err
			}
			logger.Debug("AGGREGATOR: Свечи получены",
				zap.String("symbol", symbol),
				zap.String("timeframe", string(tf)),
				zap.Int("count", len(candles)))

			mu.Lock()
			data[tf] = candles
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return models.MarketData{}, err
	}

	return models.MarketData{
		Symbol:  symbol,
		Data:    data,
		AsOfISO: models.FormatISO(a.now()),
	}, nil
}

// Analyze строит сводку, планы и отчет для символа
func (a *Analyzer) Analyze(ctx context.Context, symbol string, accountEquity float64) (*models.AnalysisResult, error) {
	if accountEquity <= 0 {
		return nil, fmt.Errorf("размер счета должен быть положительным, получено %v", accountEquity)
	}

	market, err := a.MarketData(ctx, symbol)
	if err != nil {
		return nil, err
	}

	summary, err := BuildQuantSummary(a.technicalAnal, market.Symbol, market.Data, a.now())
	if err != nil {
		return nil, err
	}

	plans, err := a.planBuilder.Build(summary, accountEquity)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения планов: %w", err)
	}

	logger.Debug("AGGREGATOR: Сводка построена",
		zap.String("symbol", market.Symbol),
		zap.String("regime", string(summary.MarketRegime)),
		zap.Float64("alignment", summary.AlignmentScore))

	report, usedFallback := a.report(ctx, market.Symbol, summary, plans)

	return &models.AnalysisResult{
		Symbol:       market.Symbol,
		AsOfISO:      summary.AsOfISO,
		MarketData:   market.Data,
		Summary:      summary,
		Report:       *report,
		UsedFallback: usedFallback,
	}, nil
}

// report запрашивает отчет у форматтера и переходит на шаблон при его отсутствии или ошибке
func (a *Analyzer) report(ctx context.Context, symbol string, summary models.QuantSummary, plans []models.Plan) (*models.Report, bool) {
	if a.formatter == nil {
		return advisor.FallbackReport(symbol, summary, plans), true
	}

	report, err := a.formatter.Format(ctx, summary, plans)
	if err != nil {
		logger.Warn("Предупреждение: отчет модели недоступен, используем шаблон",
			zap.String("symbol", symbol),
			zap.Error(err))
		return advisor.FallbackReport(symbol, summary, plans), true
	}
	return report, false
}

// Liquidation строит лестницу ликвидаций по одному таймфрейму
func (a *Analyzer) Liquidation(ctx context.Context, symbol string, tf models.Timeframe, opts liquidation.Options) (models.LiquidationMap, error) {
	symbol = exchange.NormalizeSymbol(symbol)
	if err := exchange.ValidateSymbol(symbol); err != nil {
		return models.LiquidationMap{}, err
	}
	if !tf.Valid() {
		return models.LiquidationMap{}, fmt.Errorf("неподдерживаемый таймфрейм: %s", tf)
	}
	if err := opts.Validate(); err != nil {
		return models.LiquidationMap{}, err
	}

	candles, err := a.source.GetCandles(ctx, symbol, tf)
	if err != nil {
		return models.LiquidationMap{}, err
	}

	opts.Symbol = symbol
	opts.Timeframe = tf
	return a.liquidationModel.Build(candles, opts), nil
}

// LiquidationOptions параметры лестницы из конфигурации
func (a *Analyzer) LiquidationOptions() liquidation.Options {
	return liquidation.Options{
		Timeframe: models.Timeframe(a.config.Liquidation.Timeframe),
		RangePct:  a.config.Liquidation.RangePct,
		StepPct:   a.config.Liquidation.StepPct,
	}
}
