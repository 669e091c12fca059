package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/quantladder/internal/advisor"
	"github.com/skalibog/quantladder/internal/analysis/liquidation"
	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/internal/exchange"
	"github.com/skalibog/quantladder/pkg/models"
)

type fakeSource struct {
	mu      sync.Mutex
	candles map[models.Timeframe][]models.Candle
	errs    map[models.Timeframe]error
	symbols []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		candles: map[models.Timeframe][]models.Candle{
			models.Timeframe4H: generateCandles(300, 100, 0.5),
			models.Timeframe1D: generateCandles(300, 100, 0.5),
			models.Timeframe1W: generateCandles(120, 100, 0.5),
		},
		errs: map[models.Timeframe]error{},
	}
}

func (s *fakeSource) GetCandles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	s.mu.Lock()
	s.symbols = append(s.symbols, symbol)
	s.mu.Unlock()
	if err := s.errs[tf]; err != nil {
		return nil, err
	}
	return s.candles[tf], nil
}

type fakeFormatter struct {
	report *models.Report
	err    error
	calls  int
}

func (f *fakeFormatter) Format(ctx context.Context, summary models.QuantSummary, plans []models.Plan) (*models.Report, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

var (
	_ exchange.CandleSource = (*fakeSource)(nil)
	_ advisor.Formatter     = (*fakeFormatter)(nil)
)

func newTestAnalyzer(source exchange.CandleSource, formatter advisor.Formatter) *Analyzer {
	a := NewAnalyzer(config.Default().Analysis, source, formatter)
	a.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestMarketData(t *testing.T) {
	source := newFakeSource()
	market, err := newTestAnalyzer(source, nil).MarketData(context.Background(), " btc ")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", market.Symbol)
	assert.Equal(t, "2024-03-01T12:00:00.000Z", market.AsOfISO)
	assert.Len(t, market.Data, 3)
	assert.Len(t, market.Data[models.Timeframe1W], 120)
	assert.ElementsMatch(t, []string{"BTCUSDT", "BTCUSDT", "BTCUSDT"}, source.symbols)
}

func TestMarketDataRejectsInvalidSymbol(t *testing.T) {
	source := newFakeSource()
	_, err := newTestAnalyzer(source, nil).MarketData(context.Background(), "b-t")
	assert.ErrorIs(t, err, exchange.ErrInvalidSymbol)
	assert.Empty(t, source.symbols)
}

func TestMarketDataPropagatesFetchError(t *testing.T) {
	source := newFakeSource()
	fetchErr := errors.New("Binance error for 1d: timeout")
	source.errs[models.Timeframe1D] = fetchErr

	_, err := newTestAnalyzer(source, nil).MarketData(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, fetchErr)
}

func TestAnalyzeWithoutFormatterUsesFallback(t *testing.T) {
	result, err := newTestAnalyzer(newFakeSource(), nil).Analyze(context.Background(), "eth", 10000)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", result.Symbol)
	assert.True(t, result.UsedFallback)
	assert.Equal(t, result.Summary.AsOfISO, result.AsOfISO)
	assert.Len(t, result.Summary.Analyses, 3)
	assert.Len(t, result.MarketData, 3)
	require.Len(t, result.Report.TradePlan, 3)
	assert.Equal(t, models.PlanConservative, result.Report.TradePlan[0].Name)
	assert.Equal(t, advisor.Disclaimer, result.Report.Disclaimer)
	assert.Equal(t, advisor.SummaryText(result.Summary), result.Report.ProAnalysis)
}

func TestAnalyzeUsesFormatterReport(t *testing.T) {
	custom := &models.Report{ProAnalysis: "EMA/RSI/MACD/Bollinger/ATR look constructive", Disclaimer: advisor.Disclaimer}
	formatter := &fakeFormatter{report: custom}

	result, err := newTestAnalyzer(newFakeSource(), formatter).Analyze(context.Background(), "BTCUSDT", 5000)
	require.NoError(t, err)

	assert.False(t, result.UsedFallback)
	assert.Equal(t, *custom, result.Report)
	assert.Equal(t, 1, formatter.calls)
}

func TestAnalyzeFallsBackOnFormatterError(t *testing.T) {
	formatter := &fakeFormatter{err: advisor.ErrInvalidReport}

	result, err := newTestAnalyzer(newFakeSource(), formatter).Analyze(context.Background(), "BTCUSDT", 5000)
	require.NoError(t, err)
	assert.True(t, result.UsedFallback)
	assert.Len(t, result.Report.Scenarios, 3)
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("неположительный счет", func(t *testing.T) {
		_, err := newTestAnalyzer(newFakeSource(), nil).Analyze(context.Background(), "BTCUSDT", 0)
		assert.Error(t, err)
	})

	t.Run("мало свечей", func(t *testing.T) {
		source := newFakeSource()
		source.candles[models.Timeframe1W] = generateCandles(20, 100, 1)
		_, err := newTestAnalyzer(source, nil).Analyze(context.Background(), "BTCUSDT", 1000)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1w")
	})
}

func TestLiquidation(t *testing.T) {
	a := newTestAnalyzer(newFakeSource(), nil)
	opts := a.LiquidationOptions()
	assert.Equal(t, models.Timeframe4H, opts.Timeframe)

	ladder, err := a.Liquidation(context.Background(), "sol", models.Timeframe4H, opts)
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", ladder.Symbol)
	assert.Equal(t, models.Timeframe4H, ladder.Timeframe)
	assert.Len(t, ladder.Levels, 31)
	assert.Len(t, ladder.TopLongLevels, 4)
}

func TestLiquidationRejectsBadInput(t *testing.T) {
	a := newTestAnalyzer(newFakeSource(), nil)

	_, err := a.Liquidation(context.Background(), "BTCUSDT", models.Timeframe("15m"), liquidation.Options{})
	assert.Error(t, err)

	_, err = a.Liquidation(context.Background(), "??", models.Timeframe1D, liquidation.Options{})
	assert.ErrorIs(t, err, exchange.ErrInvalidSymbol)
}

func TestLiquidationRejectsOversizedLadderBeforeFetch(t *testing.T) {
	source := newFakeSource()
	a := newTestAnalyzer(source, nil)

	for _, opts := range []liquidation.Options{
		{RangePct: 0.99, StepPct: 1e-7},
		{RangePct: 0.1, StepPct: 0.2},
	} {
		_, err := a.Liquidation(context.Background(), "BTCUSDT", models.Timeframe4H, opts)
		assert.ErrorIs(t, err, liquidation.ErrInvalidOptions)
	}
	assert.Empty(t, source.symbols, "свечи не запрашиваются")
}
