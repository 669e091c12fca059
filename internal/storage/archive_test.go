package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/quantladder/internal/exchange"
	"github.com/skalibog/quantladder/pkg/models"
)

type memoryStore struct {
	saved   map[string][]models.Candle
	limit   int
	saveErr error
	getErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{saved: make(map[string][]models.Candle)}
}

func (m *memoryStore) SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[symbol+":"+string(tf)] = candles
	return nil
}

func (m *memoryStore) GetCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	m.limit = limit
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.saved[symbol+":"+string(tf)], nil
}

var archivedCandles = []models.Candle{
	{OpenTime: 1, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
	{OpenTime: 2, Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 11},
}

func staticSource(candles []models.Candle, err error) exchange.CandleSource {
	return exchange.SourceFunc(func(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
		return candles, err
	})
}

func TestArchiveSourceWritesThrough(t *testing.T) {
	store := newMemoryStore()
	source := NewArchiveSource(staticSource(archivedCandles, nil), store, false)

	candles, err := source.GetCandles(context.Background(), "BTCUSDT", models.Timeframe1D)
	require.NoError(t, err)
	assert.Equal(t, archivedCandles, candles)
	assert.Equal(t, archivedCandles, store.saved["BTCUSDT:1d"])
}

func TestArchiveSourceIgnoresSaveErrors(t *testing.T) {
	store := newMemoryStore()
	store.saveErr = errors.New("influx down")
	source := NewArchiveSource(staticSource(archivedCandles, nil), store, true)

	candles, err := source.GetCandles(context.Background(), "BTCUSDT", models.Timeframe4H)
	require.NoError(t, err)
	assert.Equal(t, archivedCandles, candles)
}

func TestArchiveSourceFallback(t *testing.T) {
	upstreamErr := errors.New("binance down")

	t.Run("отдает архив", func(t *testing.T) {
		store := newMemoryStore()
		store.saved["BTCUSDT:1w"] = archivedCandles
		source := NewArchiveSource(staticSource(nil, upstreamErr), store, true)

		candles, err := source.GetCandles(context.Background(), "BTCUSDT", models.Timeframe1W)
		require.NoError(t, err)
		assert.Equal(t, archivedCandles, candles)
		assert.Equal(t, 200, store.limit)
	})

	t.Run("пустой архив возвращает ошибку upstream", func(t *testing.T) {
		source := NewArchiveSource(staticSource(nil, upstreamErr), newMemoryStore(), true)

		_, err := source.GetCandles(context.Background(), "BTCUSDT", models.Timeframe1W)
		assert.ErrorIs(t, err, upstreamErr)
	})

	t.Run("ошибка архива сохраняет исходную ошибку", func(t *testing.T) {
		store := newMemoryStore()
		store.getErr = errors.New("query failed")
		source := NewArchiveSource(staticSource(nil, upstreamErr), store, true)

		_, err := source.GetCandles(context.Background(), "BTCUSDT", models.Timeframe1D)
		assert.ErrorIs(t, err, upstreamErr)
		assert.Contains(t, err.Error(), "query failed")
	})

	t.Run("fallback выключен", func(t *testing.T) {
		store := newMemoryStore()
		store.saved["BTCUSDT:1d"] = archivedCandles
		source := NewArchiveSource(staticSource(nil, upstreamErr), store, false)

		_, err := source.GetCandles(context.Background(), "BTCUSDT", models.Timeframe1D)
		assert.ErrorIs(t, err, upstreamErr)
	})
}
