package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/internal/exchange"
	"github.com/skalibog/quantladder/pkg/models"
)

var testCandles = []models.Candle{
	{OpenTime: 1700000000000, Open: 100, High: 110, Low: 95, Close: 105, Volume: 10},
	{OpenTime: 1700014400000, Open: 105, High: 112, Low: 101, Close: 111, Volume: 12},
}

type countingSource struct {
	calls   int
	candles []models.Candle
	err     error
}

func (s *countingSource) GetCandles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	s.calls++
	return s.candles, s.err
}

var _ exchange.CandleSource = (*countingSource)(nil)

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{TTLSecond: map[string]int{"4h": 60, "1d": 300, "1w": 1800}}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "candles:BTCUSDT:1d", Key("BTCUSDT", models.Timeframe1D))
}

func TestGetCandlesCacheHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	upstream := &countingSource{}
	source := NewRedisSource(db, upstream, testCacheConfig())

	payload, err := json.Marshal(testCandles)
	require.NoError(t, err)
	mock.ExpectGet("candles:BTCUSDT:4h").SetVal(string(payload))

	candles, err := source.GetCandles(context.Background(), "BTCUSDT", models.Timeframe4H)
	require.NoError(t, err)
	assert.Equal(t, testCandles, candles)
	assert.Equal(t, 0, upstream.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCandlesCacheMissStoresWithTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	upstream := &countingSource{candles: testCandles}
	source := NewRedisSource(db, upstream, testCacheConfig())

	payload, err := json.Marshal(testCandles)
	require.NoError(t, err)
	mock.ExpectGet("candles:BTCUSDT:1w").RedisNil()
	mock.ExpectSet("candles:BTCUSDT:1w", payload, 30*time.Minute).SetVal("OK")

	candles, err := source.GetCandles(context.Background(), "BTCUSDT", models.Timeframe1W)
	require.NoError(t, err)
	assert.Equal(t, testCandles, candles)
	assert.Equal(t, 1, upstream.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCandlesRedisErrorFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	upstream := &countingSource{candles: testCandles}
	source := NewRedisSource(db, upstream, testCacheConfig())

	payload, err := json.Marshal(testCandles)
	require.NoError(t, err)
	mock.ExpectGet("candles:ETHUSDT:1d").SetErr(errors.New("connection refused"))
	mock.ExpectSet("candles:ETHUSDT:1d", payload, 5*time.Minute).SetErr(errors.New("connection refused"))

	candles, err := source.GetCandles(context.Background(), "ETHUSDT", models.Timeframe1D)
	require.NoError(t, err, "ошибки Redis не должны доходить до вызывающего")
	assert.Equal(t, testCandles, candles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCandlesUpstreamErrorIsNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	upstream := &countingSource{err: errors.New("binance down")}
	source := NewRedisSource(db, upstream, testCacheConfig())

	mock.ExpectGet("candles:BTCUSDT:4h").SetErr(redis.Nil)

	_, err := source.GetCandles(context.Background(), "BTCUSDT", models.Timeframe4H)
	assert.EqualError(t, err, "binance down")
	assert.NoError(t, mock.ExpectationsWereMet())
}
