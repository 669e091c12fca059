package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/pkg/models"
)

const queryResponse = `#datatype,string,long,dateTime:RFC3339,double,double,double,double,double
#group,false,false,false,false,false,false,false,false
#default,_result,,,,,,,
,result,table,_time,close,high,low,open,volume
,,0,2023-11-15T02:13:20Z,111,112,101,105,12
,,0,2023-11-14T22:13:20Z,105,110,95,100,10

`

type fakeInflux struct {
	mu      sync.Mutex
	written string
	query   string
}

func (f *fakeInflux) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"influxdb","message":"ready","status":"pass","checks":[],"version":"2.7.0","commit":"test"}`)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.written += string(body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/query", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.query = string(body)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = io.WriteString(w, queryResponse)
	})
	return mux
}

func newTestStorage(t *testing.T) (*InfluxDBStorage, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	store, err := NewInfluxDBStorage(context.Background(), config.StorageConfig{
		URL:          server.URL,
		Token:        "token",
		Organization: "org",
		Bucket:       "candles",
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store, fake
}

func TestSaveCandlesWritesLineProtocol(t *testing.T) {
	store, fake := newTestStorage(t)

	err := store.SaveCandles(context.Background(), "BTCUSDT", models.Timeframe1D, []models.Candle{
		{OpenTime: 1700000000000, Open: 100, High: 110, Low: 95, Close: 105, Volume: 10},
	})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.True(t, strings.HasPrefix(fake.written, "candles,interval=1d,symbol=BTCUSDT "), fake.written)
	assert.Contains(t, fake.written, "close=105")
	assert.Contains(t, fake.written, "1700000000000000000")
}

func TestSaveCandlesSkipsEmptyBatch(t *testing.T) {
	store, fake := newTestStorage(t)

	require.NoError(t, store.SaveCandles(context.Background(), "BTCUSDT", models.Timeframe1D, nil))
	assert.Empty(t, fake.written)
}

func TestGetCandlesReturnsAscending(t *testing.T) {
	store, fake := newTestStorage(t)

	candles, err := store.GetCandles(context.Background(), "BTCUSDT", models.Timeframe4H, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, models.Candle{OpenTime: 1700000000000, Open: 100, High: 110, Low: 95, Close: 105, Volume: 10}, candles[0])
	assert.Equal(t, int64(1700014400000), candles[1].OpenTime)
	assert.Equal(t, 111.0, candles[1].Close)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.query, `r.symbol == \"BTCUSDT\"`)
	assert.Contains(t, fake.query, "limit(n: 2)")
}

func TestCandleQueryLookback(t *testing.T) {
	q := candleQuery("candles", "ETHUSDT", models.Timeframe1W, 200)
	assert.Contains(t, q, "range(start: -33768h)")
	assert.Contains(t, q, `r.interval == "1w"`)
}
