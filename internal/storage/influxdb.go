// internal/storage/influxdb.go
package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/pkg/models"
)

const candleMeasurement = "candles"

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(ctx context.Context, cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveCandles сохраняет свечи одной пачкой; повторная запись той же свечи перезаписывает точку
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	points := make([]*write.Point, len(candles))
	for i, c := range candles {
		points[i] = candlePoint(symbol, tf, c)
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей %s %s: %w", symbol, tf, err)
	}
	return nil
}

// GetCandles получает последние limit свечей в порядке возрастания времени
func (s *InfluxDBStorage) GetCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	result, err := s.queryAPI.Query(ctx, candleQuery(s.bucket, symbol, tf, limit))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}
	defer result.Close()

	var candles []models.Candle
	for result.Next() {
		record := result.Record()

		open, _ := record.ValueByKey("open").(float64)
		high, _ := record.ValueByKey("high").(float64)
		low, _ := record.ValueByKey("low").(float64)
		closePrice, _ := record.ValueByKey("close").(float64)
		volume, _ := record.ValueByKey("volume").(float64)

		candles = append(candles, models.Candle{
			OpenTime: record.Time().UnixMilli(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   volume,
		})
	}

	// Проверяем на ошибки при обработке результатов
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	// запрос сортирует по убыванию, чтобы limit брал самые свежие
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func candlePoint(symbol string, tf models.Timeframe, c models.Candle) *write.Point {
	return influxdb2.NewPoint(
		candleMeasurement,
		map[string]string{
			"symbol":   symbol,
			"interval": string(tf),
		},
		map[string]interface{}{
			"open":   c.Open,
			"high":   c.High,
			"low":    c.Low,
			"close":  c.Close,
			"volume": c.Volume,
		},
		c.Time(),
	)
}

// candleQuery Flux-запрос последних свечей; окно с запасом покрывает limit свечей таймфрейма
func candleQuery(bucket, symbol string, tf models.Timeframe, limit int) string {
	lookback := time.Duration(limit+1) * tf.Duration()
	return fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -%dh)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.symbol == "%s")
			|> filter(fn: (r) => r.interval == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> group()
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, bucket, int(lookback.Hours()), candleMeasurement, symbol, tf, limit)
}
