package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	HTTP     HTTPConfig     `yaml:"http"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
}

// ExchangeConfig содержит настройки подключения к Binance (спот, публичные данные)
type ExchangeConfig struct {
	BaseURLs          []string `yaml:"base_urls"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	MaxAttempts       int      `yaml:"max_attempts"`
	BackoffMinMs      int      `yaml:"backoff_min_ms"`
	BackoffMaxMs      int      `yaml:"backoff_max_ms"`
}

// AnalysisConfig содержит настройки аналитических модулей
type AnalysisConfig struct {
	Symbol        string            `yaml:"symbol"`
	AccountEquity float64           `yaml:"account_equity"`
	Technical     TechnicalConfig   `yaml:"technical"`
	TradePlan     TradePlanConfig   `yaml:"trade_plan"`
	Liquidation   LiquidationConfig `yaml:"liquidation"`
}

// TechnicalConfig настройки технического анализа
type TechnicalConfig struct {
	MinCandles int `yaml:"min_candles"`
	SRLookback int `yaml:"sr_lookback"`
	RSIPeriod  int `yaml:"rsi_period"`
	BBPeriod   int `yaml:"bb_period"`
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
	ATRPeriod  int `yaml:"atr_period"`
}

// TradePlanConfig настройки построения торговых планов
type TradePlanConfig struct {
	RiskPerTrade float64 `yaml:"risk_per_trade"`
}

// LiquidationConfig настройки лестницы ликвидаций
type LiquidationConfig struct {
	Timeframe string  `yaml:"timeframe"`
	RangePct  float64 `yaml:"range_pct"`
	StepPct   float64 `yaml:"step_pct"`
}

// StorageConfig настройки архива свечей в InfluxDB
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Fallback     bool   `yaml:"fallback"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// CacheConfig настройки кэша свечей в Redis
type CacheConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Addr      string         `yaml:"addr"`
	Password  string         `yaml:"password"`
	DB        int            `yaml:"db"`
	TTLSecond map[string]int `yaml:"ttl_seconds"`
}

// TTL возвращает время жизни кэша для таймфрейма
func (c CacheConfig) TTL(timeframe string) time.Duration {
	if s, ok := c.TTLSecond[timeframe]; ok && s > 0 {
		return time.Duration(s) * time.Second
	}
	return time.Minute
}

// AdvisorConfig настройки генерации текстового отчета.
// Без APIKey отчет строится по шаблону.
type AdvisorConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float32 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// HTTPConfig настройки HTTP API
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	RefreshRate int `yaml:"refresh_rate_ms"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load загружает конфигурацию из файла и переменных окружения.
// Отсутствующий файл не является ошибкой: используются значения по умолчанию.
func Load(path string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Advisor.APIKey = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		c.Storage.Token = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Password = v
	}
}

func (c *Config) applyDefaults() {
	if len(c.Exchange.BaseURLs) == 0 {
		c.Exchange.BaseURLs = []string{
			"https://api.binance.com",
			"https://api1.binance.com",
			"https://api2.binance.com",
			"https://data-api.binance.vision",
		}
	}
	setInt(&c.Exchange.TimeoutSeconds, 10)
	setInt(&c.Exchange.MaxAttempts, 4)
	setInt(&c.Exchange.BackoffMinMs, 200)
	setInt(&c.Exchange.BackoffMaxMs, 3000)
	if c.Exchange.RequestsPerSecond <= 0 {
		c.Exchange.RequestsPerSecond = 10
	}

	if c.Analysis.Symbol == "" {
		c.Analysis.Symbol = "BTCUSDT"
	}
	if c.Analysis.AccountEquity == 0 {
		c.Analysis.AccountEquity = 10000
	}

	t := &c.Analysis.Technical
	setInt(&t.MinCandles, 60)
	setInt(&t.SRLookback, 40)
	setInt(&t.RSIPeriod, 14)
	setInt(&t.BBPeriod, 20)
	setInt(&t.MACDFast, 12)
	setInt(&t.MACDSlow, 26)
	setInt(&t.MACDSignal, 9)
	setInt(&t.ATRPeriod, 14)

	if c.Analysis.TradePlan.RiskPerTrade == 0 {
		c.Analysis.TradePlan.RiskPerTrade = 0.01
	}

	l := &c.Analysis.Liquidation
	if l.Timeframe == "" {
		l.Timeframe = "4h"
	}
	if l.RangePct == 0 {
		l.RangePct = 0.15
	}
	if l.StepPct == 0 {
		l.StepPct = 0.01
	}

	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "candles"
	}
	if c.Cache.Addr == "" {
		c.Cache.Addr = "localhost:6379"
	}
	if c.Cache.TTLSecond == nil {
		c.Cache.TTLSecond = map[string]int{"4h": 60, "1d": 300, "1w": 1800}
	}

	if c.Advisor.Model == "" {
		c.Advisor.Model = "gpt-4o-mini"
	}
	if c.Advisor.Temperature == 0 {
		c.Advisor.Temperature = 0.2
	}
	setInt(&c.Advisor.TimeoutSeconds, 60)

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	setInt(&c.UI.RefreshRate, 60000)

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate проверяет конфигурацию и возвращает все найденные ошибки сразу
func (c *Config) Validate() error {
	var err error

	if c.Analysis.AccountEquity <= 0 {
		err = multierr.Append(err, fmt.Errorf("analysis.account_equity должен быть положительным"))
	}
	if r := c.Analysis.TradePlan.RiskPerTrade; r <= 0 || r >= 1 {
		err = multierr.Append(err, fmt.Errorf("analysis.trade_plan.risk_per_trade должен быть в (0, 1), получено %v", r))
	}
	if c.Analysis.Technical.MinCandles < c.Analysis.Technical.MACDSlow+c.Analysis.Technical.MACDSignal {
		err = multierr.Append(err, fmt.Errorf("analysis.technical.min_candles меньше окна MACD"))
	}

	l := c.Analysis.Liquidation
	switch l.Timeframe {
	case "4h", "1d", "1w":
	default:
		err = multierr.Append(err, fmt.Errorf("analysis.liquidation.timeframe: неизвестный таймфрейм %q", l.Timeframe))
	}
	if l.RangePct <= 0 || l.RangePct >= 1 {
		err = multierr.Append(err, fmt.Errorf("analysis.liquidation.range_pct должен быть в (0, 1)"))
	}
	if l.StepPct <= 0 || l.StepPct > l.RangePct {
		err = multierr.Append(err, fmt.Errorf("analysis.liquidation.step_pct должен быть в (0, range_pct]"))
	}

	if c.Storage.Enabled && (c.Storage.URL == "" || c.Storage.Organization == "") {
		err = multierr.Append(err, fmt.Errorf("storage: для InfluxDB нужны url и organization"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("log.level: неизвестный уровень %q", c.Log.Level))
	}

	return err
}

func setInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}
