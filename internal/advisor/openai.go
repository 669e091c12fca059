package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/pkg/logger"
	"github.com/skalibog/quantladder/pkg/models"
)

// OpenAIFormatter строит отчет через chat completions.
// Серия сбоев размыкает предохранитель, и вызовы сразу возвращают ошибку.
type OpenAIFormatter struct {
	client       *openai.Client
	config       config.AdvisorConfig
	riskPerTrade float64
	breaker      *gobreaker.CircuitBreaker
	log          *zap.Logger
}

// NewOpenAIFormatter создает форматтер; cfg.BaseURL переопределяет адрес API.
// riskPerTrade попадает в промпт; неположительное значение заменяется значением по умолчанию.
func NewOpenAIFormatter(cfg config.AdvisorConfig, riskPerTrade float64) *OpenAIFormatter {
	if riskPerTrade <= 0 {
		riskPerTrade = config.Default().Analysis.TradePlan.RiskPerTrade
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	log := logger.Named("advisor")
	settings := gobreaker.Settings{
		Name:     "openai",
		Interval: time.Minute,
		Timeout:  time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Состояние предохранителя изменилось",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &OpenAIFormatter{
		client:       openai.NewClientWithConfig(clientConfig),
		config:       cfg,
		riskPerTrade: riskPerTrade,
		breaker:      gobreaker.NewCircuitBreaker(settings),
		log:          log,
	}
}

// Format запрашивает отчет у модели и проверяет его
func (f *OpenAIFormatter) Format(ctx context.Context, summary models.QuantSummary, plans []models.Plan) (*models.Report, error) {
	prompt, err := BuildPrompt(summary, plans, f.riskPerTrade)
	if err != nil {
		return nil, err
	}

	if f.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(f.config.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("генерация отчета временно отключена: %w", err)
		}
		return nil, err
	}

	raw := result.(string)
	report, err := ParseReport(raw)
	if err != nil {
		f.log.Warn("Модель вернула некорректный отчет", zap.Int("length", len(raw)), zap.Error(err))
		return nil, err
	}
	return report, nil
}

func (f *OpenAIFormatter) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       f.config.Model,
		Temperature: f.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ошибка запроса к OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("Empty model response")
	}
	return resp.Choices[0].Message.Content, nil
}
