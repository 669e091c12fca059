package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/quantladder/internal/config"
	"github.com/skalibog/quantladder/pkg/models"
)

func testPlans() []models.Plan {
	return []models.Plan{
		{Name: models.PlanConservative, Direction: models.DirectionLong, Entry: 98, Stop: 91, Target1: 102.8, Target2: 106.8,
			Invalidation: "Daily close below 91 or RSI(14) on 1D < 45", RiskRewardToT1: 0.69, RiskRewardToT2: 1.26, PositionSizeUnits: 14.2857},
		{Name: models.PlanBase, Direction: models.DirectionLong, Entry: 100, Stop: 93, Target1: 106, Target2: 112,
			Invalidation: "Break and hold below daily support 95", RiskRewardToT1: 0.86, RiskRewardToT2: 1.71, PositionSizeUnits: 14.2857},
	}
}

func testSummary() models.QuantSummary {
	return models.QuantSummary{
		Symbol:         "BTCUSDT",
		AsOfISO:        "2024-03-01T12:00:00.000Z",
		MarketRegime:   models.RegimeTrend,
		AlignmentScore: 0.67,
		Analyses: map[models.Timeframe]models.TimeframeAnalysis{
			models.Timeframe4H: {Timeframe: models.Timeframe4H, Trend: models.TrendNeutral},
			models.Timeframe1D: {Timeframe: models.Timeframe1D, Trend: models.TrendBullish},
			models.Timeframe1W: {Timeframe: models.Timeframe1W, Trend: models.TrendBullish},
		},
	}
}

func validReportJSON(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(FallbackReport("BTCUSDT", testSummary(), testPlans()))
	require.NoError(t, err)
	return string(data)
}

func TestParseReportValid(t *testing.T) {
	report, err := ParseReport(validReportJSON(t))
	require.NoError(t, err)
	assert.Equal(t, Disclaimer, report.Disclaimer)
	assert.Len(t, report.TradePlan, 2)
	assert.Len(t, report.Scenarios, 3)
}

func TestParseReportRepairsWrappedJSON(t *testing.T) {
	raw := "Here is your report:\n```json\n" + validReportJSON(t) + "\n```\nGood luck!"
	report, err := ParseReport(raw)
	require.NoError(t, err)
	assert.Equal(t, "Regime=trend, alignmentScore=0.67, 1D trend=bullish, 4H trend=neutral", report.ProAnalysis)
}

func TestParseReportFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"не JSON", "sorry, I cannot help with that"},
		{"обрезанный JSON", `{"beginner_explanation": "x"`},
		{"нет обязательных полей", `{"beginner_explanation": "x", "pro_analysis": "y"}`},
		{"неизвестный план", `{"beginner_explanation":"x","pro_analysis":"y","scenarios":[],"risks":["r"],"disclaimer":"d",
			"trade_plan":[{"name":"YOLO","direction":"long","invalidation":"z"}]}`},
		{"неизвестное направление", `{"beginner_explanation":"x","pro_analysis":"y","scenarios":[],"risks":["r"],"disclaimer":"d",
			"trade_plan":[{"name":"Base","direction":"short","invalidation":"z"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReport(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidReport)
		})
	}
}

func TestFallbackReport(t *testing.T) {
	plans := testPlans()
	report := FallbackReport("ETHUSDT", testSummary(), plans)

	assert.True(t, strings.HasPrefix(report.BeginnerExplanation, "ETHUSDT is being checked"))
	assert.Equal(t, plans, report.TradePlan)
	assert.Equal(t, []string{"Bullish continuation", "Range/chop", "Bearish failure"},
		[]string{report.Scenarios[0].Name, report.Scenarios[1].Name, report.Scenarios[2].Name})
	assert.Len(t, report.Risks, 3)
	assert.Equal(t, "Educational only, not financial advice.", report.Disclaimer)
	assert.NoError(t, validate.Struct(report))
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(testSummary(), testPlans(), 0.01)
	require.NoError(t, err)

	assert.Contains(t, prompt, "Risk rule: 1% account risk.")
	assert.Contains(t, prompt, `"marketRegime": "trend"`)
	assert.Contains(t, prompt, `"name": "Conservative"`)
	assert.Contains(t, prompt, `disclaimer must include: "Educational only, not financial advice."`)
}

func TestBuildPromptUsesConfiguredRisk(t *testing.T) {
	tests := []struct {
		risk float64
		want string
	}{
		{0.005, "Risk rule: 0.5% account risk."},
		{0.02, "Risk rule: 2% account risk."},
		{0.0125, "Risk rule: 1.25% account risk."},
	}
	for _, tt := range tests {
		prompt, err := BuildPrompt(testSummary(), testPlans(), tt.risk)
		require.NoError(t, err)
		assert.Contains(t, prompt, tt.want)
		assert.NotContains(t, prompt, "%!")
	}

	_, err := BuildPrompt(testSummary(), testPlans(), 0)
	assert.Error(t, err)
}

type chatServer struct {
	hits    int32
	status  int
	content string
	request map[string]interface{}
}

func (s *chatServer) start(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.hits, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&s.request)

		w.Header().Set("Content-Type", "application/json")
		if s.status != 0 {
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": s.content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func testAdvisorConfig(url string) config.AdvisorConfig {
	return config.AdvisorConfig{APIKey: "sk-test", BaseURL: url + "/v1", Model: "gpt-4o-mini", Temperature: 0.2, TimeoutSeconds: 5}
}

func TestOpenAIFormatterFormat(t *testing.T) {
	srv := &chatServer{content: validReportJSON(t)}
	server := srv.start(t)

	report, err := NewOpenAIFormatter(testAdvisorConfig(server.URL), 0.01).Format(context.Background(), testSummary(), testPlans())
	require.NoError(t, err)
	assert.Equal(t, Disclaimer, report.Disclaimer)

	assert.Equal(t, "gpt-4o-mini", srv.request["model"])
	messages, ok := srv.request["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, SystemPrompt, messages[0].(map[string]interface{})["content"])
	assert.Contains(t, messages[1].(map[string]interface{})["content"], "Risk rule: 1% account risk.")
}

func TestOpenAIFormatterSendsConfiguredRisk(t *testing.T) {
	srv := &chatServer{content: validReportJSON(t)}
	server := srv.start(t)

	_, err := NewOpenAIFormatter(testAdvisorConfig(server.URL), 0.02).Format(context.Background(), testSummary(), testPlans())
	require.NoError(t, err)

	messages, ok := srv.request["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1].(map[string]interface{})["content"], "Risk rule: 2% account risk.")
}

func TestOpenAIFormatterRejectsInvalidReport(t *testing.T) {
	srv := &chatServer{content: "no json here"}
	server := srv.start(t)

	_, err := NewOpenAIFormatter(testAdvisorConfig(server.URL), 0.01).Format(context.Background(), testSummary(), testPlans())
	assert.ErrorIs(t, err, ErrInvalidReport)
}

func TestOpenAIFormatterOpensBreaker(t *testing.T) {
	srv := &chatServer{status: http.StatusInternalServerError}
	server := srv.start(t)
	formatter := NewOpenAIFormatter(testAdvisorConfig(server.URL), 0.01)

	for i := 0; i < 3; i++ {
		_, err := formatter.Format(context.Background(), testSummary(), testPlans())
		require.Error(t, err)
	}

	_, err := formatter.Format(context.Background(), testSummary(), testPlans())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(3), atomic.LoadInt32(&srv.hits), "разомкнутый предохранитель не обращается к API")
}
