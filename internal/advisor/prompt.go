package advisor

import (
	"encoding/json"
	"fmt"

	"github.com/skalibog/quantladder/pkg/mathutil"
	"github.com/skalibog/quantladder/pkg/models"
)

// SystemPrompt системное сообщение для модели
const SystemPrompt = "You are a precise trading educator. Return strict JSON only."

const promptTemplate = `
You are a master technical analyst and quantitative trading coach.
Audience: beginner student. Tone: patient, educational, precise.
Market: crypto spot only (no leverage). Risk rule: %v%% account risk.

TASK:
1) Explain current market state in simple language.
2) Provide professional multi-timeframe analysis (4H, 1D, 1W).
3) Provide scenario thinking.
4) Use the provided plans and improve wording only. Do not invent leverage or futures details.
5) If signals are mixed, clearly say uncertainty and include a wait condition.

DATA:
%s

OUTPUT RULES:
- Return valid JSON only.
- Follow this exact schema keys:
  beginner_explanation (string)
  pro_analysis (string)
  scenarios (array of {name, description})
  trade_plan (array of Conservative/Base/Aggressive)
  risks (array of strings)
  disclaimer (string)
- Keep beginner_explanation <= 180 words.
- In pro_analysis, mention EMA/RSI/MACD/Bollinger/ATR at least once.
- disclaimer must include: "%s"`

// BuildPrompt пользовательское сообщение с данными сводки и планов.
// riskPerTrade доля счета под риском на сделку, та же, что у построителя планов.
func BuildPrompt(summary models.QuantSummary, plans []models.Plan, riskPerTrade float64) (string, error) {
	if riskPerTrade <= 0 || riskPerTrade >= 1 {
		return "", fmt.Errorf("риск на сделку должен быть в (0, 1), получено %v", riskPerTrade)
	}

	data, err := json.MarshalIndent(struct {
		Summary models.QuantSummary `json:"summary"`
		Plans   []models.Plan       `json:"plans"`
	}{summary, plans}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации данных для промпта: %w", err)
	}
	return fmt.Sprintf(promptTemplate, mathutil.Round(riskPerTrade*100, 2), data, Disclaimer), nil
}
