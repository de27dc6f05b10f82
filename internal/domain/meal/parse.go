package meal

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/yanqian/meal-insight/internal/domain/nutrition"
)

// analysisPayload is the typed shape the model is instructed to return.
// Decoding is strict about value types: a string where a number is expected
// fails the whole parse instead of propagating silently.
type analysisPayload struct {
	DetectedDishes     []string           `json:"detectedDishes"`
	FoodItems          []string           `json:"foodItems"`
	Calories           float64            `json:"calories"`
	Portions           map[string]float64 `json:"portions"`
	Nutrients          nutrientsPayload   `json:"nutrients"`
	DeficientNutrients []string           `json:"deficientNutrients"`
	ExcessiveNutrients []string           `json:"excessiveNutrients"`
	Improvements       []string           `json:"improvements"`
}

type nutrientsPayload struct {
	Protein  float64            `json:"protein"`
	Fat      float64            `json:"fat"`
	Carbs    float64            `json:"carbs"`
	Vitamins map[string]float64 `json:"vitamins"`
	Minerals map[string]float64 `json:"minerals"`
}

// parseAnalysisReply turns the model's raw text into an Analysis. Keys the
// model omitted are normalized to 0; unknown keys are dropped.
func parseAnalysisReply(raw string) (Analysis, error) {
	body := extractJSON(raw)
	if body == "" {
		return Analysis{}, errors.New("reply contains no JSON object")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Analysis{}, err
	}
	if payload.Calories < 0 {
		payload.Calories = 0
	}

	vitamins := make(nutrition.VitaminLevels, len(payload.Nutrients.Vitamins))
	for _, key := range nutrition.Vitamins() {
		vitamins[key] = payload.Nutrients.Vitamins[string(key)]
	}
	minerals := make(nutrition.MineralLevels, len(payload.Nutrients.Minerals))
	for _, key := range nutrition.Minerals() {
		minerals[key] = payload.Nutrients.Minerals[string(key)]
	}

	analysis := Analysis{
		DetectedDishes:     emptyIfNil(payload.DetectedDishes),
		FoodItems:          emptyIfNil(payload.FoodItems),
		Calories:           payload.Calories,
		Portions:           payload.Portions,
		DeficientNutrients: emptyIfNil(payload.DeficientNutrients),
		ExcessiveNutrients: emptyIfNil(payload.ExcessiveNutrients),
		Improvements:       emptyIfNil(payload.Improvements),
		Nutrients: Nutrients{
			Protein:  payload.Nutrients.Protein,
			Fat:      payload.Nutrients.Fat,
			Carbs:    payload.Nutrients.Carbs,
			Vitamins: vitamins,
			Minerals: minerals,
		},
	}
	analysis.Nutrients = analysis.Nutrients.Normalize()
	if analysis.Portions == nil {
		analysis.Portions = map[string]float64{}
	}
	return analysis, nil
}

// extractJSON isolates the outermost JSON object, tolerating prose or
// ```json fences around it.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "```"); idx != -1 {
		raw = raw[idx+3:]
		raw = strings.TrimPrefix(raw, "json")
		if end := strings.Index(raw, "```"); end != -1 {
			raw = raw[:end]
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return raw[start : end+1]
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
