package meal

import (
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/domain/nutrition"
)

// Nutrients is the fixed macro + micronutrient breakdown of one analysis.
// The vitamin and mineral maps always hold every catalog key; a missing
// estimate is stored as 0, never as an absent key.
type Nutrients struct {
	Protein  float64                 `json:"protein"`
	Fat      float64                 `json:"fat"`
	Carbs    float64                 `json:"carbs"`
	Vitamins nutrition.VitaminLevels `json:"vitamins"`
	Minerals nutrition.MineralLevels `json:"minerals"`
}

// Normalize returns a copy with fully populated vitamin/mineral maps and
// negative macro estimates clamped to 0.
func (n Nutrients) Normalize() Nutrients {
	out := n
	if out.Protein < 0 {
		out.Protein = 0
	}
	if out.Fat < 0 {
		out.Fat = 0
	}
	if out.Carbs < 0 {
		out.Carbs = 0
	}
	out.Vitamins = n.Vitamins.Normalize()
	out.Minerals = n.Minerals.Normalize()
	return out
}

// Analysis is the structured result of one meal photo analysis. Immutable
// once persisted; later chat turns reference it but never modify it.
type Analysis struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             int64              `json:"userId,omitempty"`
	DetectedDishes     []string           `json:"detectedDishes"`
	FoodItems          []string           `json:"foodItems"`
	Calories           float64            `json:"calories"`
	Portions           map[string]float64 `json:"portions"`
	Nutrients          Nutrients          `json:"nutrients"`
	DeficientNutrients []string           `json:"deficientNutrients"`
	ExcessiveNutrients []string           `json:"excessiveNutrients"`
	Improvements       []string           `json:"improvements"`
	ImageURL           string             `json:"imageUrl,omitempty"`
	CreatedAt          time.Time          `json:"createdAt,omitempty"`
}

// ImageUpload carries the raw photo alongside an analysis to persist.
type ImageUpload struct {
	Filename string
	MimeType string
	Content  []byte
}

// NutrientSummary accumulates calories and every nutrient across a set of
// analyses. The zero-valued summary (after Normalize) is the identity.
type NutrientSummary struct {
	Calories float64                 `json:"calories"`
	Protein  float64                 `json:"protein"`
	Fat      float64                 `json:"fat"`
	Carbs    float64                 `json:"carbs"`
	Vitamins nutrition.VitaminLevels `json:"vitamins"`
	Minerals nutrition.MineralLevels `json:"minerals"`
}

// DailyCalories is one weekday bucket of the weekly rollup.
type DailyCalories struct {
	Date     time.Time `json:"date"`
	Weekday  string    `json:"weekday"`
	Calories float64   `json:"calories"`
}
