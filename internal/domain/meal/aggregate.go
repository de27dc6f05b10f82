package meal

import (
	"github.com/yanqian/meal-insight/internal/domain/nutrition"
)

// emptySummary builds the all-zero accumulator with every catalog key present.
func emptySummary() NutrientSummary {
	return NutrientSummary{
		Vitamins: nutrition.VitaminLevels{}.Normalize(),
		Minerals: nutrition.MineralLevels{}.Normalize(),
	}
}

// accumulate folds a set of analyses into a summary, starting from zero.
// An empty input yields the all-zero summary.
func accumulate(records []Analysis) NutrientSummary {
	sum := emptySummary()
	for _, r := range records {
		sum.Calories += r.Calories
		sum.Protein += r.Nutrients.Protein
		sum.Fat += r.Nutrients.Fat
		sum.Carbs += r.Nutrients.Carbs
		for _, key := range nutrition.Vitamins() {
			sum.Vitamins[key] += r.Nutrients.Vitamins[key]
		}
		for _, key := range nutrition.Minerals() {
			sum.Minerals[key] += r.Nutrients.Minerals[key]
		}
	}
	return sum
}
