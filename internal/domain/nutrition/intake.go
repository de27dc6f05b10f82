package nutrition

// Gender selects the recommended daily intake column.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ReferenceIntake holds recommended daily amounts in catalog units.
type ReferenceIntake struct {
	Vitamins VitaminLevels
	Minerals MineralLevels
}

// Adult reference values for the general population, in each key's catalog unit.
var intakeByGender = map[Gender]ReferenceIntake{
	GenderMale: {
		Vitamins: VitaminLevels{
			VitaminA: 900, VitaminD: 15, VitaminE: 15, VitaminK: 120,
			VitaminB1: 1.2, VitaminB2: 1.3, VitaminB3: 16, VitaminB5: 5,
			VitaminB6: 1.3, VitaminB7: 30, VitaminB9: 400, VitaminB12: 2.4,
			VitaminC: 90,
		},
		Minerals: MineralLevels{
			Calcium: 1000, Phosphorus: 700, Magnesium: 400, Sodium: 1500,
			Potassium: 3400, Sulfur: 850, Chlorine: 2300, Iron: 8,
			Copper: 0.9, Zinc: 11, Selenium: 55, Manganese: 2.3,
			Iodine: 0.15, Cobalt: 5, Molybdenum: 45, Chromium: 0.035,
		},
	},
	GenderFemale: {
		Vitamins: VitaminLevels{
			VitaminA: 700, VitaminD: 15, VitaminE: 15, VitaminK: 90,
			VitaminB1: 1.1, VitaminB2: 1.1, VitaminB3: 14, VitaminB5: 5,
			VitaminB6: 1.3, VitaminB7: 30, VitaminB9: 400, VitaminB12: 2.4,
			VitaminC: 75,
		},
		Minerals: MineralLevels{
			Calcium: 1000, Phosphorus: 700, Magnesium: 310, Sodium: 1500,
			Potassium: 2600, Sulfur: 850, Chlorine: 2300, Iron: 18,
			Copper: 0.9, Zinc: 8, Selenium: 55, Manganese: 1.8,
			Iodine: 0.15, Cobalt: 5, Molybdenum: 45, Chromium: 0.025,
		},
	},
}

// IntakeFor returns the recommended daily intake table for a gender. Unknown
// genders fall back to the female table, the more conservative of the two.
func IntakeFor(gender Gender) ReferenceIntake {
	if ref, ok := intakeByGender[gender]; ok {
		return ref
	}
	return intakeByGender[GenderFemale]
}
