package nutrition

// Vitamin identifies one of the fixed vitamin keys tracked per analysis.
type Vitamin string

// Mineral identifies one of the fixed mineral keys tracked per analysis.
type Mineral string

const (
	VitaminA   Vitamin = "vitaminA"
	VitaminD   Vitamin = "vitaminD"
	VitaminE   Vitamin = "vitaminE"
	VitaminK   Vitamin = "vitaminK"
	VitaminB1  Vitamin = "vitaminB1"
	VitaminB2  Vitamin = "vitaminB2"
	VitaminB3  Vitamin = "vitaminB3"
	VitaminB5  Vitamin = "vitaminB5"
	VitaminB6  Vitamin = "vitaminB6"
	VitaminB7  Vitamin = "vitaminB7"
	VitaminB9  Vitamin = "vitaminB9"
	VitaminB12 Vitamin = "vitaminB12"
	VitaminC   Vitamin = "vitaminC"
)

const (
	Calcium    Mineral = "calcium"
	Phosphorus Mineral = "phosphorus"
	Magnesium  Mineral = "magnesium"
	Sodium     Mineral = "sodium"
	Potassium  Mineral = "potassium"
	Sulfur     Mineral = "sulfur"
	Chlorine   Mineral = "chlorine"
	Iron       Mineral = "iron"
	Copper     Mineral = "copper"
	Zinc       Mineral = "zinc"
	Selenium   Mineral = "selenium"
	Manganese  Mineral = "manganese"
	Iodine     Mineral = "iodine"
	Cobalt     Mineral = "cobalt"
	Molybdenum Mineral = "molybdenum"
	Chromium   Mineral = "chromium"
)

// Unit is the measurement unit a nutrient amount is expressed in.
type Unit string

const (
	Milligram Unit = "mg"
	Microgram Unit = "µg"
)

var vitaminOrder = []Vitamin{
	VitaminA, VitaminD, VitaminE, VitaminK,
	VitaminB1, VitaminB2, VitaminB3, VitaminB5, VitaminB6, VitaminB7, VitaminB9, VitaminB12,
	VitaminC,
}

var mineralOrder = []Mineral{
	Calcium, Phosphorus, Magnesium, Sodium, Potassium, Sulfur, Chlorine,
	Iron, Copper, Zinc, Selenium, Manganese, Iodine, Cobalt, Molybdenum, Chromium,
}

var vitaminUnits = map[Vitamin]Unit{
	VitaminA:   Microgram,
	VitaminD:   Microgram,
	VitaminE:   Milligram,
	VitaminK:   Microgram,
	VitaminB1:  Milligram,
	VitaminB2:  Milligram,
	VitaminB3:  Milligram,
	VitaminB5:  Milligram,
	VitaminB6:  Milligram,
	VitaminB7:  Microgram,
	VitaminB9:  Microgram,
	VitaminB12: Microgram,
	VitaminC:   Milligram,
}

var mineralUnits = map[Mineral]Unit{
	Calcium:    Milligram,
	Phosphorus: Milligram,
	Magnesium:  Milligram,
	Sodium:     Milligram,
	Potassium:  Milligram,
	Sulfur:     Milligram,
	Chlorine:   Microgram,
	Iron:       Milligram,
	Copper:     Milligram,
	Zinc:       Milligram,
	Selenium:   Microgram,
	Manganese:  Milligram,
	Iodine:     Milligram,
	Cobalt:     Microgram,
	Molybdenum: Microgram,
	Chromium:   Milligram,
}

// Vitamins returns every vitamin key in catalog order.
func Vitamins() []Vitamin {
	out := make([]Vitamin, len(vitaminOrder))
	copy(out, vitaminOrder)
	return out
}

// Minerals returns every mineral key in catalog order.
func Minerals() []Mineral {
	out := make([]Mineral, len(mineralOrder))
	copy(out, mineralOrder)
	return out
}

// VitaminUnit returns the unit a vitamin amount is expressed in.
func VitaminUnit(v Vitamin) Unit {
	return vitaminUnits[v]
}

// MineralUnit returns the unit a mineral amount is expressed in.
func MineralUnit(m Mineral) Unit {
	return mineralUnits[m]
}

// VitaminLevels maps every catalog vitamin to an estimated amount.
// Zero is the explicit "negligible or not estimable" value, never absence.
type VitaminLevels map[Vitamin]float64

// MineralLevels maps every catalog mineral to an estimated amount.
type MineralLevels map[Mineral]float64

// Normalize returns a copy holding every catalog key, filling missing keys
// with 0 and clamping negative estimates to 0.
func (v VitaminLevels) Normalize() VitaminLevels {
	out := make(VitaminLevels, len(vitaminOrder))
	for _, key := range vitaminOrder {
		val := v[key]
		if val < 0 {
			val = 0
		}
		out[key] = val
	}
	return out
}

// Normalize returns a copy holding every catalog key, filling missing keys
// with 0 and clamping negative estimates to 0.
func (m MineralLevels) Normalize() MineralLevels {
	out := make(MineralLevels, len(mineralOrder))
	for _, key := range mineralOrder {
		val := m[key]
		if val < 0 {
			val = 0
		}
		out[key] = val
	}
	return out
}
