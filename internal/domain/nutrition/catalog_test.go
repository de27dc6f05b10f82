package nutrition

import "testing"

func TestCatalogUnitTotality(t *testing.T) {
	if len(Vitamins()) != 13 {
		t.Fatalf("expected 13 vitamins, got %d", len(Vitamins()))
	}
	if len(Minerals()) != 16 {
		t.Fatalf("expected 16 minerals, got %d", len(Minerals()))
	}
	for _, v := range Vitamins() {
		if VitaminUnit(v) == "" {
			t.Fatalf("vitamin %s has no unit", v)
		}
	}
	for _, m := range Minerals() {
		if MineralUnit(m) == "" {
			t.Fatalf("mineral %s has no unit", m)
		}
	}
}

func TestNormalizeFillsEveryKey(t *testing.T) {
	v := VitaminLevels{VitaminC: 12, VitaminA: -3}.Normalize()
	if len(v) != len(Vitamins()) {
		t.Fatalf("expected %d keys, got %d", len(Vitamins()), len(v))
	}
	if v[VitaminC] != 12 {
		t.Fatalf("expected vitaminC preserved, got %v", v[VitaminC])
	}
	if v[VitaminA] != 0 {
		t.Fatalf("expected negative estimate clamped to 0, got %v", v[VitaminA])
	}
	if v[VitaminB12] != 0 {
		t.Fatalf("expected missing key to default to 0, got %v", v[VitaminB12])
	}

	m := MineralLevels{Iron: 2.5}.Normalize()
	if len(m) != len(Minerals()) {
		t.Fatalf("expected %d keys, got %d", len(Minerals()), len(m))
	}
	if m[Zinc] != 0 {
		t.Fatalf("expected missing mineral to default to 0, got %v", m[Zinc])
	}
}

func TestIntakeCoversCatalog(t *testing.T) {
	for _, gender := range []Gender{GenderMale, GenderFemale} {
		ref := IntakeFor(gender)
		for _, v := range Vitamins() {
			if ref.Vitamins[v] <= 0 {
				t.Fatalf("%s intake missing vitamin %s", gender, v)
			}
		}
		for _, m := range Minerals() {
			if ref.Minerals[m] <= 0 {
				t.Fatalf("%s intake missing mineral %s", gender, m)
			}
		}
	}
	// Unknown genders get a usable table rather than zeros.
	ref := IntakeFor(Gender("other"))
	if ref.Vitamins[VitaminC] == 0 {
		t.Fatal("fallback intake table is empty")
	}
}
