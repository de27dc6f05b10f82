package meal

import (
	"strings"
	"testing"

	"github.com/yanqian/meal-insight/internal/domain/nutrition"
)

func TestBuildAnalysisPromptEnumeratesCatalog(t *testing.T) {
	prompt := buildAnalysisPrompt("")
	for _, v := range nutrition.Vitamins() {
		if !strings.Contains(prompt, string(v)) {
			t.Fatalf("prompt missing vitamin %s", v)
		}
	}
	for _, m := range nutrition.Minerals() {
		if !strings.Contains(prompt, string(m)) {
			t.Fatalf("prompt missing mineral %s", m)
		}
	}
	if strings.Contains(prompt, "この料理は") {
		t.Fatal("prompt must not assert a dish without a hint")
	}
}

func TestBuildAnalysisPromptWithHint(t *testing.T) {
	prompt := buildAnalysisPrompt("味噌汁")
	if !strings.Contains(prompt, "この料理は「味噌汁」です") {
		t.Fatal("hint must be interpolated as an assertion")
	}
	if !strings.Contains(prompt, "写真に写っていない部分") {
		t.Fatal("hint must request inference of non-visible parts")
	}
}
