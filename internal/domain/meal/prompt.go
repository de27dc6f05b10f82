package meal

import (
	"fmt"
	"strings"

	"github.com/yanqian/meal-insight/internal/domain/nutrition"
)

// analysisSystemPrompt pins the model to machine-readable output.
const analysisSystemPrompt = "あなたは食事の画像分析を行う栄養士アシスタントです。必ず指定されたJSON形式でのみ回答してください。説明文は含めないでください。"

// buildAnalysisPrompt renders the fixed output-schema instruction. The
// vitamin and mineral fields are enumerated from the catalog so the prompt
// can never drift from the unit table.
func buildAnalysisPrompt(dishName string) string {
	var b strings.Builder

	b.WriteString("この食事の写真を分析し、以下の形式のJSONで回答してください：\n\n")
	b.WriteString("{\n")
	b.WriteString("  \"detectedDishes\": [\"料理名1\", \"料理名2\", ...],\n")
	b.WriteString("  \"foodItems\": [\"食材1\", \"食材2\", ...],\n")
	b.WriteString("  \"calories\": 数値,\n")
	b.WriteString("  \"portions\": {\"食材1\": 100, \"食材2\": 150, ...},\n")
	b.WriteString("  \"nutrients\": {\n")
	b.WriteString("    \"protein\": 数値,\n")
	b.WriteString("    \"fat\": 数値,\n")
	b.WriteString("    \"carbs\": 数値,\n")
	b.WriteString("    \"vitamins\": {\n")
	for _, v := range nutrition.Vitamins() {
		fmt.Fprintf(&b, "      %q: 数値, // %s\n", string(v), unitLabel(nutrition.VitaminUnit(v)))
	}
	b.WriteString("    },\n")
	b.WriteString("    \"minerals\": {\n")
	for _, m := range nutrition.Minerals() {
		fmt.Fprintf(&b, "      %q: 数値, // %s\n", string(m), unitLabel(nutrition.MineralUnit(m)))
	}
	b.WriteString("    }\n")
	b.WriteString("  },\n")
	b.WriteString("  \"deficientNutrients\": [\"ビタミンA\", \"カルシウム\", ...],\n")
	b.WriteString("  \"excessiveNutrients\": [\"ナトリウム\", \"鉄分\", ...],\n")
	b.WriteString("  \"improvements\": [\"改善提案1\", \"改善提案2\", \"改善提案3\"]\n")
	b.WriteString("}\n\n")
	b.WriteString("vitaminsとmineralsは、極端に少ないと判断される場合は0で返してください。\n")
	b.WriteString("ビタミンB群やミネラルは、量の推定が難しいので深く考えてください。推定ができないと判断される場合は、0で返してください。\n")
	b.WriteString("不足・過剰な栄養素は必ず日本語の栄養素名で返してください。")

	if dish := strings.TrimSpace(dishName); dish != "" {
		fmt.Fprintf(&b, "\n\nこの料理は「%s」です。", dish)
		b.WriteString("写真に写っていない部分（ソースの下のご飯など）の栄養素も推定して含めてください。")
	}

	return b.String()
}

func unitLabel(u nutrition.Unit) string {
	switch u {
	case nutrition.Microgram:
		return "マイクログラム"
	default:
		return "ミリグラム"
	}
}
