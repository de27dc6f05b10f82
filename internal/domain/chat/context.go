package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/yanqian/meal-insight/internal/domain/meal"
	"github.com/yanqian/meal-insight/internal/domain/nutrition"
	"github.com/yanqian/meal-insight/internal/infra/llm/openai"
)

// Assembler renders a stored analysis and prior conversation into model
// consumable content parts.
type Assembler struct {
	fetcher ImageFetcher
	logger  *slog.Logger
}

// NewAssembler constructs an Assembler. fetcher may be nil, in which case
// image re-attachment is skipped entirely.
func NewAssembler(fetcher ImageFetcher, logger *slog.Logger) *Assembler {
	return &Assembler{fetcher: fetcher, logger: logger.With("component", "chat.assembler")}
}

// Build produces the context block for one chat turn: the deterministic text
// summary (dishes, calories, every nutrient with its unit, prior turns, the
// question), plus the re-attached meal photo when one is available. A failed
// image fetch is logged and tolerated; the chat proceeds text-only.
func (a *Assembler) Build(ctx context.Context, analysis meal.Analysis, history []Message, question string) []openai.ContentPart {
	parts := []openai.ContentPart{openai.TextPart(renderContext(analysis, history, question))}

	if a.fetcher != nil && analysis.ImageURL != "" {
		data, mimeType, err := a.fetcher.Fetch(ctx, analysis.ImageURL)
		if err != nil {
			a.logger.Warn("image re-attachment failed, continuing text-only", "url", analysis.ImageURL, "error", err)
		} else {
			encoded := base64.StdEncoding.EncodeToString(data)
			parts = append(parts, openai.InlineImagePart(mimeType, encoded))
		}
	}
	return parts
}

// renderContext is deterministic: nutrients are listed in catalog order with
// their catalog unit suffixes so rendering can never produce an unknown unit.
func renderContext(analysis meal.Analysis, history []Message, question string) string {
	var b strings.Builder

	b.WriteString("検出された料理：\n")
	if len(analysis.DetectedDishes) == 0 {
		b.WriteString("不明\n")
	} else {
		b.WriteString(strings.Join(analysis.DetectedDishes, "、"))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nカロリー：%skcal\n", formatAmount(analysis.Calories))

	b.WriteString("\n栄養素：\n")
	fmt.Fprintf(&b, "- タンパク質：%sg\n", formatAmount(analysis.Nutrients.Protein))
	fmt.Fprintf(&b, "- 脂質：%sg\n", formatAmount(analysis.Nutrients.Fat))
	fmt.Fprintf(&b, "- 炭水化物：%sg\n", formatAmount(analysis.Nutrients.Carbs))

	b.WriteString("\nビタミン：\n")
	for _, key := range nutrition.Vitamins() {
		fmt.Fprintf(&b, "- %s: %s%s\n", key, formatAmount(analysis.Nutrients.Vitamins[key]), nutrition.VitaminUnit(key))
	}

	b.WriteString("\nミネラル：\n")
	for _, key := range nutrition.Minerals() {
		fmt.Fprintf(&b, "- %s: %s%s\n", key, formatAmount(analysis.Nutrients.Minerals[key]), nutrition.MineralUnit(key))
	}

	if len(history) > 0 {
		b.WriteString("\nこれまでの会話：\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	fmt.Fprintf(&b, "\nユーザーの質問：%s", question)
	return b.String()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
