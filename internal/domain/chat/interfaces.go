package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/domain/meal"
	"github.com/yanqian/meal-insight/internal/infra/llm/openai"
)

// ThreadRepository persists threads and messages.
type ThreadRepository interface {
	// CreateOrGet upserts the thread keyed on (analysis, user) so concurrent
	// callers converge on one row.
	CreateOrGet(ctx context.Context, analysisID uuid.UUID, userID int64) (Thread, error)
	// ReserveTurn atomically increments the thread's user-turn counter while
	// it is below limit, returning false when the cap is already reached.
	ReserveTurn(ctx context.Context, threadID uuid.UUID, limit int) (bool, error)
	AppendMessage(ctx context.Context, msg Message) error
	ListMessages(ctx context.Context, threadID uuid.UUID) ([]Message, error)
}

// AnalysisSource is the slice of the meal layer the chat service reads.
type AnalysisSource interface {
	Get(ctx context.Context, id uuid.UUID, userID int64) (meal.Analysis, bool, error)
}

// ImageFetcher re-fetches a stored meal photo for visual grounding across
// turns. Implementations may downscale/re-encode before returning.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, mimeType string, err error)
}

// ChatClient is the slice of the LLM client the chat service needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (openai.Stream, error)
}
