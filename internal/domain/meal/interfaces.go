package meal

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/infra/llm/openai"
)

// AnalysisRepository persists analysis records.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis Analysis) error
	Get(ctx context.Context, id uuid.UUID, userID int64) (Analysis, bool, error)
	ListByDateRange(ctx context.Context, userID int64, from, to time.Time) ([]Analysis, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]Analysis, error)
}

// ObjectStorage abstracts the image blob store (S3/R2/minio/local).
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// PublicURL resolves a stored key to a URL reachable by the model on
	// later chat turns.
	PublicURL(key string) string
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

// ChatClient is the slice of the LLM client the analyzer needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// SummaryCache holds computed date-range rollups for dashboard reads.
type SummaryCache interface {
	Get(ctx context.Context, key string) (NutrientSummary, bool, error)
	Set(ctx context.Context, key string, summary NutrientSummary, ttl time.Duration) error
}
