package meal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/infra/llm/openai"
)

type fakeRepo struct {
	records   []Analysis
	createErr error
	listErr   error
}

func (f *fakeRepo) Create(_ context.Context, analysis Analysis) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records = append(f.records, analysis)
	return nil
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID, userID int64) (Analysis, bool, error) {
	for _, r := range f.records {
		if r.ID == id && r.UserID == userID {
			return r, true, nil
		}
	}
	return Analysis{}, false, nil
}

func (f *fakeRepo) ListByDateRange(_ context.Context, userID int64, from, to time.Time) ([]Analysis, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Analysis
	for _, r := range f.records {
		if r.UserID == userID && !r.CreatedAt.Before(from) && !r.CreatedAt.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListRecent(_ context.Context, userID int64, limit int) ([]Analysis, error) {
	var out []Analysis
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

type fakeStorage struct {
	objects map[string][]byte
	putErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(_ context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	if f.putErr != nil {
		return StoredObject{}, f.putErr
	}
	f.objects[key] = data
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (f *fakeStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type fakeChatClient struct {
	reply string
	err   error
	calls int
}

func (f *fakeChatClient) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	var resp openai.ChatCompletionResponse
	resp.Choices = append(resp.Choices, struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	}{})
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = f.reply
	return resp, nil
}

type fakeCache struct {
	entries map[string]NutrientSummary
}

func (f *fakeCache) Get(_ context.Context, key string) (NutrientSummary, bool, error) {
	if f.entries == nil {
		return NutrientSummary{}, false, nil
	}
	sum, ok := f.entries[key]
	return sum, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, summary NutrientSummary, _ time.Duration) error {
	if f.entries == nil {
		f.entries = make(map[string]NutrientSummary)
	}
	f.entries[key] = summary
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testService(t *testing.T, repo *fakeRepo, storage *fakeStorage, llm *fakeChatClient) *Service {
	t.Helper()
	if repo == nil {
		repo = &fakeRepo{}
	}
	if storage == nil {
		storage = newFakeStorage()
	}
	if llm == nil {
		llm = &fakeChatClient{}
	}
	cfg := Config{Model: "gpt-4o-mini", MaxImageBytes: 4 << 20, SummaryCacheTTL: time.Minute}
	return NewService(cfg, repo, storage, llm, &fakeCache{}, testLogger())
}
