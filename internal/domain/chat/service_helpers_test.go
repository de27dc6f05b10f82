package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/domain/meal"
	"github.com/yanqian/meal-insight/internal/infra/llm/openai"
)

type fakeThreadRepo struct {
	mu       sync.Mutex
	threads  map[uuid.UUID]*Thread
	messages map[uuid.UUID][]Message

	reserveErr error
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{
		threads:  make(map[uuid.UUID]*Thread),
		messages: make(map[uuid.UUID][]Message),
	}
}

func (r *fakeThreadRepo) CreateOrGet(_ context.Context, analysisID uuid.UUID, userID int64) (Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		if t.AnalysisID == analysisID && t.UserID == userID {
			return *t, nil
		}
	}
	t := &Thread{ID: uuid.New(), AnalysisID: analysisID, UserID: userID, UpdatedAt: time.Now()}
	r.threads[t.ID] = t
	return *t, nil
}

func (r *fakeThreadRepo) ReserveTurn(_ context.Context, threadID uuid.UUID, limit int) (bool, error) {
	if r.reserveErr != nil {
		return false, r.reserveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[threadID]
	if !ok {
		return false, fmt.Errorf("thread %s not found", threadID)
	}
	if t.MessageCount >= limit {
		return false, nil
	}
	t.MessageCount++
	t.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeThreadRepo) AppendMessage(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ThreadID] = append(r.messages[msg.ThreadID], msg)
	return nil
}

func (r *fakeThreadRepo) ListMessages(_ context.Context, threadID uuid.UUID) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages[threadID]...), nil
}

type fakeAnalysisSource struct {
	analyses map[uuid.UUID]meal.Analysis
}

func (s *fakeAnalysisSource) Get(_ context.Context, id uuid.UUID, userID int64) (meal.Analysis, bool, error) {
	a, ok := s.analyses[id]
	if !ok || a.UserID != userID {
		return meal.Analysis{}, false, nil
	}
	return a, true, nil
}

type fakeFetcher struct {
	data []byte
	mime string
	err  error

	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.mime, nil
}

// scriptedStream replays a fixed sequence of content deltas.
type scriptedStream struct {
	deltas []string
	pos    int
	closed bool
}

func (s *scriptedStream) Recv() (openai.ChatCompletionStreamChunk, error) {
	if s.pos >= len(s.deltas) {
		return openai.ChatCompletionStreamChunk{}, io.EOF
	}
	delta := s.deltas[s.pos]
	s.pos++
	return chunkWith(delta), nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

func chunkWith(delta string) openai.ChatCompletionStreamChunk {
	payload := fmt.Sprintf(`{"choices":[{"delta":{"content":%s}}]}`, strconv.Quote(delta))
	var chunk openai.ChatCompletionStreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		panic(err)
	}
	return chunk
}

type fakeChatClient struct {
	reply        string
	streamDeltas []string

	calls       int
	streamCalls int
	lastRequest openai.ChatCompletionRequest
	err         error
}

func (c *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls++
	c.lastRequest = req
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	payload := fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","content":%s}}],"usage":{"prompt_tokens":12,"completion_tokens":8,"total_tokens":20}}`, strconv.Quote(c.reply))
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		panic(err)
	}
	return resp, nil
}

func (c *fakeChatClient) CreateChatCompletionStream(_ context.Context, req openai.ChatCompletionRequest) (openai.Stream, error) {
	c.streamCalls++
	c.lastRequest = req
	if c.err != nil {
		return nil, c.err
	}
	return &scriptedStream{deltas: c.streamDeltas}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAnalysis(userID int64) meal.Analysis {
	a := meal.Analysis{
		ID:             uuid.New(),
		UserID:         userID,
		DetectedDishes: []string{"味噌汁", "ご飯"},
		Calories:       480,
		ImageURL:       "https://cdn.example.com/meals/1/photo.jpg",
		CreatedAt:      time.Now(),
	}
	a.Nutrients.Protein = 18.5
	a.Nutrients.Fat = 9
	a.Nutrients.Carbs = 62
	a.Nutrients.Normalize()
	return a
}

func testChatService(repo *fakeThreadRepo, source *fakeAnalysisSource, llm *fakeChatClient, fetcher ImageFetcher) *Service {
	cfg := Config{
		Model:             "gpt-4o-mini",
		Persona:           "あなたは親しみやすい栄養士アシスタントです。",
		TurnLimit:         5,
		FlushChars:        100,
		MaxResponseTokens: 1024,
	}
	return NewService(cfg, repo, source, llm, NewAssembler(fetcher, testLogger()), testLogger())
}
