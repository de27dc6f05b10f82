package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/domain/meal"
	"github.com/yanqian/meal-insight/internal/infra/llm/openai"
	apperrors "github.com/yanqian/meal-insight/pkg/errors"
	"github.com/yanqian/meal-insight/pkg/metrics"
)

// Config drives chat behavior.
type Config struct {
	Model             string
	Persona           string
	TurnLimit         int
	FlushChars        int
	MaxResponseTokens int
}

// Service answers follow-up questions grounded in a stored analysis.
type Service struct {
	cfg       Config
	threads   ThreadRepository
	analyses  AnalysisSource
	llm       ChatClient
	assembler *Assembler
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(cfg Config, threads ThreadRepository, analyses AnalysisSource, llm ChatClient, assembler *Assembler, logger *slog.Logger) *Service {
	if cfg.TurnLimit <= 0 {
		cfg.TurnLimit = 5
	}
	if cfg.FlushChars <= 0 {
		cfg.FlushChars = 100
	}
	return &Service{
		cfg:       cfg,
		threads:   threads,
		analyses:  analyses,
		llm:       llm,
		assembler: assembler,
		logger:    logger.With("component", "chat.service"),
	}
}

// Reply is the single-shot chat result.
type Reply struct {
	Response string             `json:"response"`
	Usage    metrics.TokenUsage `json:"usage,omitempty"`
}

// Frame is one streaming update. Response carries the cumulative text
// produced so far, not a delta: consumers replace, never concatenate.
type Frame struct {
	Response string `json:"response"`
}

// DetachedRequest is a stateless chat turn carrying its own context instead
// of referencing a stored thread. No turn cap applies.
type DetachedRequest struct {
	Analysis  meal.Analysis
	History   []Message
	Message   string
	ImageData []byte
	ImageMime string
}

// History returns the thread and its messages for an analysis, creating the
// thread lazily.
func (s *Service) History(ctx context.Context, userID int64, analysisID uuid.UUID) (Thread, []Message, error) {
	if _, err := s.loadAnalysis(ctx, userID, analysisID); err != nil {
		return Thread{}, nil, err
	}
	thread, err := s.threads.CreateOrGet(ctx, analysisID, userID)
	if err != nil {
		return Thread{}, nil, apperrors.Wrap("storage_error", "failed to load chat thread", err)
	}
	messages, err := s.threads.ListMessages(ctx, thread.ID)
	if err != nil {
		return Thread{}, nil, apperrors.Wrap("storage_error", "failed to load chat messages", err)
	}
	return thread, messages, nil
}

// Respond handles one persisted chat turn. The turn is reserved against the
// thread's cap before any model call; a thread already at the cap rejects
// the turn with quota_exceeded.
func (s *Service) Respond(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (Reply, error) {
	prepared, err := s.prepareTurn(ctx, userID, analysisID, message)
	if err != nil {
		return Reply{}, err
	}

	resp, err := s.llm.CreateChatCompletion(ctx, prepared.request)
	if err != nil {
		return Reply{}, apperrors.Wrap("llm_error", "chat request failed", err)
	}
	answer := resp.Text()
	if strings.TrimSpace(answer) == "" {
		return Reply{}, apperrors.Wrap("llm_error", "model reply contains no text block", nil)
	}

	s.persistTurn(ctx, prepared.thread.ID, message, answer)
	return Reply{Response: answer, Usage: resp.TokenUsage()}, nil
}

// RespondStream handles one persisted chat turn in incremental mode. Frames
// carry cumulative text, flushed whenever at least FlushChars characters or a
// newline have accumulated since the previous flush; the remainder is
// flushed at stream end. The channel is closed when the stream completes.
func (s *Service) RespondStream(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (<-chan Frame, error) {
	prepared, err := s.prepareTurn(ctx, userID, analysisID, message)
	if err != nil {
		return nil, err
	}

	stream, err := s.llm.CreateChatCompletionStream(ctx, prepared.request)
	if err != nil {
		return nil, apperrors.Wrap("llm_error", "chat stream request failed", err)
	}

	out := make(chan Frame)
	go func() {
		defer close(out)
		final := s.pumpFrames(ctx, stream, out)
		if strings.TrimSpace(final) != "" {
			s.persistTurn(ctx, prepared.thread.ID, message, final)
		}
	}()
	return out, nil
}

// RespondDetached answers a stateless turn from caller-supplied context.
func (s *Service) RespondDetached(ctx context.Context, req DetachedRequest) (Reply, error) {
	request, err := s.buildDetachedRequest(ctx, req)
	if err != nil {
		return Reply{}, err
	}
	resp, err := s.llm.CreateChatCompletion(ctx, request)
	if err != nil {
		return Reply{}, apperrors.Wrap("llm_error", "chat request failed", err)
	}
	answer := resp.Text()
	if strings.TrimSpace(answer) == "" {
		return Reply{}, apperrors.Wrap("llm_error", "model reply contains no text block", nil)
	}
	return Reply{Response: answer, Usage: resp.TokenUsage()}, nil
}

// RespondDetachedStream is the incremental variant of RespondDetached.
func (s *Service) RespondDetachedStream(ctx context.Context, req DetachedRequest) (<-chan Frame, error) {
	request, err := s.buildDetachedRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	stream, err := s.llm.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return nil, apperrors.Wrap("llm_error", "chat stream request failed", err)
	}
	out := make(chan Frame)
	go func() {
		defer close(out)
		s.pumpFrames(ctx, stream, out)
	}()
	return out, nil
}

type preparedTurn struct {
	thread  Thread
	request openai.ChatCompletionRequest
}

func (s *Service) prepareTurn(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (preparedTurn, error) {
	if strings.TrimSpace(message) == "" {
		return preparedTurn{}, apperrors.Wrap("invalid_input", "message cannot be empty", nil)
	}
	analysis, err := s.loadAnalysis(ctx, userID, analysisID)
	if err != nil {
		return preparedTurn{}, err
	}
	thread, err := s.threads.CreateOrGet(ctx, analysisID, userID)
	if err != nil {
		return preparedTurn{}, apperrors.Wrap("storage_error", "failed to load chat thread", err)
	}

	reserved, err := s.threads.ReserveTurn(ctx, thread.ID, s.cfg.TurnLimit)
	if err != nil {
		return preparedTurn{}, apperrors.Wrap("storage_error", "failed to reserve chat turn", err)
	}
	if !reserved {
		return preparedTurn{}, apperrors.Wrap("quota_exceeded", "chat limit reached for this analysis", nil)
	}

	history, err := s.threads.ListMessages(ctx, thread.ID)
	if err != nil {
		s.logger.Warn("failed to load chat history, continuing without it", "thread_id", thread.ID, "error", err)
		history = nil
	}

	parts := s.assembler.Build(ctx, analysis, history, message)
	return preparedTurn{
		thread:  thread,
		request: s.chatRequest(parts),
	}, nil
}

func (s *Service) buildDetachedRequest(ctx context.Context, req DetachedRequest) (openai.ChatCompletionRequest, error) {
	if strings.TrimSpace(req.Message) == "" {
		return openai.ChatCompletionRequest{}, apperrors.Wrap("invalid_input", "message cannot be empty", nil)
	}
	parts := []openai.ContentPart{openai.TextPart(renderContext(req.Analysis, req.History, req.Message))}
	if len(req.ImageData) > 0 {
		mime := req.ImageMime
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, openai.InlineImagePart(mime, base64.StdEncoding.EncodeToString(req.ImageData)))
	}
	return s.chatRequest(parts), nil
}

func (s *Service) chatRequest(parts []openai.ContentPart) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.Message{
			openai.SystemMessage(s.cfg.Persona),
			openai.UserMessage(parts...),
		},
		MaxTokens: s.cfg.MaxResponseTokens,
	}
}

// pumpFrames consumes the model stream and emits cumulative frames, flushing
// when the pending text reaches FlushChars or contains a newline. Returns
// the final cumulative text.
func (s *Service) pumpFrames(ctx context.Context, stream openai.Stream, out chan<- Frame) string {
	defer stream.Close()

	var builder strings.Builder
	pending := 0
	pendingNewline := false

	emit := func() bool {
		select {
		case out <- Frame{Response: builder.String()}:
			pending = 0
			pendingNewline = false
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		chunk, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Error("chat stream recv failed", "error", err)
			}
			break
		}
		for _, choice := range chunk.Choices {
			delta := choice.Delta.Content
			if delta == "" {
				continue
			}
			builder.WriteString(delta)
			pending += len([]rune(delta))
			if strings.Contains(delta, "\n") {
				pendingNewline = true
			}
		}
		if pending >= s.cfg.FlushChars || pendingNewline {
			if !emit() {
				return builder.String()
			}
		}
	}

	if pending > 0 {
		emit()
	}
	return builder.String()
}

func (s *Service) loadAnalysis(ctx context.Context, userID int64, analysisID uuid.UUID) (meal.Analysis, error) {
	analysis, found, err := s.analyses.Get(ctx, analysisID, userID)
	if err != nil {
		return meal.Analysis{}, apperrors.Wrap("storage_error", "failed to load analysis", err)
	}
	if !found {
		return meal.Analysis{}, apperrors.Wrap("not_found", "analysis not found", nil)
	}
	return analysis, nil
}

// persistTurn appends the user and assistant messages. The turn counter was
// already advanced by the reservation; append failures are logged only.
// The assistant row gets a strictly later timestamp so read-back ordering by
// created_at never flips a turn's question and answer.
func (s *Service) persistTurn(ctx context.Context, threadID uuid.UUID, question, answer string) {
	now := time.Now()
	for _, msg := range []Message{
		{ID: uuid.New(), ThreadID: threadID, Role: RoleUser, Content: question, CreatedAt: now},
		{ID: uuid.New(), ThreadID: threadID, Role: RoleAssistant, Content: answer, CreatedAt: now.Add(time.Millisecond)},
	} {
		if err := s.threads.AppendMessage(ctx, msg); err != nil {
			s.logger.Warn("failed to append chat message", "role", msg.Role, "error", err)
		}
	}
}
