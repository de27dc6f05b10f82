package meal

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/infra/llm/openai"
	apperrors "github.com/yanqian/meal-insight/pkg/errors"
	"github.com/yanqian/meal-insight/pkg/metrics"
	"github.com/yanqian/meal-insight/pkg/util"
)

// Config drives analysis limits and model selection.
type Config struct {
	Model             string
	MaxImageBytes     int64
	MaxResponseTokens int
	SummaryCacheTTL   time.Duration
}

// Service orchestrates photo analysis, persistence, and dashboard rollups.
type Service struct {
	cfg     Config
	repo    AnalysisRepository
	storage ObjectStorage
	llm     ChatClient
	cache   SummaryCache
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(cfg Config, repo AnalysisRepository, storage ObjectStorage, llm ChatClient, cache SummaryCache, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		repo:    repo,
		storage: storage,
		llm:     llm,
		cache:   cache,
		logger:  logger.With("component", "meal.service"),
	}
}

// AnalyzeRequest captures one photo submission.
type AnalyzeRequest struct {
	Filename string
	MimeType string
	Content  []byte
	// DishName, when set, is treated as an authoritative assertion about the
	// dish, not a guess to verify.
	DishName string
}

// AnalyzeResponse bundles the parsed record with model token usage.
type AnalyzeResponse struct {
	Analysis Analysis           `json:"analysis"`
	Usage    metrics.TokenUsage `json:"usage,omitempty"`
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Analyze submits the photo to the vision model and parses the reply into an
// Analysis. Validation failures are rejected before any model call.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	if len(req.Content) == 0 {
		return AnalyzeResponse{}, apperrors.Wrap("invalid_input", "image file cannot be empty", nil)
	}
	if s.cfg.MaxImageBytes > 0 && int64(len(req.Content)) > s.cfg.MaxImageBytes {
		return AnalyzeResponse{}, apperrors.Wrap("payload_too_large", "image exceeds maximum allowed size", nil)
	}
	mime := strings.ToLower(strings.TrimSpace(req.MimeType))
	if !allowedImageTypes[mime] {
		return AnalyzeResponse{}, apperrors.Wrap("invalid_input", "unsupported image type", nil)
	}

	encoded := base64.StdEncoding.EncodeToString(req.Content)
	temperature := float32(0) // pinned to reduce response variance
	resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.Message{
			openai.SystemMessage(analysisSystemPrompt),
			openai.UserMessage(
				openai.InlineImagePart(mime, encoded),
				openai.TextPart(buildAnalysisPrompt(req.DishName)),
			),
		},
		MaxTokens:   s.cfg.MaxResponseTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return AnalyzeResponse{}, apperrors.Wrap("llm_error", "image analysis request failed", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return AnalyzeResponse{}, apperrors.Wrap("llm_error", "model reply contains no text block", nil)
	}

	analysis, err := parseAnalysisReply(text)
	if err != nil {
		return AnalyzeResponse{}, apperrors.Wrap("llm_error", "model reply is not a valid analysis", err)
	}
	if dish := strings.TrimSpace(req.DishName); dish != "" {
		analysis.DetectedDishes = []string{dish}
	}

	s.logger.Info("analysis completed", "dishes", len(analysis.DetectedDishes), "calories", analysis.Calories, "tokens", resp.TokenUsage().TotalTokens)
	return AnalyzeResponse{Analysis: analysis, Usage: resp.TokenUsage()}, nil
}

// Save uploads the source photo and persists the record. An upload failure
// aborts the save; an insert failure after a successful upload leaves the
// blob in storage and reports the error to the caller.
func (s *Service) Save(ctx context.Context, userID int64, analysis Analysis, image ImageUpload) (Analysis, error) {
	if userID == 0 {
		return Analysis{}, apperrors.Wrap("unauthorized", "missing user", nil)
	}
	if len(image.Content) == 0 {
		return Analysis{}, apperrors.Wrap("invalid_input", "image file cannot be empty", nil)
	}

	now := util.NowUTC()
	key := fmt.Sprintf("meals/%d/%d_%s", userID, now.UnixNano(), sanitizeFilename(image.Filename))
	obj, err := s.storage.Put(ctx, key, image.Content, image.MimeType)
	if err != nil {
		return Analysis{}, apperrors.Wrap("storage_error", "failed to store meal image", err)
	}

	analysis.ID = uuid.New()
	analysis.UserID = userID
	analysis.ImageURL = s.storage.PublicURL(obj.Key)
	analysis.CreatedAt = now
	analysis.Nutrients = analysis.Nutrients.Normalize()

	if err := s.repo.Create(ctx, analysis); err != nil {
		s.logger.Error("analysis insert failed after upload, blob orphaned", "key", obj.Key, "error", err)
		return Analysis{}, apperrors.Wrap("storage_error", "failed to persist analysis", err)
	}
	s.logger.Info("analysis saved", "analysis_id", analysis.ID, "user_id", userID)
	return analysis, nil
}

// Get fetches one stored analysis scoped to its owner.
func (s *Service) Get(ctx context.Context, userID int64, id uuid.UUID) (Analysis, error) {
	analysis, found, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		return Analysis{}, apperrors.Wrap("storage_error", "failed to fetch analysis", err)
	}
	if !found {
		return Analysis{}, apperrors.Wrap("not_found", "analysis not found", nil)
	}
	return analysis, nil
}

// ListByDateRange returns records whose creation date falls in the inclusive
// [from 00:00:00, to 23:59:59] window.
func (s *Service) ListByDateRange(ctx context.Context, userID int64, from, to time.Time) ([]Analysis, error) {
	if userID == 0 {
		return nil, apperrors.Wrap("unauthorized", "missing user", nil)
	}
	records, err := s.repo.ListByDateRange(ctx, userID, util.StartOfDay(from), util.EndOfDay(to))
	if err != nil {
		return nil, apperrors.Wrap("storage_error", "failed to list analyses", err)
	}
	return records, nil
}

// ListRecent returns the newest records for the history view.
func (s *Service) ListRecent(ctx context.Context, userID int64, limit int) ([]Analysis, error) {
	if userID == 0 {
		return nil, apperrors.Wrap("unauthorized", "missing user", nil)
	}
	if limit <= 0 {
		limit = 10
	}
	records, err := s.repo.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Wrap("storage_error", "failed to list analyses", err)
	}
	return records, nil
}

// SumByDateRange folds every record in the window into one summary. An empty
// window yields the all-zero summary, never an error.
func (s *Service) SumByDateRange(ctx context.Context, userID int64, from, to time.Time) (NutrientSummary, error) {
	if userID == 0 {
		return NutrientSummary{}, apperrors.Wrap("unauthorized", "missing user", nil)
	}
	start, end := util.StartOfDay(from), util.EndOfDay(to)

	// Only closed historical windows are cached: a range touching today can
	// gain rows from the next save, and saves do not invalidate.
	cacheable := s.cache != nil && end.Before(util.StartOfDay(util.NowUTC()))
	cacheKey := fmt.Sprintf("summary:%d:%s:%s", userID, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if cacheable {
		if cached, found, err := s.cache.Get(ctx, cacheKey); err == nil && found {
			return cached, nil
		}
	}

	records, err := s.repo.ListByDateRange(ctx, userID, start, end)
	if err != nil {
		return NutrientSummary{}, apperrors.Wrap("storage_error", "failed to load analyses for summary", err)
	}
	sum := accumulate(records)

	if cacheable && s.cfg.SummaryCacheTTL > 0 {
		if err := s.cache.Set(ctx, cacheKey, sum, s.cfg.SummaryCacheTTL); err != nil {
			s.logger.Warn("summary cache write failed", "error", err)
		}
	}
	return sum, nil
}

// WeeklyTotals buckets calories over the Sunday-through-Saturday week
// containing ref. Exactly 7 buckets are returned, Sunday first, days without
// records reporting 0.
func (s *Service) WeeklyTotals(ctx context.Context, userID int64, ref time.Time) ([]DailyCalories, error) {
	if userID == 0 {
		return nil, apperrors.Wrap("unauthorized", "missing user", nil)
	}
	sunday, saturday := util.WeekBounds(ref)
	records, err := s.repo.ListByDateRange(ctx, userID, sunday, saturday)
	if err != nil {
		return nil, apperrors.Wrap("storage_error", "failed to load analyses for weekly totals", err)
	}

	buckets := make([]DailyCalories, 7)
	for i := range buckets {
		day := sunday.AddDate(0, 0, i)
		buckets[i] = DailyCalories{Date: day, Weekday: day.Weekday().String()}
	}
	for _, r := range records {
		for i := range buckets {
			if util.SameDay(buckets[i].Date, r.CreatedAt) {
				buckets[i].Calories += r.Calories
				break
			}
		}
	}
	return buckets, nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		return "meal.jpg"
	}
	return name
}
