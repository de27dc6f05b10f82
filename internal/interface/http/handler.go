package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/domain/auth"
	"github.com/yanqian/meal-insight/internal/domain/chat"
	"github.com/yanqian/meal-insight/internal/domain/meal"
	"github.com/yanqian/meal-insight/internal/domain/nutrition"
	apperrors "github.com/yanqian/meal-insight/pkg/errors"
)

// MealService is the slice of the meal layer the transport needs.
type MealService interface {
	Analyze(ctx context.Context, req meal.AnalyzeRequest) (meal.AnalyzeResponse, error)
	Save(ctx context.Context, userID int64, analysis meal.Analysis, image meal.ImageUpload) (meal.Analysis, error)
	Get(ctx context.Context, userID int64, id uuid.UUID) (meal.Analysis, error)
	ListByDateRange(ctx context.Context, userID int64, from, to time.Time) ([]meal.Analysis, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]meal.Analysis, error)
	SumByDateRange(ctx context.Context, userID int64, from, to time.Time) (meal.NutrientSummary, error)
	WeeklyTotals(ctx context.Context, userID int64, ref time.Time) ([]meal.DailyCalories, error)
}

// ChatService is the slice of the chat layer the transport needs.
type ChatService interface {
	Respond(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (chat.Reply, error)
	RespondStream(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (<-chan chat.Frame, error)
	RespondDetached(ctx context.Context, req chat.DetachedRequest) (chat.Reply, error)
	RespondDetachedStream(ctx context.Context, req chat.DetachedRequest) (<-chan chat.Frame, error)
	History(ctx context.Context, userID int64, analysisID uuid.UUID) (chat.Thread, []chat.Message, error)
}

// Handler wires the HTTP transport to domain services.
type Handler struct {
	mealSvc        MealService
	chatSvc        ChatService
	authSvc        auth.Service
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(mealSvc MealService, chatSvc ChatService, authSvc auth.Service, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 4 * 1024 * 1024
	}
	return &Handler{
		mealSvc:        mealSvc,
		chatSvc:        chatSvc,
		authSvc:        authSvc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("component", "http.handler"),
	}
}

// Analyze accepts a meal photo plus an optional dish name hint and returns
// the model's nutrition analysis without persisting anything.
func (h *Handler) Analyze(c *gin.Context) {
	if !h.checkUploadSize(c) {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "image file is required", err))
		return
	}
	defer file.Close()

	content, mimeType, httpErr := readUpload(file, header, h.maxUploadBytes)
	if httpErr != nil {
		abortWithError(c, httpErr)
		return
	}

	resp, svcErr := h.mealSvc.Analyze(c.Request.Context(), meal.AnalyzeRequest{
		Filename: header.Filename,
		MimeType: mimeType,
		Content:  content,
		DishName: strings.TrimSpace(c.PostForm("dishName")),
	})
	if svcErr != nil {
		abortWithError(c, mapDomainError(svcErr))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SaveMeal persists an analysis alongside its source photo.
func (h *Handler) SaveMeal(c *gin.Context) {
	if !h.checkUploadSize(c) {
		return
	}

	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "image file is required", err))
		return
	}
	defer file.Close()

	content, mimeType, httpErr := readUpload(file, header, h.maxUploadBytes)
	if httpErr != nil {
		abortWithError(c, httpErr)
		return
	}

	payload := c.PostForm("analysis")
	if strings.TrimSpace(payload) == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "analysis payload is required", nil))
		return
	}
	var analysis meal.Analysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "analysis payload is not valid JSON", err))
		return
	}

	saved, svcErr := h.mealSvc.Save(c.Request.Context(), claims.UserID, analysis, meal.ImageUpload{
		Filename: header.Filename,
		MimeType: mimeType,
		Content:  content,
	})
	if svcErr != nil {
		abortWithError(c, mapDomainError(svcErr))
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// ListMeals returns records in an inclusive date range, or the recent list
// when no range is given.
func (h *Handler) ListMeals(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}

	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr == "" && toStr == "" {
		records, err := h.mealSvc.ListRecent(c.Request.Context(), claims.UserID, parseLimit(c.Query("limit")))
		if err != nil {
			abortWithError(c, mapDomainError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"meals": records})
		return
	}

	from, to, err := parseDateRange(fromStr, toStr)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}
	records, svcErr := h.mealSvc.ListByDateRange(c.Request.Context(), claims.UserID, from, to)
	if svcErr != nil {
		abortWithError(c, mapDomainError(svcErr))
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": records})
}

// RecentMeals returns the newest records for the history view.
func (h *Handler) RecentMeals(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}
	records, err := h.mealSvc.ListRecent(c.Request.Context(), claims.UserID, parseLimit(c.Query("limit")))
	if err != nil {
		abortWithError(c, mapDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": records})
}

// GetMeal returns one stored analysis.
func (h *Handler) GetMeal(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid meal id", err))
		return
	}
	analysis, svcErr := h.mealSvc.Get(c.Request.Context(), claims.UserID, id)
	if svcErr != nil {
		abortWithError(c, mapDomainError(svcErr))
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Chat answers a follow-up question about an analysis. analysisId selects
// the persisted, turn-capped thread; analysisData carries a stateless turn
// with caller-supplied context. stream=true switches the response to
// newline-delimited JSON frames carrying cumulative text.
func (h *Handler) Chat(c *gin.Context) {
	if !h.checkUploadSize(c) {
		return
	}

	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}

	message := strings.TrimSpace(c.PostForm("message"))
	if message == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "message is required", nil))
		return
	}
	streaming := isTruthy(c.PostForm("stream"))

	if rawID := strings.TrimSpace(c.PostForm("analysisId")); rawID != "" {
		analysisID, err := uuid.Parse(rawID)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid analysis id", err))
			return
		}
		if streaming {
			frames, svcErr := h.chatSvc.RespondStream(c.Request.Context(), claims.UserID, analysisID, message)
			if svcErr != nil {
				abortWithError(c, mapDomainError(svcErr))
				return
			}
			h.writeFrames(c, frames)
			return
		}
		reply, svcErr := h.chatSvc.Respond(c.Request.Context(), claims.UserID, analysisID, message)
		if svcErr != nil {
			abortWithError(c, mapDomainError(svcErr))
			return
		}
		c.JSON(http.StatusOK, reply)
		return
	}

	req, httpErr := h.buildDetachedChatRequest(c, message)
	if httpErr != nil {
		abortWithError(c, httpErr)
		return
	}
	if streaming {
		frames, svcErr := h.chatSvc.RespondDetachedStream(c.Request.Context(), req)
		if svcErr != nil {
			abortWithError(c, mapDomainError(svcErr))
			return
		}
		h.writeFrames(c, frames)
		return
	}
	reply, svcErr := h.chatSvc.RespondDetached(c.Request.Context(), req)
	if svcErr != nil {
		abortWithError(c, mapDomainError(svcErr))
		return
	}
	c.JSON(http.StatusOK, reply)
}

// ChatHistory returns the thread attached to an analysis.
func (h *Handler) ChatHistory(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid meal id", err))
		return
	}
	thread, messages, svcErr := h.chatSvc.History(c.Request.Context(), claims.UserID, analysisID)
	if svcErr != nil {
		abortWithError(c, mapDomainError(svcErr))
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"thread":   thread,
		"messages": messages,
	})
}

// DashboardSummary folds a date range into one nutrient summary, paired
// with the recommended daily intake for the user's profile.
func (h *Handler) DashboardSummary(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}
	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}
	summary, svcErr := h.mealSvc.SumByDateRange(c.Request.Context(), claims.UserID, from, to)
	if svcErr != nil {
		abortWithError(c, mapDomainError(svcErr))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":   summary,
		"reference": nutrition.IntakeFor(h.userGender(c, claims.UserID)),
	})
}

// DashboardWeekly buckets calories over the week containing date.
func (h *Handler) DashboardWeekly(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing credentials", nil))
		return
	}
	ref := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD", err))
			return
		}
		ref = parsed
	}
	buckets, err := h.mealSvc.WeeklyTotals(c.Request.Context(), claims.UserID, ref)
	if err != nil {
		abortWithError(c, mapDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": buckets})
}

// checkUploadSize rejects oversized requests from the declared length,
// before any multipart parsing touches the body.
func (h *Handler) checkUploadSize(c *gin.Context) bool {
	if c.Request.ContentLength > h.maxUploadBytes {
		abortWithError(c, NewHTTPError(http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds the upload limit", nil))
		return false
	}
	return true
}

func (h *Handler) buildDetachedChatRequest(c *gin.Context, message string) (chat.DetachedRequest, *HTTPError) {
	payload := strings.TrimSpace(c.PostForm("analysisData"))
	if payload == "" {
		return chat.DetachedRequest{}, NewHTTPError(http.StatusBadRequest, "invalid_request", "analysisId or analysisData is required", nil)
	}
	var analysis meal.Analysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return chat.DetachedRequest{}, NewHTTPError(http.StatusBadRequest, "invalid_request", "analysisData is not valid JSON", err)
	}

	var history []chat.Message
	if raw := strings.TrimSpace(c.PostForm("chatHistory")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			return chat.DetachedRequest{}, NewHTTPError(http.StatusBadRequest, "invalid_request", "chatHistory is not valid JSON", err)
		}
	}

	var imageData []byte
	imageMime := ""
	if raw := strings.TrimSpace(c.PostForm("imageData")); raw != "" {
		data, mime, err := decodeInlineImage(raw)
		if err != nil {
			return chat.DetachedRequest{}, NewHTTPError(http.StatusBadRequest, "invalid_request", "imageData is not valid base64", err)
		}
		imageData, imageMime = data, mime
	}

	return chat.DetachedRequest{
		Analysis:  analysis,
		History:   history,
		Message:   message,
		ImageData: imageData,
		ImageMime: imageMime,
	}, nil
}

// writeFrames streams newline-delimited JSON frames, flushing each one.
func (h *Handler) writeFrames(c *gin.Context, frames <-chan chat.Frame) {
	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	encoder := json.NewEncoder(c.Writer)
	for frame := range frames {
		if err := encoder.Encode(frame); err != nil {
			h.logger.Warn("failed to write stream frame", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *Handler) userGender(c *gin.Context, userID int64) nutrition.Gender {
	view, err := h.authSvc.Profile(c.Request.Context(), userID)
	if err != nil {
		h.logger.Warn("failed to load profile for intake reference", "user_id", userID, "error", err)
		return nutrition.GenderFemale
	}
	return view.Gender
}

// decodeInlineImage accepts raw base64 or a full data: URL.
func decodeInlineImage(raw string) ([]byte, string, error) {
	mime := "image/jpeg"
	if strings.HasPrefix(raw, "data:") {
		rest := strings.TrimPrefix(raw, "data:")
		if idx := strings.Index(rest, ";base64,"); idx >= 0 {
			if rest[:idx] != "" {
				mime = rest[:idx]
			}
			raw = rest[idx+len(";base64,"):]
		}
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

func readUpload(file multipart.File, header *multipart.FileHeader, limit int64) ([]byte, string, *HTTPError) {
	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, "", NewHTTPError(http.StatusBadRequest, "invalid_request", "failed to read uploaded file", err)
	}
	if int64(len(content)) > limit {
		return nil, "", NewHTTPError(http.StatusRequestEntityTooLarge, "payload_too_large", "uploaded file exceeds the limit", nil)
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(content)
	}
	return content, mimeType, nil
}

func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	return from, to, nil
}

var errInvalidRange = &rangeError{}

type rangeError struct{}

func (*rangeError) Error() string {
	return "from and to must be YYYY-MM-DD with from <= to"
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func isTruthy(raw string) bool {
	return raw == "1" || strings.EqualFold(raw, "true")
}

// mapDomainError converts domain error codes into transport statuses.
func mapDomainError(err error) *HTTPError {
	status := http.StatusInternalServerError
	code := apperrors.CodeOf(err)
	switch code {
	case "invalid_input":
		status = http.StatusBadRequest
		code = "invalid_request"
	case "payload_too_large":
		status = http.StatusRequestEntityTooLarge
	case "unauthorized":
		status = http.StatusUnauthorized
	case "not_found":
		status = http.StatusNotFound
	case "quota_exceeded":
		status = http.StatusTooManyRequests
	case "llm_error":
		status = http.StatusBadGateway
	case "storage_error":
		status = http.StatusInternalServerError
	case "":
		code = "internal_error"
	}
	msg := errMessage(err)
	if status >= http.StatusInternalServerError {
		// Upstream failure detail stays in the server log; clients get the
		// domain message only.
		msg = apperrors.MessageOf(err)
	}
	return NewHTTPError(status, code, msg, err)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
