package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/meal-insight/internal/domain/auth"
	"github.com/yanqian/meal-insight/internal/domain/chat"
	"github.com/yanqian/meal-insight/internal/domain/meal"
	"github.com/yanqian/meal-insight/internal/infra/config"
	apperrors "github.com/yanqian/meal-insight/pkg/errors"
)

func TestRouter_AnalyzeSuccess(t *testing.T) {
	want := meal.AnalyzeResponse{
		Analysis: meal.Analysis{
			ID:             uuid.New(),
			DetectedDishes: []string{"味噌汁", "ご飯"},
			Calories:       480,
		},
	}
	mealSvc := &stubMealService{
		analyzeFn: func(ctx context.Context, req meal.AnalyzeRequest) (meal.AnalyzeResponse, error) {
			require.Equal(t, "dinner.jpg", req.Filename)
			require.Equal(t, "味噌汁定食", req.DishName)
			require.NotEmpty(t, req.Content)
			return want, nil
		},
	}
	server := newRouterUnderTest(t, mealSvc, &stubChatService{}, &stubAuthService{})

	rec := performUpload(t, server, "/api/v1/analyze", map[string]string{"dishName": "味噌汁定食"}, "dinner.jpg", []byte("jpegdata"))
	require.Equal(t, http.StatusOK, rec.Code)

	var got meal.AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, want.Analysis.DetectedDishes, got.Analysis.DetectedDishes)
	require.Equal(t, want.Analysis.Calories, got.Analysis.Calories)
}

func TestRouter_AnalyzeRequiresAuth(t *testing.T) {
	server := newRouterUnderTest(t, &stubMealService{}, &stubChatService{}, &stubAuthService{})

	body, contentType := multipartBody(t, map[string]string{}, "dinner.jpg", []byte("jpegdata"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "unauthorized", errBody["error"]["code"])
}

func TestRouter_AnalyzeModelFailure(t *testing.T) {
	mealSvc := &stubMealService{
		analyzeFn: func(ctx context.Context, req meal.AnalyzeRequest) (meal.AnalyzeResponse, error) {
			return meal.AnalyzeResponse{}, apperrors.Wrap("llm_error", "model unavailable", nil)
		},
	}
	server := newRouterUnderTest(t, mealSvc, &stubChatService{}, &stubAuthService{})

	rec := performUpload(t, server, "/api/v1/analyze", nil, "dinner.jpg", []byte("jpegdata"))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "llm_error", errBody["error"]["code"])
}

func TestRouter_UpstreamFailureDetailStaysServerSide(t *testing.T) {
	upstream := errors.New("llm request failed: status=500 body=raw upstream diagnostics")
	mealSvc := &stubMealService{
		analyzeFn: func(ctx context.Context, req meal.AnalyzeRequest) (meal.AnalyzeResponse, error) {
			return meal.AnalyzeResponse{}, apperrors.Wrap("llm_error", "image analysis request failed", upstream)
		},
	}
	server := newRouterUnderTest(t, mealSvc, &stubChatService{}, &stubAuthService{})

	rec := performUpload(t, server, "/api/v1/analyze", nil, "dinner.jpg", []byte("jpegdata"))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "image analysis request failed", errBody["error"]["message"])
	require.NotContains(t, rec.Body.String(), "upstream diagnostics")
}

func TestRouter_AnalyzeRejectsOversizedBodyBeforeParsing(t *testing.T) {
	called := false
	mealSvc := &stubMealService{
		analyzeFn: func(ctx context.Context, req meal.AnalyzeRequest) (meal.AnalyzeResponse, error) {
			called = true
			return meal.AnalyzeResponse{}, nil
		},
	}
	server := newRouterUnderTest(t, mealSvc, &stubChatService{}, &stubAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(make([]byte, 64)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.Header.Set("Authorization", "Bearer token")
	req.ContentLength = testMaxUploadBytes + 1
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "payload_too_large", errBody["error"]["code"])
	require.False(t, called)
}

func TestRouter_ChatQuotaExceeded(t *testing.T) {
	chatSvc := &stubChatService{
		respondFn: func(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (chat.Reply, error) {
			return chat.Reply{}, apperrors.Wrap("quota_exceeded", "question limit reached for this meal", nil)
		},
	}
	server := newRouterUnderTest(t, &stubMealService{}, chatSvc, &stubAuthService{})

	rec := performForm(t, server, "/api/v1/chat", map[string]string{
		"message":    "これは健康的ですか？",
		"analysisId": uuid.NewString(),
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "quota_exceeded", errBody["error"]["code"])
}

func TestRouter_ChatStreamWritesCumulativeFrames(t *testing.T) {
	frames := []chat.Frame{
		{Response: "たんぱく質が"},
		{Response: "たんぱく質が豊富です。"},
	}
	chatSvc := &stubChatService{
		respondStreamFn: func(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (<-chan chat.Frame, error) {
			out := make(chan chat.Frame, len(frames))
			go func() {
				defer close(out)
				for _, f := range frames {
					out <- f
				}
			}()
			return out, nil
		},
	}
	server := newRouterUnderTest(t, &stubMealService{}, chatSvc, &stubAuthService{})

	rec := performForm(t, server, "/api/v1/chat", map[string]string{
		"message":    "栄養バランスはどうですか？",
		"analysisId": uuid.NewString(),
		"stream":     "true",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, len(frames))
	for i, line := range lines {
		var got chat.Frame
		require.NoError(t, json.Unmarshal([]byte(line), &got))
		require.Equal(t, frames[i], got)
	}
}

func TestRouter_ChatDetachedWithoutAnalysisID(t *testing.T) {
	chatSvc := &stubChatService{
		respondDetachedFn: func(ctx context.Context, req chat.DetachedRequest) (chat.Reply, error) {
			require.Equal(t, []string{"サラダ"}, req.Analysis.DetectedDishes)
			require.Len(t, req.History, 1)
			return chat.Reply{Response: "野菜中心で良いバランスです。"}, nil
		},
	}
	server := newRouterUnderTest(t, &stubMealService{}, chatSvc, &stubAuthService{})

	rec := performForm(t, server, "/api/v1/chat", map[string]string{
		"message":      "改善点はありますか？",
		"analysisData": `{"detectedDishes":["サラダ"],"calories":220}`,
		"chatHistory":  `[{"role":"user","content":"前の質問"}]`,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply chat.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Equal(t, "野菜中心で良いバランスです。", reply.Response)
}

func TestRouter_GetMealNotFound(t *testing.T) {
	mealSvc := &stubMealService{
		getFn: func(ctx context.Context, userID int64, id uuid.UUID) (meal.Analysis, error) {
			return meal.Analysis{}, apperrors.Wrap("not_found", "meal record not found", nil)
		},
	}
	server := newRouterUnderTest(t, mealSvc, &stubChatService{}, &stubAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/meals/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "not_found", errBody["error"]["code"])
}

func TestRouter_DashboardSummaryIncludesReference(t *testing.T) {
	mealSvc := &stubMealService{
		sumFn: func(ctx context.Context, userID int64, from, to time.Time) (meal.NutrientSummary, error) {
			return meal.NutrientSummary{Calories: 1840, Protein: 62}, nil
		},
	}
	server := newRouterUnderTest(t, mealSvc, &stubChatService{}, &stubAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/summary?from=2026-08-24&to=2026-08-30", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "summary")
	require.Contains(t, body, "reference")

	var summary meal.NutrientSummary
	require.NoError(t, json.Unmarshal(body["summary"], &summary))
	require.Equal(t, 1840.0, summary.Calories)
}

func TestRouter_DashboardWeeklyBuckets(t *testing.T) {
	mealSvc := &stubMealService{
		weeklyFn: func(ctx context.Context, userID int64, ref time.Time) ([]meal.DailyCalories, error) {
			require.Equal(t, time.August, ref.Month())
			return []meal.DailyCalories{
				{Weekday: "Sunday", Calories: 1500},
				{Weekday: "Monday", Calories: 1820},
			}, nil
		},
	}
	server := newRouterUnderTest(t, mealSvc, &stubChatService{}, &stubAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/weekly?date=2026-08-26", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]meal.DailyCalories
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["days"], 2)
	require.Equal(t, "Sunday", body["days"][0].Weekday)
}

func TestRouter_RegisterSuccess(t *testing.T) {
	authSvc := &stubAuthService{
		registerFn: func(ctx context.Context, req auth.RegisterRequest) (auth.UserView, error) {
			require.Equal(t, "taro@example.com", req.Email)
			return auth.UserView{ID: 1, Email: req.Email, Nickname: "taro"}, nil
		},
	}
	server := newRouterUnderTest(t, &stubMealService{}, &stubChatService{}, authSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"email":"taro@example.com","password":"secret-pass-1","nickname":"taro","gender":"male"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var view auth.UserView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, int64(1), view.ID)
}

func TestRouter_LoginInvalidCredentials(t *testing.T) {
	authSvc := &stubAuthService{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
			return auth.LoginResponse{}, apperrors.Wrap("invalid_credentials", "invalid email or password", nil)
		},
	}
	server := newRouterUnderTest(t, &stubMealService{}, &stubChatService{}, authSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"taro@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_credentials", errBody["error"]["code"])
}

// Matches the default config image limit, which doubles as the request cap.
const testMaxUploadBytes = 4 * 1024 * 1024

func newRouterUnderTest(t *testing.T, mealSvc MealService, chatSvc ChatService, authSvc auth.Service) *http.Server {
	t.Helper()
	logger := newTestLogger()
	handler := NewHandler(mealSvc, chatSvc, authSvc, testMaxUploadBytes, logger)
	authHandler := NewAuthHandler(authSvc, "", logger)
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	return NewRouter(cfg, handler, authHandler, authSvc)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func performUpload(t *testing.T, server *http.Server, path string, fields map[string]string, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func performForm(t *testing.T, server *http.Server, path string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return performUpload(t, server, path, fields, "", nil)
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

type stubMealService struct {
	analyzeFn func(ctx context.Context, req meal.AnalyzeRequest) (meal.AnalyzeResponse, error)
	saveFn    func(ctx context.Context, userID int64, analysis meal.Analysis, image meal.ImageUpload) (meal.Analysis, error)
	getFn     func(ctx context.Context, userID int64, id uuid.UUID) (meal.Analysis, error)
	listFn    func(ctx context.Context, userID int64, from, to time.Time) ([]meal.Analysis, error)
	recentFn  func(ctx context.Context, userID int64, limit int) ([]meal.Analysis, error)
	sumFn     func(ctx context.Context, userID int64, from, to time.Time) (meal.NutrientSummary, error)
	weeklyFn  func(ctx context.Context, userID int64, ref time.Time) ([]meal.DailyCalories, error)
}

func (s *stubMealService) Analyze(ctx context.Context, req meal.AnalyzeRequest) (meal.AnalyzeResponse, error) {
	if s.analyzeFn != nil {
		return s.analyzeFn(ctx, req)
	}
	return meal.AnalyzeResponse{}, nil
}

func (s *stubMealService) Save(ctx context.Context, userID int64, analysis meal.Analysis, image meal.ImageUpload) (meal.Analysis, error) {
	if s.saveFn != nil {
		return s.saveFn(ctx, userID, analysis, image)
	}
	return analysis, nil
}

func (s *stubMealService) Get(ctx context.Context, userID int64, id uuid.UUID) (meal.Analysis, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID, id)
	}
	return meal.Analysis{ID: id}, nil
}

func (s *stubMealService) ListByDateRange(ctx context.Context, userID int64, from, to time.Time) ([]meal.Analysis, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, from, to)
	}
	return nil, nil
}

func (s *stubMealService) ListRecent(ctx context.Context, userID int64, limit int) ([]meal.Analysis, error) {
	if s.recentFn != nil {
		return s.recentFn(ctx, userID, limit)
	}
	return nil, nil
}

func (s *stubMealService) SumByDateRange(ctx context.Context, userID int64, from, to time.Time) (meal.NutrientSummary, error) {
	if s.sumFn != nil {
		return s.sumFn(ctx, userID, from, to)
	}
	return meal.NutrientSummary{}, nil
}

func (s *stubMealService) WeeklyTotals(ctx context.Context, userID int64, ref time.Time) ([]meal.DailyCalories, error) {
	if s.weeklyFn != nil {
		return s.weeklyFn(ctx, userID, ref)
	}
	return nil, nil
}

type stubChatService struct {
	respondFn         func(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (chat.Reply, error)
	respondStreamFn   func(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (<-chan chat.Frame, error)
	respondDetachedFn func(ctx context.Context, req chat.DetachedRequest) (chat.Reply, error)
	historyFn         func(ctx context.Context, userID int64, analysisID uuid.UUID) (chat.Thread, []chat.Message, error)
}

func (s *stubChatService) Respond(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (chat.Reply, error) {
	if s.respondFn != nil {
		return s.respondFn(ctx, userID, analysisID, message)
	}
	return chat.Reply{}, nil
}

func (s *stubChatService) RespondStream(ctx context.Context, userID int64, analysisID uuid.UUID, message string) (<-chan chat.Frame, error) {
	if s.respondStreamFn != nil {
		return s.respondStreamFn(ctx, userID, analysisID, message)
	}
	out := make(chan chat.Frame)
	close(out)
	return out, nil
}

func (s *stubChatService) RespondDetached(ctx context.Context, req chat.DetachedRequest) (chat.Reply, error) {
	if s.respondDetachedFn != nil {
		return s.respondDetachedFn(ctx, req)
	}
	return chat.Reply{}, nil
}

func (s *stubChatService) RespondDetachedStream(ctx context.Context, req chat.DetachedRequest) (<-chan chat.Frame, error) {
	out := make(chan chat.Frame)
	close(out)
	return out, nil
}

func (s *stubChatService) History(ctx context.Context, userID int64, analysisID uuid.UUID) (chat.Thread, []chat.Message, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, userID, analysisID)
	}
	return chat.Thread{AnalysisID: analysisID}, nil, nil
}

type stubAuthService struct {
	registerFn func(ctx context.Context, req auth.RegisterRequest) (auth.UserView, error)
	loginFn    func(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error)
	validateFn func(ctx context.Context, token string) (auth.Claims, error)
	profileFn  func(ctx context.Context, userID int64) (auth.UserView, error)
}

func (s *stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (auth.UserView, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, req)
	}
	return auth.UserView{}, nil
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, req)
	}
	return auth.LoginResponse{}, nil
}

func (s *stubAuthService) GoogleAuthURL(ctx context.Context, state, codeChallenge string) (string, error) {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
}

func (s *stubAuthService) GoogleCallback(ctx context.Context, code, codeVerifier string) (auth.LoginResponse, error) {
	return auth.LoginResponse{}, nil
}

func (s *stubAuthService) ValidateToken(ctx context.Context, token string) (auth.Claims, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, token)
	}
	return auth.Claims{UserID: 7, Email: "taro@example.com", TokenType: "access"}, nil
}

func (s *stubAuthService) Refresh(ctx context.Context, refreshToken string) (auth.LoginResponse, error) {
	return auth.LoginResponse{}, nil
}

func (s *stubAuthService) Profile(ctx context.Context, userID int64) (auth.UserView, error) {
	if s.profileFn != nil {
		return s.profileFn(ctx, userID)
	}
	return auth.UserView{ID: userID, Gender: "male"}, nil
}

func (s *stubAuthService) UpdateProfile(ctx context.Context, userID int64, req auth.UpdateProfileRequest) (auth.UserView, error) {
	return auth.UserView{ID: userID}, nil
}

func (s *stubAuthService) Logout(ctx context.Context, userID int64) error {
	return nil
}
