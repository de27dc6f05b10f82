package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/meal-insight/internal/domain/auth"
	apperrors "github.com/yanqian/meal-insight/pkg/errors"
)

// AuthHandler exposes account and session endpoints.
type AuthHandler struct {
	svc               auth.Service
	postLoginRedirect string
	logger            *slog.Logger
}

// NewAuthHandler constructs the auth transport.
func NewAuthHandler(svc auth.Service, postLoginRedirect string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:               svc,
		postLoginRedirect: postLoginRedirect,
		logger:            logger.With("component", "http.auth"),
	}
}

// Register creates a password-based account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	view, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, mapAuthError(err))
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Login exchanges email/password for a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, mapAuthError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a refresh token for a fresh token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	resp, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, mapAuthError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Profile returns the authenticated user's account.
func (h *AuthHandler) Profile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	view, err := h.svc.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, mapAuthError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateProfile edits nickname and gender. Empty fields keep their value.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	var req auth.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	view, err := h.svc.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		abortWithError(c, mapAuthError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// Logout revokes the linked provider token, if any.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	if err := h.svc.Logout(c.Request.Context(), claims.UserID); err != nil {
		h.logger.Warn("logout cleanup failed", "error", err, "userId", claims.UserID)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GoogleLogin starts the PKCE flow and redirects to Google's consent page.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	state, verifier, challenge, err := auth.NewOAuthState()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "auth_error", "failed to start login", err))
		return
	}
	authURL, err := h.svc.GoogleAuthURL(c.Request.Context(), state, challenge)
	if err != nil {
		abortWithError(c, mapAuthError(err))
		return
	}
	setOAuthStateCookie(c, state, verifier)
	c.Redirect(http.StatusFound, authURL)
}

// GoogleCallback completes the PKCE flow. On success it either redirects to
// the configured frontend URL with the tokens in the fragment, or returns
// them as JSON when no redirect is configured.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	stored, ok := readOAuthStateCookie(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "missing or expired login state", nil))
		return
	}
	clearOAuthStateCookie(c)
	if c.Query("state") != stored.State {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "state mismatch", nil))
		return
	}
	code := c.Query("code")
	if code == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "code is required", nil))
		return
	}
	resp, err := h.svc.GoogleCallback(c.Request.Context(), code, stored.CodeVerifier)
	if err != nil {
		abortWithError(c, mapAuthError(err))
		return
	}
	if h.postLoginRedirect == "" {
		c.JSON(http.StatusOK, resp)
		return
	}
	fragment := url.Values{}
	fragment.Set("token", resp.Token)
	fragment.Set("refreshToken", resp.RefreshToken)
	c.Redirect(http.StatusFound, h.postLoginRedirect+"#"+fragment.Encode())
}

func mapAuthError(err error) *HTTPError {
	status := http.StatusInternalServerError
	code := "auth_error"
	switch {
	case apperrors.IsCode(err, "invalid_input"), apperrors.IsCode(err, "invalid_request"):
		status = http.StatusBadRequest
		code = "invalid_request"
	case apperrors.IsCode(err, "email_exists"):
		status = http.StatusConflict
		code = "email_exists"
	case apperrors.IsCode(err, "invalid_credentials"):
		status = http.StatusUnauthorized
		code = "invalid_credentials"
	case apperrors.IsCode(err, "invalid_token"), apperrors.IsCode(err, "unauthorized"):
		status = http.StatusUnauthorized
		code = "unauthorized"
	case apperrors.IsCode(err, "user_not_found"):
		status = http.StatusNotFound
		code = "not_found"
	case apperrors.IsCode(err, "auth_not_configured"):
		status = http.StatusServiceUnavailable
		code = "auth_not_configured"
	case apperrors.IsCode(err, "oauth_exchange_failed"):
		status = http.StatusBadGateway
		code = "oauth_exchange_failed"
	case apperrors.IsCode(err, "account_linking_disabled"):
		status = http.StatusConflict
		code = "account_linking_disabled"
	}
	msg := errMessage(err)
	switch {
	case status == http.StatusInternalServerError:
		msg = "authentication failed"
	case status >= http.StatusInternalServerError:
		msg = apperrors.MessageOf(err)
	}
	return NewHTTPError(status, code, msg, err)
}
