package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DevOwais28/Expense-Tracker/internal/middleware"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/security"
	"github.com/DevOwais28/Expense-Tracker/internal/service"
	"github.com/DevOwais28/Expense-Tracker/internal/session"
)

const stateCookie = "oauth_state"

type userResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

func userJSON(u models.User) userResponse {
	return userResponse{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.DisplayName,
		Role:   string(u.Role),
		Avatar: u.Avatar(),
	}
}

func identityJSON(id models.Identity) userResponse {
	return userResponse{
		ID:     id.UserID,
		Email:  id.Email,
		Name:   id.Name,
		Role:   string(id.Role),
		Avatar: id.Avatar,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h HandlerSet) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.auth.Signup(c.Request.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    userJSON(user),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	priorID, _ := h.sessions.SessionID(c.Request)
	user, rec, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, priorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sessions.SetCookie(c.Writer, rec)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login Successful",
		"user":    userJSON(user),
	})
}

func (h HandlerSet) GoogleStart(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "federated_login_disabled"})
		return
	}

	ttl := h.cfg.OAuth.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	state, nonce, err := security.GenerateStateToken(h.cfg.Security.SessionSecret, h.provider.Name(), ttl)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setStateCookie(c, nonce, int(ttl.Seconds()))
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// GoogleCallback finishes the provider round trip. Every failure lands on the
// client's login page; no session is created.
func (h HandlerSet) GoogleCallback(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "federated_login_disabled"})
		return
	}

	nonce, _ := c.Cookie(stateCookie)
	h.setStateCookie(c, "", -1)

	if _, err := security.ParseStateToken(h.cfg.Security.SessionSecret, c.Query("state"), nonce); err != nil {
		h.log.Warn().Err(err).Msg("oauth state rejected")
		h.federationFailed(c)
		return
	}
	if reason := c.Query("error"); reason != "" {
		h.log.Info().Str("reason", reason).Msg("oauth consent not granted")
		h.federationFailed(c)
		return
	}

	ctx := c.Request.Context()
	user, err := h.bridge.Complete(ctx, h.provider, c.Query("code"))
	if err != nil {
		h.log.Warn().Err(err).Msg("federated login failed")
		h.federationFailed(c)
		return
	}

	priorID, _ := h.sessions.SessionID(c.Request)
	rec, err := h.sessions.Create(ctx, user, models.FederatedSession, priorID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("federated session failed")
		h.federationFailed(c)
		return
	}
	h.sessions.SetCookie(c.Writer, rec)

	identity := h.sessions.Resolve(session.WithFederatedPrincipal(ctx, user), c.Request)
	target := "/dashboard"
	if identity.IsAdmin() {
		target = "/admin"
	}
	c.Redirect(http.StatusFound, h.clientURL(target))
}

func (h HandlerSet) federationFailed(c *gin.Context) {
	c.Redirect(http.StatusFound, h.clientURL("/login?error=oauth_failed"))
}

func (h HandlerSet) clientURL(path string) string {
	return strings.TrimSuffix(h.cfg.ClientURL, "/") + path
}

func (h HandlerSet) setStateCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookie,
		Value:    value,
		Path:     "/api/users/auth/google",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h HandlerSet) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": identityJSON(middleware.CurrentIdentity(c))})
}

// Logout is idempotent: without a live session it still clears the cookie.
func (h HandlerSet) Logout(c *gin.Context) {
	if id, ok := h.sessions.SessionID(c.Request); ok {
		if err := h.sessions.Destroy(c.Request.Context(), id); err != nil {
			h.respondError(c, err)
			return
		}
	}
	h.sessions.ClearCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

const forgotPasswordReply = "If an account exists for that email, a password reset link has been sent"

func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": forgotPasswordReply})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Token == "" {
		req.Token = c.Query("token")
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

type updateMeRequest struct {
	Name            *string `json:"name" form:"name"`
	CurrentPassword string  `json:"currentPassword" form:"currentPassword"`
	NewPassword     string  `json:"newPassword" form:"newPassword"`
}

// UpdateMe accepts JSON, or multipart form data when an avatar file is sent.
func (h HandlerSet) UpdateMe(c *gin.Context) {
	var (
		req   updateMeRequest
		input service.UpdateProfileInput
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		if fh, err := c.FormFile("avatar"); err == nil {
			file, err := fh.Open()
			if err != nil {
				badRequest(c, err)
				return
			}
			defer file.Close()
			input.Avatar = &service.AvatarUpload{File: file, Header: http.Header(fh.Header)}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	input.Name = req.Name
	input.CurrentPassword = req.CurrentPassword
	input.NewPassword = req.NewPassword

	result, err := h.auth.UpdateProfile(c.Request.Context(), middleware.CurrentIdentity(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sessions.SetCookie(c.Writer, result.Session)
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    userJSON(result.User),
	})
}
