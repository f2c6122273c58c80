package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/access"
	"github.com/DevOwais28/Expense-Tracker/internal/config"
	"github.com/DevOwais28/Expense-Tracker/internal/federation"
	"github.com/DevOwais28/Expense-Tracker/internal/mail"
	"github.com/DevOwais28/Expense-Tracker/internal/middleware"
	"github.com/DevOwais28/Expense-Tracker/internal/prediction"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
	"github.com/DevOwais28/Expense-Tracker/internal/security"
	"github.com/DevOwais28/Expense-Tracker/internal/service"
	"github.com/DevOwais28/Expense-Tracker/internal/session"
	"github.com/DevOwais28/Expense-Tracker/internal/storage"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	auth        *service.AuthService
	expenses    *service.ExpenseService
	admin       *service.AdminService
	predictions *service.PredictionService
	sessions    *session.Manager
	bridge      *federation.Bridge
	provider    federation.Provider
	checks      []HealthCheck
}

// Components are the collaborators a HandlerSet serves. Provider may be nil,
// which disables federated login.
type Components struct {
	Auth        *service.AuthService
	Expenses    *service.ExpenseService
	Admin       *service.AdminService
	Predictions *service.PredictionService
	Sessions    *session.Manager
	Bridge      *federation.Bridge
	Provider    federation.Provider
	Checks      []HealthCheck
}

func New(log zerolog.Logger, cfg *config.AppConfig, c Components) HandlerSet {
	return HandlerSet{
		log:         log,
		cfg:         cfg,
		auth:        c.Auth,
		expenses:    c.Expenses,
		admin:       c.Admin,
		predictions: c.Predictions,
		sessions:    c.Sessions,
		bridge:      c.Bridge,
		provider:    c.Provider,
		checks:      c.Checks,
	}
}

// Drain waits for work the handlers started in the background, such as
// password reset mail, to finish.
func (h HandlerSet) Drain() {
	if h.auth != nil {
		h.auth.Wait()
	}
}

// NewHandlerSet wires repositories, stores and services on top of the shared
// connections. The session manager and hasher are shared with the API's
// background jobs and bootstrap.
func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	db *pgxpool.Pool,
	cache *redis.Client,
	store *storage.ObjectStore,
	sessions *session.Manager,
	hasher *security.PasswordHasher,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	predictionRepo := repository.NewPredictionRepository(db)

	outbox := mail.NewOutbox(cache, cfg.Mail.Stream)
	avatars := service.NewAvatarService(store, cfg.Storage.MaxAvatarSize, log)

	var provider federation.Provider
	if cfg.OAuth.GoogleClientID != "" {
		provider = federation.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.GoogleRedirectURL, cfg.OAuth.Timeout)
	}

	predictor := prediction.NewClient(prediction.Config{
		URL:         cfg.Prediction.URL,
		FallbackURL: cfg.Prediction.FallbackURL,
		Timeout:     cfg.Prediction.Timeout,
	}, log)

	return New(log, cfg, Components{
		Auth: service.NewAuthService(userRepo, hasher, sessions, outbox, avatars, service.AuthConfig{
			ClientURL:     cfg.ClientURL,
			ResetTokenTTL: cfg.Security.ResetTokenTTL,
		}, log),
		Expenses:    service.NewExpenseService(expenseRepo),
		Admin:       service.NewAdminService(userRepo, expenseRepo, sessions, log),
		Predictions: service.NewPredictionService(predictor, predictionRepo, log),
		Sessions:    sessions,
		Bridge:      federation.NewBridge(userRepo, log),
		Provider:    provider,
		Checks: []HealthCheck{
			{Name: "database", Ping: db.Ping},
			{Name: "cache", Ping: sessions.Ping},
			{Name: "storage", Ping: store.Ping},
		},
	})
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	router.Use(middleware.Identity(h.sessions))

	users := router.Group("/users")
	{
		users.POST("/signup", h.Signup)
		users.POST("/login", h.Login)
		users.POST("/forgot-password", h.ForgotPassword)
		users.POST("/reset-password", h.ResetPassword)
		users.GET("/auth/google", h.GoogleStart)
		users.GET("/auth/google/callback", h.GoogleCallback)
		users.GET("/auth/logout", h.Logout)

		users.GET("/auth/user", middleware.RequireAuth(), h.CurrentUser)
		users.PATCH("/update-me", middleware.RequireAuth(), h.UpdateMe)
	}

	expenses := router.Group("/expenses", middleware.RequireAuth())
	{
		expenses.GET("/expense", h.ListExpenses)
		expenses.POST("/expense", h.CreateExpense)
		expenses.GET("/expense/:id", h.GetExpense)
		expenses.PUT("/expense/:id", h.UpdateExpense)
		expenses.DELETE("/expense/:id", h.DeleteExpense)
		expenses.GET("/summary", h.MonthlySummary)
	}

	admin := router.Group("/admin", middleware.RequireAction(access.ManageUsers))
	{
		admin.GET("/users", h.AdminListUsers)
		admin.DELETE("/users/:id", h.AdminDeleteUser)
		admin.PATCH("/users/:id/role", h.AdminChangeRole)
		admin.GET("/stats", h.AdminStats)
		admin.GET("/expenses", h.AdminListExpenses)
	}

	predictions := router.Group("/prediction", middleware.RequireAuth())
	{
		predictions.POST("/predict-expense", h.PredictExpense)
		predictions.GET("/history", h.PredictionHistory)
	}
}

// respondError maps service and guard errors onto HTTP replies. Anything
// unrecognised is logged and reported as a bare 500.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "field": verr.Field, "message": verr.Error()})
	case errors.Is(err, access.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated", "message": "Not authenticated"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": "Invalid email or password"})
	case errors.Is(err, access.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Forbidden"})
	case errors.Is(err, access.ErrSelfTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": "self_target", "message": "Cannot perform this action on your own account"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Not found"})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_already_registered", "message": "User already exists with this email"})
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_or_expired_token", "message": "Reset token is invalid or has expired"})
	case errors.Is(err, service.ErrWrongCurrentPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "wrong_current_password", "message": "Current password is incorrect"})
	case errors.Is(err, service.ErrInvalidAvatar):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_avatar", "message": "Avatar must be a JPEG, PNG, GIF, WebP or AVIF image"})
	case errors.Is(err, service.ErrAvatarTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar_too_large"})
	default:
		_ = c.Error(err)
		h.log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
}
