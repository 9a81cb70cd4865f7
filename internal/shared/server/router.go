package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/chat"
	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/messages"
	"pdfchat-backend/internal/services/health"
	"pdfchat-backend/internal/shared/config"
	"pdfchat-backend/internal/shared/metrics"
	"pdfchat-backend/internal/shared/server/middleware"
	"pdfchat-backend/internal/shared/server/respond"
	"pdfchat-backend/internal/subscriptions"
	"pdfchat-backend/internal/uploads"
)

// Rate limit groups.
const (
	GroupChat    = "CHAT"
	GroupPolling = "POLLING"
	GroupDefault = "DEFAULT"
)

// DefaultRateLimits are per-caller token buckets for each group.
var DefaultRateLimits = map[string]middleware.RateLimitRule{
	GroupChat:    {Rate: 0.5, Burst: 5},
	GroupPolling: {Rate: 2, Burst: 10},
	GroupDefault: {Rate: 5, Burst: 30},
}

// RouterDeps carries the handlers mounted by NewRouter. Nil handlers are
// skipped.
type RouterDeps struct {
	Config        config.Config
	Health        *health.Service
	Documents     *documents.Handler
	Messages      *messages.Handler
	Chat          *chat.Handler
	Uploads       *uploads.Handler
	Subscriptions *subscriptions.Handler
	RateLimits    map[string]middleware.RateLimitRule
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	limits := deps.RateLimits
	if limits == nil {
		limits = DefaultRateLimits
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        limits,
			DefaultGroup: GroupDefault,
			GroupFor: middleware.GroupByRoute(map[string]string{
				"POST /api/v1/messages":              GroupChat,
				"GET /api/v1/documents/:id/status":   GroupPolling,
				"GET /api/v1/documents/:id/messages": GroupPolling,
			}),
		}),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil)
	}
	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		payload, ok := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, payload)
	})
	registerMeRoutes(api)

	if deps.Documents != nil {
		deps.Documents.RegisterRoutes(api)
	}
	if deps.Messages != nil {
		deps.Messages.RegisterRoutes(api)
	}
	if deps.Chat != nil {
		deps.Chat.RegisterRoutes(api)
	}
	if deps.Uploads != nil {
		deps.Uploads.RegisterRoutes(api)
	}
	if deps.Subscriptions != nil {
		deps.Subscriptions.RegisterRoutes(api)
		if deps.Config.IsDevLike() {
			deps.Subscriptions.RegisterDevRoutes(api.Group("/dev"))
		}
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
