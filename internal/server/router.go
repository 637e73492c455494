package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/api/handler"
	"github.com/roni12291832/nexus-car/internal/api/middleware"
)

// Options agrupa tudo que o router precisa. Os handlers públicos não
// passam pelo Auth; o restante exige JWT e passa pelo rate limit.
type Options struct {
	Env string

	HealthHandler   *handler.HealthHandler
	AuthHandler     *handler.AuthHandler
	WebhookHandler  *handler.WebhookHandler
	InstanceHandler *handler.InstanceHandler
	BoardHandler    *handler.BoardHandler
	LeadHandler     *handler.LeadHandler
	VehicleHandler  *handler.VehicleHandler
	SettingsHandler *handler.SettingsHandler
	BillingHandler  *handler.BillingHandler

	TokenValidator middleware.TokenValidator
	RateLimit      middleware.RateLimitOption

	Logger *zap.Logger
}

func NewRouter(opts Options) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
	}))

	api := r.Group("/api")

	// Rotas públicas: health, autenticação e webhooks de terceiros, que
	// trazem a própria autenticação (assinatura/token).
	opts.HealthHandler.Register(api)
	opts.AuthHandler.Register(api)
	opts.WebhookHandler.Register(api)
	opts.BillingHandler.RegisterPublic(api)

	protected := api.Group("")
	protected.Use(middleware.RateLimit(opts.RateLimit))
	protected.Use(middleware.Auth(opts.TokenValidator))

	opts.InstanceHandler.Register(protected)
	opts.BoardHandler.Register(protected)
	opts.LeadHandler.Register(protected)
	opts.VehicleHandler.Register(protected)
	opts.SettingsHandler.Register(protected)
	opts.BillingHandler.Register(protected)

	return r
}
