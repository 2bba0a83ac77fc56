package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/receiptscan/internal/api/handlers"
	"github.com/your-org/receiptscan/internal/api/ws"
	"github.com/your-org/receiptscan/internal/auth"
	"github.com/your-org/receiptscan/internal/receipts"
)

type RouterConfig struct {
	APIKey         string
	AllowedOrigins []string
	MaxUploadBytes int64
	Service        *receipts.Service
	Checks         []handlers.ReadinessCheck
	// Hub is optional; /ws is not served without it.
	Hub *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks...)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	receiptH := handlers.NewReceiptHandler(cfg.Service)
	r.GET("/", receiptH.Root)

	api := r.Group("/")
	api.Use(auth.APIKeyMiddleware(cfg.APIKey))

	api.POST("/extract-text", BodyLimit(cfg.MaxUploadBytes), receiptH.ExtractText)
	api.GET("/history", receiptH.History)
	api.GET("/history/:id", receiptH.Get)

	if cfg.Hub != nil {
		api.GET("/ws", cfg.Hub.HandleWS)
	}

	return r
}
