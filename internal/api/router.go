// Package api exposes pricing, negotiation, market data and summaries over HTTP.
package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/market"
	"dairy-market-lab/internal/observability"
	"dairy-market-lab/internal/summary"
)

// DefaultAllowedOrigins are the CORS origins of the dashboard.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "*"}

// Config wires the router to its services.
type Config struct {
	Market         *market.Service
	Negotiation    *market.NegotiationService
	Summary        *summary.Service // nil disables /generate-summary
	Logger         logrus.FieldLogger
	AllowedOrigins []string          // nil uses DefaultAllowedOrigins
	Backends       map[string]string // reported by /status
}

// NewRouter builds the HTTP engine.
func NewRouter(cfg *Config) *gin.Engine {
	h := NewHandler(cfg)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger), metricsMiddleware())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/status", h.Status)
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	router.GET("/get-butter-vpi-information", h.GetVPIInformation)
	router.GET("/get-market-changes", h.GetMarketChanges)
	router.GET("/generate-summary", h.GenerateSummary)

	router.GET("/suggest-price", h.SuggestPriceForProduct)
	router.POST("/suggest-price", h.SuggestPrice)

	router.GET("/get-bot-offer", h.GetBotOffer)
	router.POST("/bot-offer", h.PostBotOffer)

	router.POST("/trade-signal", h.TradeSignal)

	return router
}

func corsConfig(origins []string) cors.Config {
	if origins == nil {
		origins = DefaultAllowedOrigins
	}
	allowAll := slices.Contains(origins, "*")

	return cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowAll || slices.Contains(origins, origin)
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}
