package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"listwise/internal/bootstrap"
	"listwise/internal/transport/http/handler"
	"listwise/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger.Named("http")), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	listHandler := handler.NewListHandler(app.Lists, app.Affinity)
	recommendationHandler := handler.NewRecommendationHandler(app.Recommendations)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret, app.Config.Auth.Issuer))

	lists := v1.Group("/lists")
	lists.POST("", listHandler.Create)
	lists.POST("/items", listHandler.Append)
	lists.GET("", listHandler.Past)
	lists.GET("/find", listHandler.Find)
	lists.DELETE("", listHandler.Reset)

	v1.POST("/affinity/decrement", listHandler.Decrement)

	recommendations := v1.Group("/recommendations")
	if !app.Config.RateLimit.Disabled {
		limiter := middleware.NewRateLimiter(app.Config.RateLimit.RequestsPerMinute, app.Config.RateLimit.Burst)
		recommendations.Use(middleware.RateLimit(limiter))
	}
	recommendations.GET("/history", recommendationHandler.History)
	recommendations.GET("/community", recommendationHandler.Community)

	return router
}
