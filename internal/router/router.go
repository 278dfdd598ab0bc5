// Package router assembles the HTTP routes and middleware.
package router

import (
	"github.com/foodplanner/backend/internal/api"
	"github.com/foodplanner/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AuthService registers users and validates their tokens
type AuthService interface {
	api.AuthService
	middleware.TokenValidator
}

// Deps are the services the routes are served from. Redis is optional; without
// it the write-heavy routes are not rate limited.
type Deps struct {
	Auth           AuthService
	Stores         api.StoreService
	MealPlans      api.MealPlanService
	Ingestion      api.IngestionService
	Catalog        api.Catalog
	Matcher        api.IngredientMatcher
	Queue          api.TaskQueue
	ScrapeTracker  api.ScrapeTracker
	Scraper        api.CatalogueScraper
	DB             api.Pinger
	Redis          *redis.Client
	AllowedOrigins []string
	Logger         *zap.Logger
}

// SetupRouter configures the application routes
func SetupRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(
		middleware.Recovery(d.Logger),
		middleware.RequestLogger(d.Logger),
		middleware.CORS(d.AllowedOrigins),
	)

	router.GET("/health", api.HealthCheck(d.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var planLimit, taskLimit gin.HandlerFunc
	if d.Redis != nil {
		planLimit = middleware.NewMealPlanRateLimiter(d.Redis, d.Logger).Middleware()
		taskLimit = middleware.NewTaskTriggerRateLimiter(d.Redis, d.Logger).Middleware()
	}
	auth := middleware.AuthMiddleware(d.Auth)

	v1 := router.Group("/api/v1")
	api.NewAuthHandler(d.Auth, d.Logger).RegisterRoutes(v1)
	api.NewStoreHandler(d.Stores, d.Logger).RegisterRoutes(v1, auth)
	api.NewIngestionHandler(d.Ingestion, d.Queue, d.Logger).RegisterRoutes(v1, taskLimit)
	api.NewRecipeHandler(d.Catalog, d.Matcher, d.Queue, d.Logger).RegisterRoutes(v1, taskLimit)
	api.NewScrapingHandler(d.ScrapeTracker, d.Queue, d.Scraper, d.Logger).RegisterRoutes(v1, taskLimit)
	api.NewMealPlanHandler(d.MealPlans, d.Logger).RegisterRoutes(v1, auth, planLimit)

	return router
}
