package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"stockpulse/internal/domain/models"
	domrepo "stockpulse/internal/domain/repository"
	"stockpulse/internal/services/ratelimit"
	xhttp "stockpulse/pkg/http"
	xlogger "stockpulse/pkg/logger"
)

const (
	headerTenantID = "X-Tenant-ID"
	headerRole     = "X-Tenant-Role"
	roleService    = "service"

	principalKey = "principal"
)

// Router composes all API handlers behind one route table. Every /api
// route requires a tenant identity; privileged service callers mark
// themselves with the role header and bypass watchlist scoping.
type Router struct {
	logger      *xlogger.Logger
	predictions *PredictionsHandler
	batch       *BatchHandler
	market      domrepo.MarketStore
	limiter     *ratelimit.Limiter
}

func NewRouter(logger *xlogger.Logger, predictions *PredictionsHandler, batch *BatchHandler, market domrepo.MarketStore) *Router {
	return &Router{logger: logger, predictions: predictions, batch: batch, market: market, limiter: ratelimit.New()}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", r.Health)

	g := e.Group("/api/v1", requireTenant)

	g.GET("/predictions", r.predictions.List)
	g.GET("/predictions/latest", r.predictions.Latest)
	g.GET("/predictions/stats", r.predictions.Stats)
	g.GET("/predictions/trend", r.predictions.Trend)
	g.POST("/predictions/verify", r.predictions.Verify)

	// Batch triggers are expensive; throttle them per tenant.
	b := g.Group("", r.throttle(5, 0.5))
	b.POST("/predictions/generate", r.batch.Predict)
	b.POST("/predictions/refresh", r.batch.Refresh)
	b.POST("/models/train", r.batch.Train)
	b.POST("/features/sync", r.batch.SyncFeatures)
	b.POST("/pipeline/run", r.batch.RunPipeline)

	g.GET("/models/performance", r.predictions.Performance)
	g.GET("/pipeline/tasks", r.batch.Tasks)
	g.GET("/pipeline/tasks/:id", r.batch.TaskStatus)
}

// throttle limits batch triggers per tenant with a token bucket.
func (r *Router) throttle(capacity, refillPerSec float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strconv.FormatInt(principal(c).TenantID, 10)
			if !r.limiter.Allow(key, capacity, refillPerSec) {
				r.logger.Warn("batch trigger rate limited", xlogger.String("tenant", key))
				return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
			}
			return next(c)
		}
	}
}

func (r *Router) Health(c echo.Context) error {
	if err := r.market.Health(c.Request().Context()); err != nil {
		r.logger.Warn("health check failed", xlogger.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// requireTenant resolves the caller's principal from request headers.
func requireTenant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Request().Header.Get(headerTenantID)
		if raw == "" {
			return xhttp.UnauthorizedResponse(c, "tenant id required")
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return xhttp.UnauthorizedResponse(c, "invalid tenant id")
		}
		c.Set(principalKey, models.Principal{
			TenantID:   id,
			Privileged: c.Request().Header.Get(headerRole) == roleService,
		})
		return next(c)
	}
}

func principal(c echo.Context) models.Principal {
	p, _ := c.Get(principalKey).(models.Principal)
	return p
}

func toDirection(s string) models.Direction {
	if s == string(models.DirectionDown) {
		return models.DirectionDown
	}
	return models.DirectionUp
}
