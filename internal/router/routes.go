package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/dealflow-crm/internal/auth"
	"github.com/octobees/dealflow-crm/internal/config"
	"github.com/octobees/dealflow-crm/internal/handler"
	middlewarepkg "github.com/octobees/dealflow-crm/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Companies  *handler.CompaniesHandler
	Enrichment *handler.EnrichmentHandler
	Import     *handler.ImportHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(jwtManager))

	secured.GET("/empresas", handlers.Companies.List)

	enrichment := secured.Group("/enrichment")
	enrichment.POST("/check-duplicate", handlers.Enrichment.CheckDuplicate)
	enrichment.POST("/diff", handlers.Enrichment.Diff)
	enrichment.POST("/contacts/dedupe", handlers.Enrichment.DedupeContacts)
	enrichment.POST("/merge", handlers.Enrichment.Merge, middlewarepkg.RateLimiter(cfg.RateLimitMerge))
	enrichment.POST("/extract", handlers.Enrichment.Extract, middlewarepkg.RateLimiter(cfg.RateLimitExtract))

	admin := secured.Group("/admin", middlewarepkg.RequireRole("admin"))
	admin.POST("/import", handlers.Import.Import)
}
