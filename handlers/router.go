package handlers

import (
	"fmt"

	"dei-tracker/analytics"
	"dei-tracker/apperr"
	"dei-tracker/query"

	"github.com/gin-gonic/gin"
)

// NewRouter registers every route. The API lives under /<version>; health,
// index and cache operations stay at the root.
func NewRouter(h *Handler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(h.log), Recovery(h.log), CORS(corsOrigins))
	r.NoRoute(func(c *gin.Context) {
		h.fail(c, apperr.NotFound("no route for %s %s", c.Request.Method, c.Request.URL.Path))
	})

	r.GET("/", h.Index(r.Routes))
	r.GET("/health", h.Health)
	r.GET("/cache/stats", h.CacheStats)
	r.POST("/cache/clear", h.ClearCache)

	rv := h.resolver
	api := r.Group("/" + h.version)
	{
		companies := api.Group("/companies")
		companies.GET("", listing(h, query.Companies, rv.Companies))
		companies.GET("/:id", h.GetCompany)
		companies.GET("/ticker/:ticker", h.GetCompanyByTicker)
		companies.GET("/search/autocomplete", h.Autocomplete)
		companies.GET("/filters/options", h.FilterOptions)

		profiles := api.Group("/profiles")
		profiles.GET("", listing(h, query.Profiles, rv.Profiles))
		profiles.GET("/:id", h.GetProfile)
		profiles.GET("/:id/full", h.GetFullProfile)
		profiles.GET("/company/:company_id/latest", h.GetLatestProfile)
		profiles.GET("/ranked/"+analytics.RankingAtRisk, h.Ranked(analytics.RankingAtRisk))
		profiles.GET("/ranked/"+analytics.RankingTopCommitted, h.Ranked(analytics.RankingTopCommitted))

		sources := api.Group("/sources")
		sources.GET("", listing(h, query.Sources, rv.Sources))
		sources.GET("/:id", detail(h, "id", rv.Source))
		sources.GET("/types/stats", stats(h, h.analytics.SourceTypes))

		commitments := api.Group("/commitments")
		commitments.GET("", listing(h, query.Commitments, rv.Commitments))
		commitments.GET("/:id", detail(h, "id", rv.Commitment))
		commitments.GET("/types/stats", stats(h, h.analytics.CommitmentTypes))

		controversies := api.Group("/controversies")
		controversies.GET("", listing(h, query.Controversies, rv.Controversies))
		controversies.GET("/:id", detail(h, "id", rv.Controversy))

		events := api.Group("/events")
		events.GET("", listing(h, query.Events, rv.Events))
		events.GET("/:id", detail(h, "id", rv.Event))
		events.GET("/types/stats", stats(h, h.analytics.EventTypes))

		supplier := api.Group("/supplier-diversity")
		supplier.GET("", listing(h, query.SupplierDiversity, rv.SupplierPrograms))
		supplier.GET("/:profile_id", detail(h, "profile_id", rv.SupplierProgram))
		supplier.GET("/stats/overview", stats(h, h.analytics.SupplierPrograms))

		an := api.Group("/analytics")
		an.GET("/overview", cachedStats(h, h.analytics.Overview))
		an.GET("/industries", cachedStats(h, h.analytics.Industries))
		an.GET("/risks", cachedStats(h, h.analytics.Risks))
		an.GET("/compare", h.Compare)
		an.GET("/trends", h.Trends)
	}
	return r
}

// Addr formats a listen address for log lines.
func Addr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return fmt.Sprintf("http://localhost%s", addr)
	}
	return "http://" + addr
}
