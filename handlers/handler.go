// Package handlers is the HTTP surface: gin routing, parameter validation
// and the JSON envelope. Collections render {data, pagination}, single
// resources {data} and failures {error: {kind, message}}.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"dei-tracker/analytics"
	"dei-tracker/apperr"
	"dei-tracker/cache"
	"dei-tracker/logging"
	"dei-tracker/query"
	"dei-tracker/resolver"
	"dei-tracker/store"

	"github.com/gin-gonic/gin"
)

// Deps are the services the handlers are built on.
type Deps struct {
	Store     *store.Store
	Cache     *cache.Cache
	Resolver  *resolver.Resolver
	Analytics *analytics.Aggregator
	Limits    query.Limits
	Log       *slog.Logger
	Version   string
}

type Handler struct {
	store     *store.Store
	cache     *cache.Cache
	resolver  *resolver.Resolver
	analytics *analytics.Aggregator
	limits    query.Limits
	log       *slog.Logger
	version   string
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	if d.Limits.MaxPerPage == 0 {
		d.Limits = query.DefaultLimits()
	}
	if d.Version == "" {
		d.Version = "v1"
	}
	return &Handler{
		store:     d.Store,
		cache:     d.Cache,
		resolver:  d.Resolver,
		analytics: d.Analytics,
		limits:    d.Limits,
		log:       d.Log,
		version:   d.Version,
	}
}

// CacheHeader reports whether a response was served from the cache.
const CacheHeader = "X-Cache"

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func okCached(c *gin.Context, data any, hit bool) {
	if hit {
		c.Header(CacheHeader, "HIT")
	} else {
		c.Header(CacheHeader, "MISS")
	}
	ok(c, data)
}

func okPage(c *gin.Context, data any, pg query.Pagination) {
	c.JSON(http.StatusOK, gin.H{"data": data, "pagination": pg})
}

// fail renders err. Server-side failures are logged with their cause, the
// client only sees the public kind and message.
func (h *Handler) fail(c *gin.Context, err error) {
	pub := apperr.Public(err)
	status := apperr.HTTPStatus(pub.Kind)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			"kind", pub.Kind,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey),
			"error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": pub})
}

// allow rejects unknown query parameters on non-listing endpoints.
func (h *Handler) allow(c *gin.Context, names ...string) bool {
	if err := query.Allow(c.Request.URL.Query(), names...); err != nil {
		h.fail(c, err)
		return false
	}
	return true
}

// pathID validates a UUID path parameter.
func (h *Handler) pathID(c *gin.Context, name string) (string, bool) {
	id, err := query.ParseID(name, c.Param(name))
	if err != nil {
		h.fail(c, err)
		return "", false
	}
	return id, true
}

// boolParam reads an optional boolean query parameter.
func boolParam(c *gin.Context, name string, def bool) (bool, error) {
	raw, set := c.GetQuery(name)
	if !set || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, apperr.Validation("%s must be true or false, got %q", name, raw)
	}
	return v, nil
}

// intParam reads an optional integer query parameter within [lo, hi].
func intParam(c *gin.Context, name string, def, lo, hi int) (int, error) {
	raw, set := c.GetQuery(name)
	if !set || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, apperr.Validation("%s must be an integer, got %q", name, raw)
	}
	if v < lo || v > hi {
		return def, apperr.Validation("%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return v, nil
}
