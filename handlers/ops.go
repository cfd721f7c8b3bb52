package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports store reachability. An unreachable cache degrades the
// service but does not fail the check, since reads fall through to the
// store.
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.store.Ping(ctx); err != nil {
		h.fail(c, err)
		return
	}
	cacheStatus := "ok"
	if !h.cache.Enabled() {
		cacheStatus = "disabled"
	} else if err := h.cache.Ping(ctx); err != nil {
		h.log.Warn("cache ping failed", "error", err)
		cacheStatus = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  "ok",
		"cache":     cacheStatus,
		"backend":   h.cache.BackendName(),
		"timestamp": time.Now().UTC(),
	})
}

// Index lists the registered routes.
func (h *Handler) Index(routes func() gin.RoutesInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var endpoints []string
		for _, r := range routes() {
			endpoints = append(endpoints, r.Method+" "+r.Path)
		}
		sort.Strings(endpoints)
		c.JSON(http.StatusOK, gin.H{
			"name":      "dei-tracker",
			"version":   h.version,
			"endpoints": endpoints,
		})
	}
}

func (h *Handler) CacheStats(c *gin.Context) {
	if !h.allow(c) {
		return
	}
	st, err := h.cache.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, st)
}

// ClearCache deletes entries matching ?pattern= (glob, default "*").
func (h *Handler) ClearCache(c *gin.Context) {
	if !h.allow(c, "pattern") {
		return
	}
	pattern := c.DefaultQuery("pattern", "*")
	n, err := h.cache.Clear(c.Request.Context(), pattern)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"pattern": pattern, "deleted": n})
}
