package handlers

import (
	"context"
	"strings"

	"dei-tracker/analytics"

	"github.com/gin-gonic/gin"
)

// cachedStats serves a cached aggregate that takes no parameters.
func cachedStats[T any](h *Handler, compute func(context.Context) (T, bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.allow(c) {
			return
		}
		v, hit, err := compute(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		okCached(c, v, hit)
	}
}

// Compare accepts company_ids repeated or comma separated:
// ?company_ids=a&company_ids=b or ?company_ids=a,b.
func (h *Handler) Compare(c *gin.Context) {
	if !h.allow(c, "company_ids") {
		return
	}
	var ids []string
	for _, raw := range c.QueryArray("company_ids") {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	cmp, hit, err := h.analytics.Compare(c.Request.Context(), ids)
	if err != nil {
		h.fail(c, err)
		return
	}
	okCached(c, cmp, hit)
}

func (h *Handler) Trends(c *gin.Context) {
	if !h.allow(c, "metric", "interval", "from", "to") {
		return
	}
	q := analytics.TrendQuery{
		Metric:   c.Query("metric"),
		Interval: c.Query("interval"),
		From:     c.Query("from"),
		To:       c.Query("to"),
	}
	tr, hit, err := h.analytics.Trends(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	okCached(c, tr, hit)
}
