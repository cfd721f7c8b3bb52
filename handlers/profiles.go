package handlers

import (
	"math"

	"dei-tracker/analytics"

	"github.com/gin-gonic/gin"
)

// GetProfile serves /profiles/:id. full defaults to true; full=false
// returns the profile row with its company and never touches the child
// tables.
func (h *Handler) GetProfile(c *gin.Context) {
	if !h.allow(c, "full") {
		return
	}
	id, valid := h.pathID(c, "id")
	if !valid {
		return
	}
	full, err := boolParam(c, "full", true)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderProfile(c, id, full)
}

func (h *Handler) GetFullProfile(c *gin.Context) {
	if !h.allow(c) {
		return
	}
	id, valid := h.pathID(c, "id")
	if !valid {
		return
	}
	h.renderProfile(c, id, true)
}

// GetLatestProfile resolves the latest profile of a company. Zero or
// several latest profiles are reported as a data integrity failure.
func (h *Handler) GetLatestProfile(c *gin.Context) {
	if !h.allow(c, "full") {
		return
	}
	companyID, valid := h.pathID(c, "company_id")
	if !valid {
		return
	}
	full, err := boolParam(c, "full", true)
	if err != nil {
		h.fail(c, err)
		return
	}
	id, err := h.resolver.LatestID(c.Request.Context(), companyID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderProfile(c, id, full)
}

func (h *Handler) renderProfile(c *gin.Context, id string, full bool) {
	if !full {
		p, err := h.resolver.Summary(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		ok(c, p)
		return
	}
	fp, hit, err := h.resolver.Full(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	okCached(c, fp, hit)
}

// Ranked serves the at-risk and top-committed rankings.
func (h *Handler) Ranked(ranking string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.allow(c, "limit") {
			return
		}
		// range checked by the aggregator
		limit, err := intParam(c, "limit", analytics.DefaultRankingLimit, math.MinInt, math.MaxInt)
		if err != nil {
			h.fail(c, err)
			return
		}
		rows, hit, err := h.analytics.Ranked(c.Request.Context(), ranking, limit)
		if err != nil {
			h.fail(c, err)
			return
		}
		okCached(c, rows, hit)
	}
}
