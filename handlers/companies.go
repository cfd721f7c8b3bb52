package handlers

import (
	"context"
	"strings"

	"dei-tracker/apperr"
	"dei-tracker/query"

	"github.com/gin-gonic/gin"
)

const (
	defaultAutocompleteLimit = 10
	maxAutocompleteLimit     = 50
)

// listing binds a query collection to a resolver listing.
func listing[T any](h *Handler, col query.Collection, fetch func(context.Context, query.Request) ([]T, query.Pagination, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := query.Parse(c.Request.URL.Query(), col, h.limits)
		if err != nil {
			h.fail(c, err)
			return
		}
		rows, pg, err := fetch(c.Request.Context(), req)
		if err != nil {
			h.fail(c, err)
			return
		}
		okPage(c, rows, pg)
	}
}

func (h *Handler) GetCompany(c *gin.Context) {
	if !h.allow(c) {
		return
	}
	id, valid := h.pathID(c, "id")
	if !valid {
		return
	}
	company, err := h.resolver.Company(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, company)
}

func (h *Handler) GetCompanyByTicker(c *gin.Context) {
	if !h.allow(c) {
		return
	}
	company, err := h.resolver.CompanyByTicker(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, company)
}

func (h *Handler) Autocomplete(c *gin.Context) {
	if !h.allow(c, "q", "limit") {
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		h.fail(c, apperr.Validation("q is required"))
		return
	}
	limit, err := intParam(c, "limit", defaultAutocompleteLimit, 1, maxAutocompleteLimit)
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.resolver.Autocomplete(c.Request.Context(), q, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, rows)
}

func (h *Handler) FilterOptions(c *gin.Context) {
	if !h.allow(c) {
		return
	}
	opts, err := h.resolver.FilterOptions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, opts)
}
