package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// detail serves a single resource looked up by a UUID path parameter.
func detail[T any](h *Handler, param string, get func(context.Context, string) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.allow(c) {
			return
		}
		id, valid := h.pathID(c, param)
		if !valid {
			return
		}
		v, err := get(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		ok(c, v)
	}
}

// stats serves an uncached aggregate that takes no parameters.
func stats[T any](h *Handler, compute func(context.Context) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.allow(c) {
			return
		}
		v, err := compute(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		ok(c, v)
	}
}
