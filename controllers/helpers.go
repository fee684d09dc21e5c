package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/services"
)

// bindJSON decodes the body into req and records a validation error on
// failure. Handlers return when it reports false.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(apperrors.Validation("invalid request: %v", err))
		return false
	}
	return true
}

// pathID parses a positive numeric path parameter.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		_ = c.Error(apperrors.Validation("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

// parsePagination reads limit and offset. Limit is capped at
// services.MaxPageSize.
func parsePagination(c *gin.Context) (int, int, bool) {
	limit, offset := services.DefaultPageSize, 0
	if v := c.Query("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			_ = c.Error(apperrors.Validation("limit must be a positive integer"))
			return 0, 0, false
		}
		limit = l
	}
	if limit > services.MaxPageSize {
		limit = services.MaxPageSize
	}
	if v := c.Query("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil || o < 0 {
			_ = c.Error(apperrors.Validation("offset must be a non-negative integer"))
			return 0, 0, false
		}
		offset = o
	}
	return limit, offset, true
}
