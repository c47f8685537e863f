// internal/common/utils/limit.go

package utils

import (
	"net/http"
	"strconv"
)

// ClampLimit returns def for non-positive limits and caps the rest at max.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// QueryLimit reads the "limit" query parameter. A missing or malformed
// value yields 0 so ClampLimit substitutes the default.
func QueryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}
