// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// DefaultPageSize is the number of rows returned by list endpoints
// when the caller does not ask for a size.
const DefaultPageSize = 20

// MaxPageSize caps caller-requested page sizes.
const MaxPageSize = 100

// ParsePage extracts the 1-based "page" query parameter. Returns 1 if
// absent or invalid.
func ParsePage(r *http.Request) int {
	s := query.Get(r, "page")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParsePageSize extracts the "page_size" query parameter, clamped to
// [1, MaxPageSize]. Returns DefaultPageSize if absent or invalid.
func ParsePageSize(r *http.Request) int {
	s := query.Get(r, "page_size")
	if s == "" {
		return DefaultPageSize
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
