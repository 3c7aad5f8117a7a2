// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize strips dangerous markup from admin-supplied
// text before it is stored. Activity descriptions may carry basic
// formatting; names and titles must be plain text.
package htmlsanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// Sanitize keeps user-generated-content formatting (paragraphs, bold,
// links with safe hrefs) and removes scripts, event handlers, and
// javascript: URLs.
func Sanitize(html string) string {
	return ugcPolicy.Sanitize(html)
}

// Strict strips all markup, leaving plain text only.
func Strict(s string) string {
	return strictPolicy.Sanitize(s)
}
