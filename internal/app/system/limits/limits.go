// internal/app/system/limits/limits.go
package limits

// Request body size limits.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBodySize caps JSON request bodies. The largest legitimate
	// payload is an activity create with a long description; 256 KB
	// leaves generous headroom.
	MaxJSONBodySize = 256 << 10
)
