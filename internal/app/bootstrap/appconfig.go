// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports, TLS,
// logging level, CORS, body size limits). AppConfig is where everything
// specific to this application lives: the MongoDB connection, session
// cookie settings, and the background sweep cadence.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connections in the driver pool
	MongoMinPoolSize uint64 // Min connections kept warm in the pool

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: groupdeal-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Background job configuration
	SweepInterval time.Duration // How often expired groups are swept and activity windows advanced

	// Abuse controls
	LoginRateLimit  int           // Max login attempts per client IP per window
	LoginRateWindow time.Duration // Window for the login rate limit

	// Audit logging mode: all, db, log, or off
	AuditLog string
}
