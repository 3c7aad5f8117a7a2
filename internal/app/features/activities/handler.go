// internal/app/features/activities/handler.go
package activities

import (
	"github.com/dalemusser/groupdeal/internal/app/registry"
	"github.com/dalemusser/groupdeal/internal/app/stats"
	"github.com/dalemusser/groupdeal/internal/app/system/auditlog"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the activities
// feature: admin CRUD, lifecycle actions, and statistics.
type Handler struct {
	Registry *registry.Registry
	Stats    *stats.Aggregator
	Audit    *auditlog.Recorder
	Log      *zap.Logger
}

func NewHandler(reg *registry.Registry, agg *stats.Aggregator, audit *auditlog.Recorder, logger *zap.Logger) *Handler {
	return &Handler{
		Registry: reg,
		Stats:    agg,
		Audit:    audit,
		Log:      logger,
	}
}
