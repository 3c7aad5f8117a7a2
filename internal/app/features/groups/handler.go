// internal/app/features/groups/handler.go
package groups

import (
	"github.com/dalemusser/groupdeal/internal/app/engine"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature:
// initiating, joining, and viewing group-buy groups.
type Handler struct {
	Engine *engine.Engine
	Log    *zap.Logger
}

func NewHandler(eng *engine.Engine, logger *zap.Logger) *Handler {
	return &Handler{Engine: eng, Log: logger}
}
