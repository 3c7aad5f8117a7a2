// internal/app/system/auditlog/auditlog.go

// Package auditlog records who did what: sign-ins, sign-outs, and
// admin changes to activities. Events go to the audit collection, the
// structured log, or both, depending on the configured mode. Recording
// is best-effort; an audit write failure never fails the request that
// triggered it.
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/groupdeal/internal/app/store/audit"
	"github.com/dalemusser/groupdeal/internal/app/system/auth"
	"github.com/dalemusser/groupdeal/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Modes controlling where events are written.
const (
	ModeAll = "all" // collection and log
	ModeDB  = "db"  // collection only
	ModeLog = "log" // log only
	ModeOff = "off"
)

// Recorder writes audit events. A nil store degrades to log-only.
type Recorder struct {
	store *audit.Store
	log   *zap.Logger
	mode  string
}

func New(store *audit.Store, logger *zap.Logger, mode string) *Recorder {
	switch mode {
	case ModeAll, ModeDB, ModeLog, ModeOff:
	default:
		mode = ModeAll
	}
	if store == nil && mode != ModeOff {
		mode = ModeLog
	}
	return &Recorder{store: store, log: logger, mode: mode}
}

func (r *Recorder) record(ctx context.Context, event audit.Event) {
	if r.mode == ModeOff {
		return
	}
	if r.mode == ModeAll || r.mode == ModeLog {
		fields := []zap.Field{
			zap.String("category", event.Category),
			zap.String("type", event.Type),
		}
		if event.ActorID != nil {
			fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
		}
		if event.TargetID != nil {
			fields = append(fields, zap.String("target_id", event.TargetID.Hex()))
		}
		if event.IP != "" {
			fields = append(fields, zap.String("ip", event.IP))
		}
		if event.Detail != "" {
			fields = append(fields, zap.String("detail", event.Detail))
		}
		r.log.Info("audit", fields...)
	}
	if r.mode == ModeAll || r.mode == ModeDB {
		if err := r.store.Log(ctx, event); err != nil {
			r.log.Error("audit event write failed",
				zap.String("type", event.Type),
				zap.Error(err))
		}
	}
}

// LoginSuccess records a completed sign-in.
func (r *Recorder) LoginSuccess(ctx context.Context, req *http.Request, userID primitive.ObjectID, role string) {
	r.record(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		Type:      audit.EventLoginSuccess,
		ActorID:   &userID,
		ActorRole: role,
		IP:        ratelimit.ClientIP(req),
	})
}

// LoginFailed records a rejected sign-in attempt. The reason says why
// (unknown user, wrong password, disabled account) without echoing
// credentials.
func (r *Recorder) LoginFailed(ctx context.Context, req *http.Request, reason string) {
	r.record(ctx, audit.Event{
		Category: audit.CategoryAuth,
		Type:     audit.EventLoginFailed,
		IP:       ratelimit.ClientIP(req),
		Detail:   reason,
	})
}

// LoginThrottled records a sign-in attempt rejected by the rate
// limiter before credentials were checked.
func (r *Recorder) LoginThrottled(ctx context.Context, req *http.Request) {
	r.record(ctx, audit.Event{
		Category: audit.CategoryAuth,
		Type:     audit.EventLoginThrottled,
		IP:       ratelimit.ClientIP(req),
	})
}

// Logout records a sign-out.
func (r *Recorder) Logout(ctx context.Context, req *http.Request, userID string) {
	event := audit.Event{
		Category: audit.CategoryAuth,
		Type:     audit.EventLogout,
		IP:       ratelimit.ClientIP(req),
	}
	if id, err := primitive.ObjectIDFromHex(userID); err == nil {
		event.ActorID = &id
	}
	r.record(ctx, event)
}

// ActivityChanged records an admin action on an activity. eventType is
// one of the audit.EventActivity* constants.
func (r *Recorder) ActivityChanged(ctx context.Context, req *http.Request, eventType string, activityID primitive.ObjectID, detail string) {
	event := audit.Event{
		Category: audit.CategoryAdmin,
		Type:     eventType,
		TargetID: &activityID,
		IP:       ratelimit.ClientIP(req),
		Detail:   detail,
	}
	if u, ok := auth.CurrentUser(req); ok {
		event.ActorRole = u.Role
		if id, err := primitive.ObjectIDFromHex(u.ID); err == nil {
			event.ActorID = &id
		}
	}
	r.record(ctx, event)
}
