// internal/app/refund/refund.go

// Package refund defines the signal the sweeper emits for every
// participant of a failed group. Actual payment reversal is a
// downstream concern; executors must be idempotent because a signal
// may be re-emitted if a sweep is retried.
package refund

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Signal identifies one owed refund. OrderID is nil when the
// participation never produced a commerce order, in which case nothing
// was charged and the signal is a no-op for the executor.
type Signal struct {
	ID      uuid.UUID
	GroupID primitive.ObjectID
	UserID  primitive.ObjectID
	OrderID *primitive.ObjectID
}

// signalNamespace scopes the deterministic signal IDs below.
var signalNamespace = uuid.MustParse("5ab3f1c4-9d2e-4b67-8f01-c3a7d94e6b28")

// NewSignal builds the refund signal for one participation. The ID is
// derived from the participation, so re-emitting the signal after an
// interrupted sweep yields the same idempotency key and executors can
// deduplicate.
func NewSignal(participationID, groupID, userID primitive.ObjectID, orderID *primitive.ObjectID) Signal {
	return Signal{
		ID:      uuid.NewSHA1(signalNamespace, participationID[:]),
		GroupID: groupID,
		UserID:  userID,
		OrderID: orderID,
	}
}

// Executor receives refund signals. Implementations talk to the
// payment side of the platform.
type Executor interface {
	Execute(ctx context.Context, sig Signal) error
}

// LogExecutor records signals in the log and does nothing else. It is
// the default wiring until a payment integration is configured, and it
// is what tests assert against.
type LogExecutor struct {
	log *zap.Logger
}

func NewLogExecutor(logger *zap.Logger) *LogExecutor {
	return &LogExecutor{log: logger}
}

func (e *LogExecutor) Execute(ctx context.Context, sig Signal) error {
	fields := []zap.Field{
		zap.String("signal_id", sig.ID.String()),
		zap.String("group_id", sig.GroupID.Hex()),
		zap.String("user_id", sig.UserID.Hex()),
	}
	if sig.OrderID != nil {
		fields = append(fields, zap.String("order_id", sig.OrderID.Hex()))
		e.log.Info("refund signal emitted", fields...)
		return nil
	}
	e.log.Info("refund signal emitted (no linked order, nothing charged)", fields...)
	return nil
}
