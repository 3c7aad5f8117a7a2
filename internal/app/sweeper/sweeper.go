// internal/app/sweeper/sweeper.go

// Package sweeper fails open groups whose deadline has passed and
// signals refunds for their participants. It is the only path that
// moves a group to failed; completion stays with the engine. Every
// per-group transition is a conditional update, so the sweeper can run
// concurrently with joins and with itself.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dalemusser/groupdeal/internal/app/refund"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultBatchSize caps how many expired groups one sweep pass loads.
// Leftovers are picked up by the next cycle.
const DefaultBatchSize = 500

type GroupStore interface {
	FindExpiredInProgress(ctx context.Context, now time.Time, limit int64) ([]models.Group, error)
	FindUnsettledTerminal(ctx context.Context, limit int64) ([]models.Group, error)
	MarkFailed(ctx context.Context, id primitive.ObjectID) (bool, error)
	MarkSettled(ctx context.Context, id primitive.ObjectID) error
}

type ParticipationStore interface {
	FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Participation, error)
	UpdateStatusByGroup(ctx context.Context, groupID primitive.ObjectID, status models.GroupStatus) (int64, error)
}

type ActivityStore interface {
	AdvanceWindows(ctx context.Context, now time.Time) (started, ended int64, err error)
}

type Sweeper struct {
	groups         GroupStore
	participations ParticipationStore
	activities     ActivityStore
	refunds        refund.Executor
	clk            clock.Clock
	log            *zap.Logger
	batchSize      int64
}

func New(groups GroupStore, participations ParticipationStore, activities ActivityStore,
	refunds refund.Executor, clk clock.Clock, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		groups:         groups,
		participations: participations,
		activities:     activities,
		refunds:        refunds,
		clk:            clk,
		log:            logger,
		batchSize:      DefaultBatchSize,
	}
}

// Result summarizes one sweep pass. Errors holds per-group failures;
// one bad group never aborts the sweep.
type Result struct {
	Processed     int
	RefundSignals int
	Errors        []error
}

// SweepExpiredGroups fails every in-progress group whose deadline has
// passed. Per group: a conditional in_progress -> failed mark (a miss
// means another path already resolved it and the group is skipped),
// propagation of failed to its participations, and one refund signal
// per participation.
func (s *Sweeper) SweepExpiredGroups(ctx context.Context) Result {
	var res Result

	now := s.clk.Now()
	expired, err := s.groups.FindExpiredInProgress(ctx, now, s.batchSize)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("scan expired groups: %w", err))
		return res
	}

	for _, g := range expired {
		signals, err := s.failGroup(ctx, g)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("group %s: %w", g.ID.Hex(), err))
			s.log.Error("sweep: failed to process expired group",
				zap.String("group_id", g.ID.Hex()),
				zap.Error(err))
			continue
		}
		if signals < 0 {
			// Already resolved by a concurrent join or sweep.
			continue
		}
		res.Processed++
		res.RefundSignals += signals
	}

	if res.Processed > 0 || len(res.Errors) > 0 {
		s.log.Info("sweep finished",
			zap.Int("processed", res.Processed),
			zap.Int("refund_signals", res.RefundSignals),
			zap.Int("errors", len(res.Errors)))
	}
	return res
}

// failGroup returns the number of refund signals emitted, or -1 when
// the conditional mark reported the group already resolved.
func (s *Sweeper) failGroup(ctx context.Context, g models.Group) (int, error) {
	ok, err := s.groups.MarkFailed(ctx, g.ID)
	if err != nil {
		return 0, fmt.Errorf("mark failed: %w", err)
	}
	if !ok {
		return -1, nil
	}
	return s.settleFailed(ctx, g)
}

// settleFailed applies a failed group's follow-up effects: one refund
// signal per participation, status propagation, then the settled mark.
// Any interruption leaves the group unsettled and the whole sequence is
// rerun by the reconcile pass; signals carry deterministic IDs so a
// rerun's duplicates are detectable downstream.
func (s *Sweeper) settleFailed(ctx context.Context, g models.Group) (int, error) {
	parts, err := s.participations.FindByGroup(ctx, g.ID)
	if err != nil {
		return 0, fmt.Errorf("load participations: %w", err)
	}

	emitted := 0
	for _, p := range parts {
		sig := refund.NewSignal(p.ID, g.ID, p.UserID, p.OrderID)
		if err := s.refunds.Execute(ctx, sig); err != nil {
			return emitted, fmt.Errorf("refund signal for user %s: %w", p.UserID.Hex(), err)
		}
		emitted++
	}

	if _, err := s.participations.UpdateStatusByGroup(ctx, g.ID, models.GroupFailed); err != nil {
		return emitted, fmt.Errorf("propagate failed status: %w", err)
	}
	if err := s.groups.MarkSettled(ctx, g.ID); err != nil {
		return emitted, fmt.Errorf("mark settled: %w", err)
	}

	s.log.Info("expired group failed",
		zap.String("group_id", g.ID.Hex()),
		zap.Int("participants", len(parts)),
		zap.Time("expire_time", g.ExpireTime))
	return emitted, nil
}

// settleSuccess finishes a completed group whose propagation was
// interrupted on the join path.
func (s *Sweeper) settleSuccess(ctx context.Context, g models.Group) error {
	if _, err := s.participations.UpdateStatusByGroup(ctx, g.ID, models.GroupSuccess); err != nil {
		return fmt.Errorf("propagate success status: %w", err)
	}
	if err := s.groups.MarkSettled(ctx, g.ID); err != nil {
		return fmt.Errorf("mark settled: %w", err)
	}
	return nil
}

// ReconcileUnsettled retries the follow-up effects of terminal groups
// whose settlement was interrupted: participations stranded in_progress
// get their final status, and failed groups re-emit their refund
// signals. Runs ahead of the expiry scan each cycle so nothing stays
// stranded longer than one interval.
func (s *Sweeper) ReconcileUnsettled(ctx context.Context) Result {
	var res Result

	groups, err := s.groups.FindUnsettledTerminal(ctx, s.batchSize)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("scan unsettled groups: %w", err))
		return res
	}

	for _, g := range groups {
		var (
			signals int
			err     error
		)
		switch g.Status {
		case models.GroupFailed:
			signals, err = s.settleFailed(ctx, g)
		case models.GroupSuccess:
			err = s.settleSuccess(ctx, g)
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("reconcile group %s: %w", g.ID.Hex(), err))
			s.log.Error("sweep: failed to reconcile unsettled group",
				zap.String("group_id", g.ID.Hex()),
				zap.String("status", string(g.Status)),
				zap.Error(err))
			continue
		}
		res.Processed++
		res.RefundSignals += signals
	}

	if res.Processed > 0 {
		s.log.Info("unsettled groups reconciled",
			zap.Int("processed", res.Processed),
			zap.Int("refund_signals", res.RefundSignals))
	}
	return res
}

// AdvanceActivityStatuses lazily promotes activities across their
// window boundaries. It shares the sweep's scheduling cycle but is
// independent of it; a failure here never blocks the group sweep.
func (s *Sweeper) AdvanceActivityStatuses(ctx context.Context) (started, ended int64, err error) {
	started, ended, err = s.activities.AdvanceWindows(ctx, s.clk.Now())
	if err != nil {
		return 0, 0, err
	}
	if started > 0 || ended > 0 {
		s.log.Info("activity statuses advanced",
			zap.Int64("started", started),
			zap.Int64("ended", ended))
	}
	return started, ended, nil
}

// RunOnce executes one full scheduling cycle: activity window
// advancement, reconciliation of interrupted settlements, then the
// group sweep. Advancement failures are folded into the result's error
// list.
func (s *Sweeper) RunOnce(ctx context.Context) Result {
	var pre []error
	if _, _, err := s.AdvanceActivityStatuses(ctx); err != nil {
		pre = append(pre, fmt.Errorf("advance activity statuses: %w", err))
		s.log.Error("sweep: activity status advancement failed", zap.Error(err))
	}

	rec := s.ReconcileUnsettled(ctx)

	res := s.SweepExpiredGroups(ctx)
	res.Processed += rec.Processed
	res.RefundSignals += rec.RefundSignals
	res.Errors = append(append(pre, rec.Errors...), res.Errors...)
	return res
}
