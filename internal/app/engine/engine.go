// internal/app/engine/engine.go

// Package engine creates groups, admits participants, and is the sole
// authority for flipping a group to success. Failure by timeout belongs
// to the sweeper; both paths go through the group store's conditional
// updates so the two can race safely.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	groupstore "github.com/dalemusser/groupdeal/internal/app/store/groups"
	participationstore "github.com/dalemusser/groupdeal/internal/app/store/participations"
	"github.com/dalemusser/groupdeal/internal/app/system/bizerr"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Store surfaces the engine depends on. The concrete mongo stores
// satisfy them; tests substitute in-memory fakes.
type ActivityStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Activity, error)
}

type GroupStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	Create(ctx context.Context, g models.Group) (models.Group, error)
	IncrementIfJoinable(ctx context.Context, id primitive.ObjectID, requiredCount int, now time.Time) (models.Group, error)
	MarkSuccess(ctx context.Context, id primitive.ObjectID) (bool, error)
	MarkSettled(ctx context.Context, id primitive.ObjectID) error
}

type ParticipationStore interface {
	Create(ctx context.Context, p models.Participation) (models.Participation, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	Exists(ctx context.Context, userID, groupID primitive.ObjectID) (bool, error)
	CountByUserAndActivity(ctx context.Context, userID, activityID primitive.ObjectID) (int64, error)
	UpdateStatusByGroup(ctx context.Context, groupID primitive.ObjectID, status models.GroupStatus) (int64, error)
	FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Participation, error)
}

type UserStore interface {
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
}

type ProductStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Product, error)
}

type Engine struct {
	activities     ActivityStore
	groups         GroupStore
	participations ParticipationStore
	users          UserStore
	products       ProductStore
	clk            clock.Clock
	log            *zap.Logger
}

func New(activities ActivityStore, groups GroupStore, participations ParticipationStore,
	users UserStore, products ProductStore, clk clock.Clock, logger *zap.Logger) *Engine {
	return &Engine{
		activities:     activities,
		groups:         groups,
		participations: participations,
		users:          users,
		products:       products,
		clk:            clk,
		log:            logger,
	}
}

// Initiate opens a new group with the caller as its first member.
func (e *Engine) Initiate(ctx context.Context, userID, activityID primitive.ObjectID) (Detail, error) {
	a, err := e.activity(ctx, activityID)
	if err != nil {
		return Detail{}, err
	}

	now := e.clk.Now()
	if err := checkActivityOpen(a, now); err != nil {
		return Detail{}, err
	}
	if err := e.checkParticipationCap(ctx, userID, a); err != nil {
		return Detail{}, err
	}

	g, err := e.groups.Create(ctx, models.Group{
		ActivityID:   activityID,
		InitiatorID:  userID,
		CurrentCount: 1,
		ExpireTime:   a.GroupDeadline(now),
		Status:       models.GroupInProgress,
	})
	if err != nil {
		return Detail{}, err
	}

	if _, err := e.participations.Create(ctx, models.Participation{
		GroupID:    g.ID,
		ActivityID: activityID,
		UserID:     userID,
		Status:     models.GroupInProgress,
	}); err != nil {
		return Detail{}, err
	}

	e.log.Info("group initiated",
		zap.String("group_id", g.ID.Hex()),
		zap.String("activity_id", activityID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.Time("expire_time", g.ExpireTime))

	return e.GetGroupDetail(ctx, g.ID)
}

// Join admits a user into an open group. The participation insert and
// the conditional count increment are the atomic unit: the unique
// (group, user) index rejects duplicate joins, and the increment's
// compare filter serializes racing joiners so the group reaches its
// required count exactly once.
func (e *Engine) Join(ctx context.Context, userID, groupID primitive.ObjectID) (models.Group, error) {
	g, err := e.groups.GetByID(ctx, groupID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Group{}, bizerr.New(bizerr.KindNotFound, "group not found")
		}
		return models.Group{}, err
	}

	now := e.clk.Now()
	// A completed group reads as full, not expired; a failed or
	// lazily-expired one must look failed to a joiner even before the
	// sweeper physically marks it.
	switch {
	case g.Status == models.GroupSuccess:
		return models.Group{}, bizerr.New(bizerr.KindGroupFull, "this group is already full")
	case g.Status == models.GroupFailed || g.Expired(now):
		return models.Group{}, bizerr.New(bizerr.KindGroupExpired, "this group has expired")
	}

	a, err := e.activity(ctx, g.ActivityID)
	if err != nil {
		return models.Group{}, err
	}

	if g.CurrentCount >= a.RequiredCount {
		return models.Group{}, bizerr.New(bizerr.KindGroupFull, "this group is already full")
	}

	exists, err := e.participations.Exists(ctx, userID, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if exists {
		return models.Group{}, bizerr.New(bizerr.KindAlreadyJoined, "you have already joined this group")
	}
	if err := e.checkParticipationCap(ctx, userID, a); err != nil {
		return models.Group{}, err
	}

	p, err := e.participations.Create(ctx, models.Participation{
		GroupID:    groupID,
		ActivityID: g.ActivityID,
		UserID:     userID,
		Status:     models.GroupInProgress,
	})
	if err != nil {
		if err == participationstore.ErrDuplicateParticipation {
			return models.Group{}, bizerr.New(bizerr.KindAlreadyJoined, "you have already joined this group")
		}
		return models.Group{}, err
	}

	updated, err := e.groups.IncrementIfJoinable(ctx, groupID, a.RequiredCount, now)
	if err != nil {
		// The slot did not land; take the participation back out and
		// report why the group stopped being joinable.
		if delErr := e.participations.Delete(ctx, p.ID); delErr != nil {
			e.log.Error("failed to remove unconfirmed participation",
				zap.String("participation_id", p.ID.Hex()),
				zap.Error(delErr))
		}
		if err == groupstore.ErrNotJoinable {
			return models.Group{}, e.classifyMiss(ctx, groupID, a.RequiredCount, now)
		}
		return models.Group{}, err
	}

	if updated.CurrentCount == a.RequiredCount {
		if err := e.complete(ctx, updated); err != nil {
			return models.Group{}, err
		}
		updated.Status = models.GroupSuccess
	}

	e.log.Info("user joined group",
		zap.String("group_id", groupID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.Int("current_count", updated.CurrentCount),
		zap.String("status", string(updated.Status)))

	return updated, nil
}

// complete flips the group to success, propagates the status to its
// participations, and records the group settled. The conditional mark
// makes completion land exactly once; if the sweeper failed the group
// in the same instant, the sweeper's transition wins and this becomes
// a no-op.
//
// Once the mark lands the join has succeeded, so propagation or
// settlement failures do not fail the join: the group stays unsettled
// and the sweeper's reconciliation pass retries them.
func (e *Engine) complete(ctx context.Context, g models.Group) error {
	ok, err := e.groups.MarkSuccess(ctx, g.ID)
	if err != nil {
		return err
	}
	if !ok {
		e.log.Warn("group completion lost the race to another transition",
			zap.String("group_id", g.ID.Hex()))
		return nil
	}
	if _, err := e.participations.UpdateStatusByGroup(ctx, g.ID, models.GroupSuccess); err != nil {
		e.log.Error("success propagation interrupted; leaving group unsettled for the next sweep",
			zap.String("group_id", g.ID.Hex()),
			zap.Error(err))
		return nil
	}
	if err := e.groups.MarkSettled(ctx, g.ID); err != nil {
		e.log.Error("settlement mark interrupted; leaving group unsettled for the next sweep",
			zap.String("group_id", g.ID.Hex()),
			zap.Error(err))
		return nil
	}
	e.log.Info("group completed",
		zap.String("group_id", g.ID.Hex()),
		zap.Int("participants", g.CurrentCount))
	return nil
}

// classifyMiss re-reads a group after a failed conditional increment to
// report the precise rejection.
func (e *Engine) classifyMiss(ctx context.Context, groupID primitive.ObjectID, requiredCount int, now time.Time) error {
	g, err := e.groups.GetByID(ctx, groupID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return bizerr.New(bizerr.KindNotFound, "group not found")
		}
		return err
	}
	switch {
	case g.Status == models.GroupSuccess || g.CurrentCount >= requiredCount:
		return bizerr.New(bizerr.KindGroupFull, "this group is already full")
	case g.Status == models.GroupFailed || g.Expired(now):
		return bizerr.New(bizerr.KindGroupExpired, "this group has expired")
	}
	return fmt.Errorf("join conflict on group %s; state changed mid-flight", groupID.Hex())
}

func (e *Engine) activity(ctx context.Context, id primitive.ObjectID) (models.Activity, error) {
	a, err := e.activities.GetByID(ctx, id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Activity{}, bizerr.New(bizerr.KindNotFound, "activity not found")
		}
		return models.Activity{}, err
	}
	return a, nil
}

// checkActivityOpen enforces the initiate window: the activity must be
// inside [start, end) and not manually ended.
func checkActivityOpen(a models.Activity, now time.Time) error {
	if a.Status == models.ActivityEnded || !now.Before(a.EndTime) {
		return bizerr.New(bizerr.KindActivityExpired, "this activity has ended")
	}
	if now.Before(a.StartTime) {
		return bizerr.New(bizerr.KindActivityExpired, "this activity has not started yet")
	}
	return nil
}

func (e *Engine) checkParticipationCap(ctx context.Context, userID primitive.ObjectID, a models.Activity) error {
	if a.MaxPerUser <= 0 {
		return nil
	}
	n, err := e.participations.CountByUserAndActivity(ctx, userID, a.ID)
	if err != nil {
		return err
	}
	if n >= int64(a.MaxPerUser) {
		return bizerr.Newf(bizerr.KindParticipationLimit,
			"participation limit reached: at most %d per user for this activity", a.MaxPerUser)
	}
	return nil
}
