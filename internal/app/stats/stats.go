// internal/app/stats/stats.go

// Package stats derives per-activity figures purely from group and
// participation data. It holds no state of its own and never mutates
// anything.
package stats

import (
	"context"
	"math"

	"github.com/dalemusser/groupdeal/internal/app/system/bizerr"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type ActivityStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Activity, error)
}

type GroupStore interface {
	ListByActivity(ctx context.Context, activityID primitive.ObjectID) ([]models.Group, error)
}

type Aggregator struct {
	activities ActivityStore
	groups     GroupStore
}

func New(activities ActivityStore, groups GroupStore) *Aggregator {
	return &Aggregator{activities: activities, groups: groups}
}

// ActivityStats is the derived per-activity summary.
type ActivityStats struct {
	ActivityID       primitive.ObjectID `json:"activity_id"`
	TotalGroups      int                `json:"total_groups"`
	SuccessGroups    int                `json:"success_groups"`
	FailedGroups     int                `json:"failed_groups"`
	InProgressGroups int                `json:"in_progress_groups"`
	TotalParticipants int               `json:"total_participants"`
	SuccessRate      float64            `json:"success_rate"`
	TotalSales       float64            `json:"total_sales"`
}

// GetActivityStats computes the summary for one activity.
//
// TotalParticipants sums current_count over all groups, including
// in-progress ones. SuccessRate is successGroups/totalGroups*100 (0
// when there are no groups). TotalSales counts only successful groups
// at full headcount and group price; partial counts in failed or open
// groups never contribute. Rates and sales are rounded to 2 decimals.
func (a *Aggregator) GetActivityStats(ctx context.Context, activityID primitive.ObjectID) (ActivityStats, error) {
	act, err := a.activities.GetByID(ctx, activityID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ActivityStats{}, bizerr.New(bizerr.KindNotFound, "activity not found")
		}
		return ActivityStats{}, err
	}

	groups, err := a.groups.ListByActivity(ctx, activityID)
	if err != nil {
		return ActivityStats{}, err
	}

	st := ActivityStats{ActivityID: activityID}
	for _, g := range groups {
		st.TotalGroups++
		st.TotalParticipants += g.CurrentCount
		switch g.Status {
		case models.GroupSuccess:
			st.SuccessGroups++
		case models.GroupFailed:
			st.FailedGroups++
		case models.GroupInProgress:
			st.InProgressGroups++
		}
	}

	if st.TotalGroups > 0 {
		st.SuccessRate = round2(float64(st.SuccessGroups) / float64(st.TotalGroups) * 100)
	}
	st.TotalSales = round2(float64(st.SuccessGroups) * float64(act.RequiredCount) * act.GroupPrice)

	return st, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
