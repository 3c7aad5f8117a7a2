package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/groupdeal/internal/app/stats"
	"github.com/dalemusser/groupdeal/internal/app/system/bizerr"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"github.com/dalemusser/groupdeal/internal/testutil/memstore"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func seedActivity(activities *memstore.Activities, requiredCount int, groupPrice float64) models.Activity {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return activities.Seed(models.Activity{
		ProductID:      primitive.NewObjectID(),
		Name:           "Widget Deal",
		GroupPrice:     groupPrice,
		OriginalPrice:  groupPrice * 2,
		RequiredCount:  requiredCount,
		TimeLimitHours: 24,
		StartTime:      now.Add(-time.Hour),
		EndTime:        now.Add(24 * time.Hour),
		Status:         models.ActivityActive,
	})
}

func seedGroup(groups *memstore.Groups, activityID primitive.ObjectID, status models.GroupStatus, count int) {
	groups.Seed(models.Group{
		ActivityID:   activityID,
		InitiatorID:  primitive.NewObjectID(),
		CurrentCount: count,
		ExpireTime:   time.Now().Add(time.Hour),
		Status:       status,
	})
}

func TestGetActivityStats(t *testing.T) {
	activities := memstore.NewActivities()
	groups := memstore.NewGroups()
	agg := stats.New(activities, groups)

	a := seedActivity(activities, 3, 79.99)
	seedGroup(groups, a.ID, models.GroupSuccess, 3)
	seedGroup(groups, a.ID, models.GroupSuccess, 3)
	seedGroup(groups, a.ID, models.GroupFailed, 2)
	seedGroup(groups, a.ID, models.GroupInProgress, 1)

	// An unrelated activity's groups never bleed in.
	other := seedActivity(activities, 2, 10)
	seedGroup(groups, other.ID, models.GroupSuccess, 2)

	st, err := agg.GetActivityStats(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetActivityStats failed: %v", err)
	}

	if st.TotalGroups != 4 {
		t.Errorf("total_groups = %d, want 4", st.TotalGroups)
	}
	if st.SuccessGroups != 2 || st.FailedGroups != 1 || st.InProgressGroups != 1 {
		t.Errorf("breakdown = %d/%d/%d, want 2/1/1", st.SuccessGroups, st.FailedGroups, st.InProgressGroups)
	}
	if st.TotalParticipants != 9 {
		t.Errorf("total_participants = %d, want 9", st.TotalParticipants)
	}
	if st.SuccessRate != 50 {
		t.Errorf("success_rate = %v, want 50", st.SuccessRate)
	}
	// 2 successful groups * 3 members * 79.99
	if st.TotalSales != 479.94 {
		t.Errorf("total_sales = %v, want 479.94", st.TotalSales)
	}
}

func TestGetActivityStats_RoundsRate(t *testing.T) {
	activities := memstore.NewActivities()
	groups := memstore.NewGroups()
	agg := stats.New(activities, groups)

	a := seedActivity(activities, 2, 10)
	seedGroup(groups, a.ID, models.GroupSuccess, 2)
	seedGroup(groups, a.ID, models.GroupFailed, 1)
	seedGroup(groups, a.ID, models.GroupFailed, 1)

	st, err := agg.GetActivityStats(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetActivityStats failed: %v", err)
	}
	// 1/3 of groups succeeded.
	if st.SuccessRate != 33.33 {
		t.Errorf("success_rate = %v, want 33.33", st.SuccessRate)
	}
}

func TestGetActivityStats_NoGroups(t *testing.T) {
	activities := memstore.NewActivities()
	groups := memstore.NewGroups()
	agg := stats.New(activities, groups)

	a := seedActivity(activities, 3, 79.99)

	st, err := agg.GetActivityStats(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetActivityStats failed: %v", err)
	}
	if st.TotalGroups != 0 || st.SuccessRate != 0 || st.TotalSales != 0 {
		t.Errorf("empty activity stats not zeroed: %+v", st)
	}
}

func TestGetActivityStats_UnknownActivity(t *testing.T) {
	agg := stats.New(memstore.NewActivities(), memstore.NewGroups())

	if _, err := agg.GetActivityStats(context.Background(), primitive.NewObjectID()); !bizerr.IsKind(err, bizerr.KindNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}
