// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureActivities(ctx, db); err != nil {
		problems = append(problems, "activities: "+err.Error())
	}
	if err := ensureGroups(ctx, db); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}
	if err := ensureParticipations(ctx, db); err != nil {
		problems = append(problems, "participations: "+err.Error())
	}
	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureActivities(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection("activities"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "end_time", Value: 1}},
			Options: options.Index().SetName("idx_activities_status_end"),
		},
		{
			Keys:    bson.D{{Key: "product_id", Value: 1}},
			Options: options.Index().SetName("idx_activities_product"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection("groups"), []mongo.IndexModel{
		// The sweeper's scan: open groups ordered by deadline.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expire_time", Value: 1}},
			Options: options.Index().SetName("idx_groups_status_expire"),
		},
		{
			Keys:    bson.D{{Key: "activity_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_groups_activity"),
		},
		// The reconcile scan: terminal groups not yet settled.
		{
			Keys:    bson.D{{Key: "settled", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_groups_settled_status"),
		},
	})
}

func ensureParticipations(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection("participations"), []mongo.IndexModel{
		// The storage-level guard behind AlreadyJoined.
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("uniq_participation_group_user").SetUnique(true),
		},
		// Per-user cap counting across an activity.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "activity_id", Value: 1}},
			Options: options.Index().SetName("idx_participations_user_activity"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_participations_group_joined"),
		},
	})
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "login_id", Value: 1}},
			Options: options.Index().SetName("uniq_users_login").SetUnique(true),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_created"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor"),
		},
	})
}

func createIndexes(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}
