// internal/app/store/activities/activitystore.go
package activitystore

import (
	"context"
	"time"

	"github.com/dalemusser/groupdeal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("activities")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Activity, error) {
	var a models.Activity
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return models.Activity{}, err
	}
	return a, nil
}

func (s *Store) Create(ctx context.Context, a models.Activity) (models.Activity, error) {
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	if a.Status == "" {
		a.Status = models.ActivityNotStarted
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Activity{}, err
	}
	return a, nil
}

// Update is a partial update; nil fields are left untouched.
// Validation of the resulting combination is the registry's job.
type Update struct {
	Name           *string
	Description    *string
	GroupPrice     *float64
	OriginalPrice  *float64
	RequiredCount  *int
	TimeLimitHours *int
	MaxPerUser     *int
	StartTime      *time.Time
	EndTime        *time.Time
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.GroupPrice != nil {
		set["group_price"] = *upd.GroupPrice
	}
	if upd.OriginalPrice != nil {
		set["original_price"] = *upd.OriginalPrice
	}
	if upd.RequiredCount != nil {
		set["required_count"] = *upd.RequiredCount
	}
	if upd.TimeLimitHours != nil {
		set["time_limit_hours"] = *upd.TimeLimitHours
	}
	if upd.MaxPerUser != nil {
		set["max_per_user"] = *upd.MaxPerUser
	}
	if upd.StartTime != nil {
		set["start_time"] = upd.StartTime.UTC()
	}
	if upd.EndTime != nil {
		set["end_time"] = upd.EndTime.UTC()
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetStatus moves an activity's status with a conditional update: the
// write lands only if the current status is one of from. Returns true
// when a document changed, false when the activity was absent or no
// longer in an eligible status.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, to models.ActivityStatus, from ...models.ActivityStatus) (bool, error) {
	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// AdvanceWindows promotes activities whose wall-clock window has moved
// past them: not_started -> active once start_time is reached, and
// not_started/active -> ended once end_time is reached. Both writes are
// conditional on the current status, so repeated calls are no-ops.
func (s *Store) AdvanceWindows(ctx context.Context, now time.Time) (started, ended int64, err error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"status": models.ActivityNotStarted, "start_time": bson.M{"$lte": now}, "end_time": bson.M{"$gt": now}},
		bson.M{"$set": bson.M{"status": models.ActivityActive, "updated_at": now.UTC()}})
	if err != nil {
		return 0, 0, err
	}
	started = res.ModifiedCount

	res, err = s.c.UpdateMany(ctx,
		bson.M{"status": bson.M{"$in": []models.ActivityStatus{models.ActivityNotStarted, models.ActivityActive}}, "end_time": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"status": models.ActivityEnded, "updated_at": now.UTC()}})
	if err != nil {
		return started, 0, err
	}
	return started, res.ModifiedCount, nil
}

// Filter narrows List results; zero values mean "no constraint".
type Filter struct {
	Status    models.ActivityStatus
	ProductID primitive.ObjectID
}

// List returns activities newest-first with skip/limit paging, plus the
// total count for the filter.
func (s *Store) List(ctx context.Context, f Filter, page, pageSize int) ([]models.Activity, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if !f.ProductID.IsZero() {
		filter["product_id"] = f.ProductID
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var activities []models.Activity
	if err := cur.All(ctx, &activities); err != nil {
		return nil, 0, err
	}
	return activities, total, nil
}
