// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
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

// ErrNotJoinable is returned by IncrementIfJoinable when no document
// matched the join filter: the group is absent, terminal, expired, or
// already at its required count. The engine re-reads to classify which.
var ErrNotJoinable = errors.New("group is not joinable")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	if g.Status == "" {
		g.Status = models.GroupInProgress
	}
	if g.CurrentCount == 0 {
		g.CurrentCount = 1
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// IncrementIfJoinable is the serialization point for concurrent joins.
// The filter and the increment execute as one document-level atomic
// write, so of any number of racing joiners at requiredCount-1 exactly
// one observes the count reach requiredCount.
//
// The filter requires: still in progress, below the required count, and
// not yet past its deadline. On a miss it returns ErrNotJoinable.
func (s *Store) IncrementIfJoinable(ctx context.Context, id primitive.ObjectID, requiredCount int, now time.Time) (models.Group, error) {
	filter := bson.M{
		"_id":           id,
		"status":        models.GroupInProgress,
		"current_count": bson.M{"$lt": requiredCount},
		"expire_time":   bson.M{"$gt": now},
	}
	update := bson.M{
		"$inc": bson.M{"current_count": 1},
		"$set": bson.M{"updated_at": now.UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var g models.Group
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return models.Group{}, ErrNotJoinable
	}
	if err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// MarkSuccess flips in_progress -> success. The status filter makes the
// transition land at most once; false means another path already
// resolved the group.
func (s *Store) MarkSuccess(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return s.markTerminal(ctx, id, models.GroupSuccess)
}

// MarkFailed flips in_progress -> failed under the same at-most-once
// contract as MarkSuccess.
func (s *Store) MarkFailed(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return s.markTerminal(ctx, id, models.GroupFailed)
}

func (s *Store) markTerminal(ctx context.Context, id primitive.ObjectID, to models.GroupStatus) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.GroupInProgress},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// MarkSettled records that a terminal group's follow-up effects have
// been applied. Until this lands, the group stays visible to
// FindUnsettledTerminal and settlement is retried.
func (s *Store) MarkSettled(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"settled": true, "updated_at": time.Now().UTC()}})
	return err
}

// FindUnsettledTerminal returns terminal groups whose settlement never
// completed, oldest transition first. The $ne form also matches
// documents written before the settled field existed.
func (s *Store) FindUnsettledTerminal(ctx context.Context, limit int64) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{
		"status":  bson.M{"$in": []models.GroupStatus{models.GroupSuccess, models.GroupFailed}},
		"settled": bson.M{"$ne": true},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// FindExpiredInProgress returns open groups whose deadline has passed,
// oldest deadline first. The sweeper walks this set.
func (s *Store) FindExpiredInProgress(ctx context.Context, now time.Time, limit int64) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "expire_time", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{
		"status":      models.GroupInProgress,
		"expire_time": bson.M{"$lte": now},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListByActivity returns every group of an activity, oldest first.
func (s *Store) ListByActivity(ctx context.Context, activityID primitive.ObjectID) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"activity_id": activityID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// CountByActivity returns the number of groups for an activity,
// optionally narrowed to one status.
func (s *Store) CountByActivity(ctx context.Context, activityID primitive.ObjectID, status models.GroupStatus) (int64, error) {
	filter := bson.M{"activity_id": activityID}
	if status != "" {
		filter["status"] = status
	}
	return s.c.CountDocuments(ctx, filter)
}
