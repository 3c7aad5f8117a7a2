// internal/app/store/participations/participationstore.go
package participationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/groupdeal/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

// ErrDuplicateParticipation surfaces the unique (group_id, user_id)
// index; it is the storage-level guard behind AlreadyJoined.
var ErrDuplicateParticipation = errors.New("user already participates in this group")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("participations")}
}

func (s *Store) Create(ctx context.Context, p models.Participation) (models.Participation, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	if p.Status == "" {
		p.Status = models.GroupInProgress
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Participation{}, ErrDuplicateParticipation
		}
		return models.Participation{}, err
	}
	return p, nil
}

// Delete removes a participation by ID. It exists only to compensate a
// join whose conditional count increment did not land; resolved
// participations are never deleted.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) FindByUserAndGroup(ctx context.Context, userID, groupID primitive.ObjectID) (models.Participation, error) {
	var p models.Participation
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "group_id": groupID}).Decode(&p)
	if err != nil {
		return models.Participation{}, err
	}
	return p, nil
}

// Exists reports whether the user already holds a participation in the group.
func (s *Store) Exists(ctx context.Context, userID, groupID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "group_id": groupID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountByUserAndActivity counts a user's participations across all
// groups of one activity; the engine compares it against the
// activity's per-user cap.
func (s *Store) CountByUserAndActivity(ctx context.Context, userID, activityID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID, "activity_id": activityID})
}

// UpdateStatusByGroup propagates a group's terminal status to all of
// its participations. Returns the number of documents updated.
func (s *Store) UpdateStatusByGroup(ctx context.Context, groupID primitive.ObjectID, status models.GroupStatus) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"group_id": groupID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// FindByGroup returns a group's participations in append order
// (joined-at ascending, insertion order as the tiebreak). The initiator
// is always first.
func (s *Store) FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Participation, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var participations []models.Participation
	if err := cur.All(ctx, &participations); err != nil {
		return nil, err
	}
	return participations, nil
}

// LinkOrder records the downstream commerce order created for a
// participation, so an eventual refund signal can reference it.
func (s *Store) LinkOrder(ctx context.Context, id, orderID primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"order_id":   orderID,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
