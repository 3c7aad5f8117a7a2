// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventLoginSuccess   = "login_success"
	EventLoginFailed    = "login_failed"
	EventLoginThrottled = "login_throttled"
	EventLogout         = "logout"
)

// Admin event types
const (
	EventActivityCreated = "activity_created"
	EventActivityUpdated = "activity_updated"
	EventActivityStarted = "activity_started"
	EventActivityEnded   = "activity_ended"
)

// Event is one recorded auth or admin action. Events are append-only;
// nothing in the app updates or deletes them.
type Event struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Category  string              `bson:"category" json:"category"`
	Type      string              `bson:"type" json:"type"`
	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	ActorRole string              `bson:"actor_role,omitempty" json:"actor_role,omitempty"`
	TargetID  *primitive.ObjectID `bson:"target_id,omitempty" json:"target_id,omitempty"`
	IP        string              `bson:"ip,omitempty" json:"ip,omitempty"`
	Detail    string              `bson:"detail,omitempty" json:"detail,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log appends one event. CreatedAt is stamped here so callers never
// have to.
func (s *Store) Log(ctx context.Context, event Event) error {
	event.ID = primitive.NewObjectID()
	event.CreatedAt = time.Now().UTC()
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// GetRecent returns the newest events, most recent first.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.find(ctx, bson.M{}, limit)
}

// GetByActor returns an actor's newest events, most recent first.
func (s *Store) GetByActor(ctx context.Context, actorID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.find(ctx, bson.M{"actor_id": actorID}, limit)
}

func (s *Store) find(ctx context.Context, filter bson.M, limit int64) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
