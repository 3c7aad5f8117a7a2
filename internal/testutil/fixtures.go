package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/groupdeal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateProduct inserts a product with the given name and price.
func (f *Fixtures) CreateProduct(ctx context.Context, name string, price float64) models.Product {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Product{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Price:     price,
		Stock:     1000,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("products").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("insert product fixture: %v", err)
	}
	return p
}

// CreateUser inserts a user with the given login and role.
func (f *Fixtures) CreateUser(ctx context.Context, loginID, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:        primitive.NewObjectID(),
		LoginID:   loginID,
		Nickname:  loginID,
		Role:      role,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("insert user fixture: %v", err)
	}
	return u
}

// ActivitySpec tweaks the fields of an activity fixture that tests
// commonly care about. Zero values fall back to sane defaults.
type ActivitySpec struct {
	Status         models.ActivityStatus
	RequiredCount  int
	TimeLimitHours int
	MaxPerUser     int
	StartTime      time.Time
	EndTime        time.Time
}

// CreateActivity inserts an activity for the given product. Defaults:
// active now, required count 3, 24h group TTL, no per-user cap, window
// spanning yesterday to a week out.
func (f *Fixtures) CreateActivity(ctx context.Context, productID primitive.ObjectID, spec ActivitySpec) models.Activity {
	f.t.Helper()

	now := time.Now().UTC()
	a := models.Activity{
		ID:             primitive.NewObjectID(),
		ProductID:      productID,
		Name:           "Test Activity",
		GroupPrice:     79.99,
		OriginalPrice:  129.99,
		RequiredCount:  3,
		TimeLimitHours: 24,
		MaxPerUser:     spec.MaxPerUser,
		StartTime:      now.Add(-24 * time.Hour),
		EndTime:        now.Add(7 * 24 * time.Hour),
		Status:         models.ActivityActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if spec.Status != "" {
		a.Status = spec.Status
	}
	if spec.RequiredCount != 0 {
		a.RequiredCount = spec.RequiredCount
	}
	if spec.TimeLimitHours != 0 {
		a.TimeLimitHours = spec.TimeLimitHours
	}
	if !spec.StartTime.IsZero() {
		a.StartTime = spec.StartTime
	}
	if !spec.EndTime.IsZero() {
		a.EndTime = spec.EndTime
	}

	if _, err := f.db.Collection("activities").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("insert activity fixture: %v", err)
	}
	return a
}

// CreateGroup inserts an in-progress group for the activity with the
// given member count and expiry.
func (f *Fixtures) CreateGroup(ctx context.Context, activityID, initiatorID primitive.ObjectID, count int, expire time.Time) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:           primitive.NewObjectID(),
		ActivityID:   activityID,
		InitiatorID:  initiatorID,
		CurrentCount: count,
		ExpireTime:   expire,
		Status:       models.GroupInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("insert group fixture: %v", err)
	}
	return g
}

// CreateParticipation inserts a participation tying user to group.
func (f *Fixtures) CreateParticipation(ctx context.Context, g models.Group, userID primitive.ObjectID) models.Participation {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Participation{
		ID:         primitive.NewObjectID(),
		GroupID:    g.ID,
		ActivityID: g.ActivityID,
		UserID:     userID,
		Status:     models.GroupInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("participations").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("insert participation fixture: %v", err)
	}
	return p
}
