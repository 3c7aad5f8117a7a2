// internal/domain/models/activity.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivityStatus is the coarse lifecycle of a group-buy activity.
type ActivityStatus string

const (
	ActivityNotStarted ActivityStatus = "not_started"
	ActivityActive     ActivityStatus = "active"
	ActivityEnded      ActivityStatus = "ended"
)

// Valid reports whether s is one of the known activity statuses.
func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityNotStarted, ActivityActive, ActivityEnded:
		return true
	}
	return false
}

// Activity is a merchant-defined group-buy offer: a product sold at a
// discounted group price that unlocks only when RequiredCount buyers
// fill a group inside the activity's time window.
//
// NOTE:
//   - Groups and participations are not embedded here; they live in the
//     groups and participations collections.
//   - An activity is never deleted while groups reference it.
type Activity struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID   primitive.ObjectID `bson:"product_id" json:"product_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`

	GroupPrice    float64 `bson:"group_price" json:"group_price"`       // discounted price per unit
	OriginalPrice float64 `bson:"original_price" json:"original_price"` // must exceed GroupPrice

	RequiredCount  int `bson:"required_count" json:"required_count"`     // headcount to succeed, >= 2
	TimeLimitHours int `bson:"time_limit_hours" json:"time_limit_hours"` // per-group TTL
	MaxPerUser     int `bson:"max_per_user,omitempty" json:"max_per_user,omitempty"` // 0 = unlimited

	StartTime time.Time      `bson:"start_time" json:"start_time"`
	EndTime   time.Time      `bson:"end_time" json:"end_time"`
	Status    ActivityStatus `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// GroupDeadline returns when a group opened at now must resolve: the
// group TTL capped by the activity's end time.
func (a Activity) GroupDeadline(now time.Time) time.Time {
	deadline := now.Add(time.Duration(a.TimeLimitHours) * time.Hour)
	if deadline.After(a.EndTime) {
		return a.EndTime
	}
	return deadline
}
