// internal/domain/models/participation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Participation is the authoritative join between users and groups.
// Exactly one document per (group_id, user_id), enforced by a unique
// index. Status mirrors the owning group's status as of the last
// transition propagated to it.
//
// ActivityID is denormalized from the group so the per-user
// participation cap can be counted without a join.
type Participation struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID    primitive.ObjectID `bson:"group_id" json:"group_id"`
	ActivityID primitive.ObjectID `bson:"activity_id" json:"activity_id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`

	Status GroupStatus `bson:"status" json:"status"`

	// OrderID links the downstream commerce order once one is created.
	// A participation with no order was never charged, so its refund
	// signal is a no-op.
	OrderID *primitive.ObjectID `bson:"order_id,omitempty" json:"order_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
