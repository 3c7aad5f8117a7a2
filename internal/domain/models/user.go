// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents buyers and administrators.
//
// NOTE:
//   - Group membership is not embedded on User; use the participations
//     collection to discover a user's groups.
//   - PasswordHash is a bcrypt hash and is never serialized to JSON.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LoginID      string             `bson:"login_id" json:"login_id"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	Nickname     string             `bson:"nickname" json:"nickname"`
	Avatar       string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Role         string             `bson:"role" json:"role"` // admin | buyer
	Status       string             `bson:"status,omitempty" json:"status,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
