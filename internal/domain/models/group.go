// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupStatus is the lifecycle of one group. Success and failed are
// terminal; a terminal group never changes status again.
type GroupStatus string

const (
	GroupInProgress GroupStatus = "in_progress"
	GroupSuccess    GroupStatus = "success"
	GroupFailed     GroupStatus = "failed"
)

// Valid reports whether s is one of the known group statuses.
func (s GroupStatus) Valid() bool {
	switch s {
	case GroupInProgress, GroupSuccess, GroupFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a final status.
func (s GroupStatus) Terminal() bool {
	return s == GroupSuccess || s == GroupFailed
}

// Group is one instance of buyers trying to meet an activity's
// headcount together. CurrentCount starts at 1 (the initiator) and only
// moves through the conditional increment in the group store, so
// 1 <= CurrentCount <= RequiredCount holds while the group is open.
//
// Groups are never deleted; terminal groups remain as the audit trail.
type Group struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActivityID  primitive.ObjectID `bson:"activity_id" json:"activity_id"`
	InitiatorID primitive.ObjectID `bson:"initiator_id" json:"initiator_id"`

	CurrentCount int         `bson:"current_count" json:"current_count"`
	ExpireTime   time.Time   `bson:"expire_time" json:"expire_time"`
	Status       GroupStatus `bson:"status" json:"status"`

	// Settled records that a terminal group's follow-up effects
	// (status propagation to participations, refund signals) have been
	// applied. Terminal-but-unsettled groups are re-scanned by the
	// sweeper so an interrupted settlement is retried.
	Settled bool `bson:"settled" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Expired reports whether the group's deadline has passed at now.
// An expired in-progress group must behave as failed to joiners even
// before the sweeper physically marks it.
func (g Group) Expired(now time.Time) bool {
	return !now.Before(g.ExpireTime)
}
