// internal/app/engine/detail.go
package engine

import (
	"context"
	"time"

	"github.com/dalemusser/groupdeal/internal/app/system/bizerr"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Participant is one member of a group as rendered in detail views.
type Participant struct {
	UserID      primitive.ObjectID `json:"user_id"`
	Nickname    string             `json:"nickname"`
	Avatar      string             `json:"avatar,omitempty"`
	JoinedAt    time.Time          `json:"joined_at"`
	IsInitiator bool               `json:"is_initiator"`
}

// Detail is a group enriched with its activity, product, and ordered
// participant list.
type Detail struct {
	Group        models.Group    `json:"group"`
	Activity     models.Activity `json:"activity"`
	Product      models.Product  `json:"product"`
	Participants []Participant   `json:"participants"`
}

// GetGroupDetail assembles the read-only detail view. Participants are
// ordered joined-at ascending, so the initiator comes first.
func (e *Engine) GetGroupDetail(ctx context.Context, groupID primitive.ObjectID) (Detail, error) {
	g, err := e.groups.GetByID(ctx, groupID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return Detail{}, bizerr.New(bizerr.KindNotFound, "group not found")
		}
		return Detail{}, err
	}

	a, err := e.activity(ctx, g.ActivityID)
	if err != nil {
		return Detail{}, err
	}

	product, err := e.products.GetByID(ctx, a.ProductID)
	if err != nil && err != mongo.ErrNoDocuments {
		return Detail{}, err
	}

	parts, err := e.participations.FindByGroup(ctx, groupID)
	if err != nil {
		return Detail{}, err
	}

	ids := make([]primitive.ObjectID, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.UserID)
	}
	users, err := e.users.GetByIDs(ctx, ids)
	if err != nil {
		return Detail{}, err
	}

	participants := make([]Participant, 0, len(parts))
	for _, p := range parts {
		u := users[p.UserID]
		participants = append(participants, Participant{
			UserID:      p.UserID,
			Nickname:    u.Nickname,
			Avatar:      u.Avatar,
			JoinedAt:    p.CreatedAt,
			IsInitiator: p.UserID == g.InitiatorID,
		})
	}

	return Detail{
		Group:        g,
		Activity:     a,
		Product:      product,
		Participants: participants,
	}, nil
}
