// internal/app/features/groups/actions.go
package groups

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/groupdeal/internal/app/features/shared"
	"github.com/dalemusser/groupdeal/internal/app/system/auth"
	"github.com/dalemusser/groupdeal/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type initiateRequest struct {
	ActivityID string `json:"activity_id"`
}

// HandleInitiate handles POST /groups/initiate: the signed-in user
// opens a new group for an activity.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.BadRequest(w, "invalid JSON body")
		return
	}
	activityID, err := primitive.ObjectIDFromHex(req.ActivityID)
	if err != nil {
		shared.BadRequest(w, "activity_id is not a valid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	detail, err := h.Engine.Initiate(ctx, userID, activityID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, detail)
}

// HandleJoin handles POST /groups/{id}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	groupID, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	g, err := h.Engine.Join(ctx, userID, groupID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, g)
}

// ServeDetail handles GET /groups/{id}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	detail, err := h.Engine.GetGroupDetail(ctx, groupID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, detail)
}

func currentUserID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return primitive.NilObjectID, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		shared.BadRequest(w, "id is not a valid id")
		return primitive.NilObjectID, false
	}
	return id, true
}
