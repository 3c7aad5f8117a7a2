// internal/app/features/activities/crud.go
package activities

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/groupdeal/internal/app/features/shared"
	"github.com/dalemusser/groupdeal/internal/app/registry"
	activitystore "github.com/dalemusser/groupdeal/internal/app/store/activities"
	"github.com/dalemusser/groupdeal/internal/app/store/audit"
	"github.com/dalemusser/groupdeal/internal/app/system/paging"
	"github.com/dalemusser/groupdeal/internal/app/system/timeouts"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createRequest struct {
	ProductID      string    `json:"product_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	GroupPrice     float64   `json:"group_price"`
	OriginalPrice  float64   `json:"original_price"`
	RequiredCount  int       `json:"required_count"`
	TimeLimitHours int       `json:"time_limit_hours"`
	MaxPerUser     int       `json:"max_per_user"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
}

// HandleCreate handles POST /activities.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.BadRequest(w, "invalid JSON body")
		return
	}
	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		shared.BadRequest(w, "product_id is not a valid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, err := h.Registry.Create(ctx, registry.CreateInput{
		ProductID:      productID,
		Name:           req.Name,
		Description:    req.Description,
		GroupPrice:     req.GroupPrice,
		OriginalPrice:  req.OriginalPrice,
		RequiredCount:  req.RequiredCount,
		TimeLimitHours: req.TimeLimitHours,
		MaxPerUser:     req.MaxPerUser,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	})
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	h.Audit.ActivityChanged(ctx, r, audit.EventActivityCreated, a.ID, a.Name)
	shared.JSON(w, http.StatusCreated, a)
}

type updateRequest struct {
	Name           *string    `json:"name"`
	Description    *string    `json:"description"`
	GroupPrice     *float64   `json:"group_price"`
	OriginalPrice  *float64   `json:"original_price"`
	RequiredCount  *int       `json:"required_count"`
	TimeLimitHours *int       `json:"time_limit_hours"`
	MaxPerUser     *int       `json:"max_per_user"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
}

// HandleUpdate handles PATCH /activities/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.BadRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, err := h.Registry.Update(ctx, id, registry.UpdateInput{
		Name:           req.Name,
		Description:    req.Description,
		GroupPrice:     req.GroupPrice,
		OriginalPrice:  req.OriginalPrice,
		RequiredCount:  req.RequiredCount,
		TimeLimitHours: req.TimeLimitHours,
		MaxPerUser:     req.MaxPerUser,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	})
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	h.Audit.ActivityChanged(ctx, r, audit.EventActivityUpdated, a.ID, a.Name)
	shared.JSON(w, http.StatusOK, a)
}

// ServeGet handles GET /activities/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Registry.GetByID(ctx, id)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, a)
}

type listResponse struct {
	Activities []models.Activity `json:"activities"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}

// ServeList handles GET /activities with optional status and
// product_id filters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	var f activitystore.Filter
	if s := query.Get(r, "status"); s != "" {
		status := models.ActivityStatus(s)
		if !status.Valid() {
			shared.BadRequest(w, "unknown status filter")
			return
		}
		f.Status = status
	}
	if p := query.Get(r, "product_id"); p != "" {
		pid, err := primitive.ObjectIDFromHex(p)
		if err != nil {
			shared.BadRequest(w, "product_id is not a valid id")
			return
		}
		f.ProductID = pid
	}
	page := paging.ParsePage(r)
	pageSize := paging.ParsePageSize(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	activities, total, err := h.Registry.List(ctx, f, page, pageSize)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	shared.JSON(w, http.StatusOK, listResponse{
		Activities: activities,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// HandleStart handles POST /activities/{id}/start.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Registry.Start(ctx, id)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	h.Audit.ActivityChanged(ctx, r, audit.EventActivityStarted, a.ID, a.Name)
	shared.JSON(w, http.StatusOK, a)
}

// HandleEnd handles POST /activities/{id}/end.
func (h *Handler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Registry.End(ctx, id)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	h.Audit.ActivityChanged(ctx, r, audit.EventActivityEnded, a.ID, a.Name)
	shared.JSON(w, http.StatusOK, a)
}

// ServeStats handles GET /activities/{id}/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Stats.GetActivityStats(ctx, id)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, st)
}

func pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		shared.BadRequest(w, "id is not a valid id")
		return primitive.NilObjectID, false
	}
	return id, true
}
