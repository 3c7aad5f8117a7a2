// internal/app/registry/registry.go

// Package registry owns activity definitions and their coarse
// lifecycle. The group engine reads activities through it but never
// writes them.
package registry

import (
	"context"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	activitystore "github.com/dalemusser/groupdeal/internal/app/store/activities"
	"github.com/dalemusser/groupdeal/internal/app/system/bizerr"
	"github.com/dalemusser/groupdeal/internal/app/system/htmlsanitize"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ActivityStore is the persistence surface the registry needs.
// *activitystore.Store satisfies it; tests substitute an in-memory fake.
type ActivityStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Activity, error)
	Create(ctx context.Context, a models.Activity) (models.Activity, error)
	Update(ctx context.Context, id primitive.ObjectID, upd activitystore.Update) error
	SetStatus(ctx context.Context, id primitive.ObjectID, to models.ActivityStatus, from ...models.ActivityStatus) (bool, error)
	List(ctx context.Context, f activitystore.Filter, page, pageSize int) ([]models.Activity, int64, error)
}

// ProductStore validates that a new activity's product exists.
type ProductStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Product, error)
}

type Registry struct {
	activities ActivityStore
	products   ProductStore
	clk        clock.Clock
	log        *zap.Logger
}

func New(activities ActivityStore, products ProductStore, clk clock.Clock, logger *zap.Logger) *Registry {
	return &Registry{
		activities: activities,
		products:   products,
		clk:        clk,
		log:        logger,
	}
}

// CreateInput is the admin-supplied definition of a new activity.
type CreateInput struct {
	ProductID      primitive.ObjectID
	Name           string
	Description    string
	GroupPrice     float64
	OriginalPrice  float64
	RequiredCount  int
	TimeLimitHours int
	MaxPerUser     int
	StartTime      time.Time
	EndTime        time.Time
}

func (r *Registry) Create(ctx context.Context, in CreateInput) (models.Activity, error) {
	in.Name = htmlsanitize.Strict(strings.TrimSpace(in.Name))
	in.Description = htmlsanitize.Sanitize(strings.TrimSpace(in.Description))

	a := models.Activity{
		ProductID:      in.ProductID,
		Name:           in.Name,
		Description:    in.Description,
		GroupPrice:     in.GroupPrice,
		OriginalPrice:  in.OriginalPrice,
		RequiredCount:  in.RequiredCount,
		TimeLimitHours: in.TimeLimitHours,
		MaxPerUser:     in.MaxPerUser,
		StartTime:      in.StartTime.UTC(),
		EndTime:        in.EndTime.UTC(),
		Status:         models.ActivityNotStarted,
	}
	if err := validate(a); err != nil {
		return models.Activity{}, err
	}

	if _, err := r.products.GetByID(ctx, in.ProductID); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Activity{}, bizerr.New(bizerr.KindNotFound, "product not found")
		}
		return models.Activity{}, err
	}

	created, err := r.activities.Create(ctx, a)
	if err != nil {
		return models.Activity{}, err
	}
	r.log.Info("activity created",
		zap.String("activity_id", created.ID.Hex()),
		zap.String("name", created.Name),
		zap.Int("required_count", created.RequiredCount))
	return created, nil
}

// UpdateInput is a partial edit; nil fields keep their current value.
type UpdateInput struct {
	Name           *string
	Description    *string
	GroupPrice     *float64
	OriginalPrice  *float64
	RequiredCount  *int
	TimeLimitHours *int
	MaxPerUser     *int
	StartTime      *time.Time
	EndTime        *time.Time
}

// Update merges the edit onto the stored activity and re-validates the
// resulting combination, so changing only GroupPrice is still checked
// against the current OriginalPrice.
func (r *Registry) Update(ctx context.Context, id primitive.ObjectID, in UpdateInput) (models.Activity, error) {
	current, err := r.getOrNotFound(ctx, id)
	if err != nil {
		return models.Activity{}, err
	}

	upd := activitystore.Update{
		GroupPrice:     in.GroupPrice,
		OriginalPrice:  in.OriginalPrice,
		RequiredCount:  in.RequiredCount,
		TimeLimitHours: in.TimeLimitHours,
		MaxPerUser:     in.MaxPerUser,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
	}
	if in.Name != nil {
		name := htmlsanitize.Strict(strings.TrimSpace(*in.Name))
		upd.Name = &name
	}
	if in.Description != nil {
		desc := htmlsanitize.Sanitize(strings.TrimSpace(*in.Description))
		upd.Description = &desc
	}

	merged := applyUpdate(current, upd)
	if err := validate(merged); err != nil {
		return models.Activity{}, err
	}

	if err := r.activities.Update(ctx, id, upd); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Activity{}, bizerr.New(bizerr.KindNotFound, "activity not found")
		}
		return models.Activity{}, err
	}
	return r.GetByID(ctx, id)
}

// GetByID loads an activity and lazily advances its status past window
// boundaries: reads past start_time see it active, reads past end_time
// see it ended. The advancement is persisted with a conditional update
// so racing readers settle on one transition.
func (r *Registry) GetByID(ctx context.Context, id primitive.ObjectID) (models.Activity, error) {
	a, err := r.getOrNotFound(ctx, id)
	if err != nil {
		return models.Activity{}, err
	}

	now := r.clk.Now()
	switch {
	case a.Status != models.ActivityEnded && !now.Before(a.EndTime):
		if _, err := r.activities.SetStatus(ctx, id, models.ActivityEnded,
			models.ActivityNotStarted, models.ActivityActive); err != nil {
			return models.Activity{}, err
		}
		a.Status = models.ActivityEnded
	case a.Status == models.ActivityNotStarted && !now.Before(a.StartTime):
		if _, err := r.activities.SetStatus(ctx, id, models.ActivityActive,
			models.ActivityNotStarted); err != nil {
			return models.Activity{}, err
		}
		a.Status = models.ActivityActive
	}
	return a, nil
}

// List returns activities matching the filter, newest first.
func (r *Registry) List(ctx context.Context, f activitystore.Filter, page, pageSize int) ([]models.Activity, int64, error) {
	return r.activities.List(ctx, f, page, pageSize)
}

// Start manually activates an activity. An ended activity, or one whose
// end time has already passed, cannot be resurrected without first
// moving the end time.
func (r *Registry) Start(ctx context.Context, id primitive.ObjectID) (models.Activity, error) {
	a, err := r.getOrNotFound(ctx, id)
	if err != nil {
		return models.Activity{}, err
	}
	if a.Status == models.ActivityEnded {
		return models.Activity{}, bizerr.New(bizerr.KindInvalidTransition, "activity has already ended")
	}
	if !r.clk.Now().Before(a.EndTime) {
		return models.Activity{}, bizerr.New(bizerr.KindInvalidTransition, "activity end time has passed; move the end time before restarting")
	}
	if _, err := r.activities.SetStatus(ctx, id, models.ActivityActive,
		models.ActivityNotStarted, models.ActivityActive); err != nil {
		return models.Activity{}, err
	}
	a.Status = models.ActivityActive
	r.log.Info("activity started", zap.String("activity_id", id.Hex()))
	return a, nil
}

// End manually ends an activity. Always permitted; open groups are left
// for the sweeper or natural completion to resolve.
func (r *Registry) End(ctx context.Context, id primitive.ObjectID) (models.Activity, error) {
	a, err := r.getOrNotFound(ctx, id)
	if err != nil {
		return models.Activity{}, err
	}
	if a.Status != models.ActivityEnded {
		if _, err := r.activities.SetStatus(ctx, id, models.ActivityEnded,
			models.ActivityNotStarted, models.ActivityActive); err != nil {
			return models.Activity{}, err
		}
		a.Status = models.ActivityEnded
		r.log.Info("activity ended", zap.String("activity_id", id.Hex()))
	}
	return a, nil
}

func (r *Registry) getOrNotFound(ctx context.Context, id primitive.ObjectID) (models.Activity, error) {
	a, err := r.activities.GetByID(ctx, id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Activity{}, bizerr.New(bizerr.KindNotFound, "activity not found")
		}
		return models.Activity{}, err
	}
	return a, nil
}

func validate(a models.Activity) error {
	if a.Name == "" {
		return bizerr.New(bizerr.KindValidation, "name is required")
	}
	if a.GroupPrice <= 0 {
		return bizerr.New(bizerr.KindValidation, "group price must be greater than zero")
	}
	if a.GroupPrice >= a.OriginalPrice {
		return bizerr.New(bizerr.KindValidation, "group price must be less than the original price")
	}
	if a.RequiredCount < 2 {
		return bizerr.New(bizerr.KindValidation, "required count must be at least 2")
	}
	if a.TimeLimitHours < 1 {
		return bizerr.New(bizerr.KindValidation, "time limit must be at least 1 hour")
	}
	if a.MaxPerUser < 0 {
		return bizerr.New(bizerr.KindValidation, "max per user cannot be negative")
	}
	if !a.EndTime.After(a.StartTime) {
		return bizerr.New(bizerr.KindValidation, "end time must be after start time")
	}
	return nil
}

func applyUpdate(a models.Activity, upd activitystore.Update) models.Activity {
	if upd.Name != nil {
		a.Name = *upd.Name
	}
	if upd.Description != nil {
		a.Description = *upd.Description
	}
	if upd.GroupPrice != nil {
		a.GroupPrice = *upd.GroupPrice
	}
	if upd.OriginalPrice != nil {
		a.OriginalPrice = *upd.OriginalPrice
	}
	if upd.RequiredCount != nil {
		a.RequiredCount = *upd.RequiredCount
	}
	if upd.TimeLimitHours != nil {
		a.TimeLimitHours = *upd.TimeLimitHours
	}
	if upd.MaxPerUser != nil {
		a.MaxPerUser = *upd.MaxPerUser
	}
	if upd.StartTime != nil {
		a.StartTime = upd.StartTime.UTC()
	}
	if upd.EndTime != nil {
		a.EndTime = upd.EndTime.UTC()
	}
	return a
}
