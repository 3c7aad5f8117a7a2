// Package memstore provides mutex-guarded in-memory implementations of
// the store surfaces the services consume. They honor the same
// contracts as the mongo stores, including the unique
// (group_id, user_id) rule and the conditional status transitions, so
// service tests run deterministically with no database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	activitystore "github.com/dalemusser/groupdeal/internal/app/store/activities"
	groupstore "github.com/dalemusser/groupdeal/internal/app/store/groups"
	participationstore "github.com/dalemusser/groupdeal/internal/app/store/participations"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Activities is an in-memory activity store.
type Activities struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Activity
}

func NewActivities() *Activities {
	return &Activities{byID: make(map[primitive.ObjectID]models.Activity)}
}

// Seed inserts an activity as-is, assigning an ID if absent.
func (s *Activities) Seed(a models.Activity) models.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	s.byID[a.ID] = a
	return a
}

func (s *Activities) GetByID(ctx context.Context, id primitive.ObjectID) (models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return models.Activity{}, mongo.ErrNoDocuments
	}
	return a, nil
}

func (s *Activities) Create(ctx context.Context, a models.Activity) (models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	if a.Status == "" {
		a.Status = models.ActivityNotStarted
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	s.byID[a.ID] = a
	return a, nil
}

func (s *Activities) Update(ctx context.Context, id primitive.ObjectID, upd activitystore.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
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
	a.UpdatedAt = time.Now().UTC()
	s.byID[id] = a
	return nil
}

func (s *Activities) SetStatus(ctx context.Context, id primitive.ObjectID, to models.ActivityStatus, from ...models.ActivityStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	if len(from) > 0 {
		eligible := false
		for _, f := range from {
			if a.Status == f {
				eligible = true
				break
			}
		}
		if !eligible {
			return false, nil
		}
	}
	if a.Status == to {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	s.byID[id] = a
	return true, nil
}

func (s *Activities) List(ctx context.Context, f activitystore.Filter, page, pageSize int) ([]models.Activity, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Activity
	for _, a := range s.byID {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if !f.ProductID.IsZero() && a.ProductID != f.ProductID {
			continue
		}
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *Activities) AdvanceWindows(ctx context.Context, now time.Time) (started, ended int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.byID {
		switch {
		case a.Status != models.ActivityEnded && !now.Before(a.EndTime):
			a.Status = models.ActivityEnded
			ended++
		case a.Status == models.ActivityNotStarted && !now.Before(a.StartTime):
			a.Status = models.ActivityActive
			started++
		default:
			continue
		}
		a.UpdatedAt = now
		s.byID[id] = a
	}
	return started, ended, nil
}

// Groups is an in-memory group store.
type Groups struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Group
}

func NewGroups() *Groups {
	return &Groups{byID: make(map[primitive.ObjectID]models.Group)}
}

func (s *Groups) Seed(g models.Group) models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	s.byID[g.ID] = g
	return g
}

func (s *Groups) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.byID[id]
	if !ok {
		return models.Group{}, mongo.ErrNoDocuments
	}
	return g, nil
}

func (s *Groups) Create(ctx context.Context, g models.Group) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	if g.Status == "" {
		g.Status = models.GroupInProgress
	}
	if g.CurrentCount == 0 {
		g.CurrentCount = 1
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	s.byID[g.ID] = g
	return g, nil
}

func (s *Groups) IncrementIfJoinable(ctx context.Context, id primitive.ObjectID, requiredCount int, now time.Time) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.byID[id]
	if !ok {
		return models.Group{}, groupstore.ErrNotJoinable
	}
	if g.Status != models.GroupInProgress || g.CurrentCount >= requiredCount || !now.Before(g.ExpireTime) {
		return models.Group{}, groupstore.ErrNotJoinable
	}
	g.CurrentCount++
	g.UpdatedAt = now
	s.byID[id] = g
	return g, nil
}

func (s *Groups) MarkSuccess(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return s.markTerminal(id, models.GroupSuccess)
}

func (s *Groups) MarkFailed(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return s.markTerminal(id, models.GroupFailed)
}

func (s *Groups) markTerminal(id primitive.ObjectID, to models.GroupStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.byID[id]
	if !ok || g.Status != models.GroupInProgress {
		return false, nil
	}
	g.Status = to
	g.UpdatedAt = time.Now().UTC()
	s.byID[id] = g
	return true, nil
}

func (s *Groups) MarkSettled(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.byID[id]
	if !ok {
		return nil
	}
	g.Settled = true
	g.UpdatedAt = time.Now().UTC()
	s.byID[id] = g
	return nil
}

func (s *Groups) FindUnsettledTerminal(ctx context.Context, limit int64) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Group
	for _, g := range s.byID {
		if g.Status.Terminal() && !g.Settled {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Groups) FindExpiredInProgress(ctx context.Context, now time.Time, limit int64) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Group
	for _, g := range s.byID {
		if g.Status == models.GroupInProgress && !now.Before(g.ExpireTime) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpireTime.Before(out[j].ExpireTime)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Groups) ListByActivity(ctx context.Context, activityID primitive.ObjectID) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Group
	for _, g := range s.byID {
		if g.ActivityID == activityID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Participations is an in-memory participation store. It enforces the
// unique (group_id, user_id) rule the way the mongo index does.
type Participations struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Participation
}

func NewParticipations() *Participations {
	return &Participations{byID: make(map[primitive.ObjectID]models.Participation)}
}

func (s *Participations) Seed(p models.Participation) models.Participation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.byID[p.ID] = p
	return p
}

func (s *Participations) Create(ctx context.Context, p models.Participation) (models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.byID {
		if ex.GroupID == p.GroupID && ex.UserID == p.UserID {
			return models.Participation{}, participationstore.ErrDuplicateParticipation
		}
	}
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	if p.Status == "" {
		p.Status = models.GroupInProgress
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	s.byID[p.ID] = p
	return p, nil
}

func (s *Participations) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func (s *Participations) Exists(ctx context.Context, userID, groupID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.UserID == userID && p.GroupID == groupID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Participations) CountByUserAndActivity(ctx context.Context, userID, activityID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.byID {
		if p.UserID == userID && p.ActivityID == activityID {
			n++
		}
	}
	return n, nil
}

func (s *Participations) UpdateStatusByGroup(ctx context.Context, groupID primitive.ObjectID, status models.GroupStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for id, p := range s.byID {
		if p.GroupID == groupID && p.Status != status {
			p.Status = status
			p.UpdatedAt = now
			s.byID[id] = p
			n++
		}
	}
	return n, nil
}

func (s *Participations) FindByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participation
	for _, p := range s.byID {
		if p.GroupID == groupID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Users is an in-memory user store.
type Users struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.User
}

func NewUsers() *Users {
	return &Users{byID: make(map[primitive.ObjectID]models.User)}
}

func (s *Users) Seed(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.byID[u.ID] = u
	return u
}

func (s *Users) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[primitive.ObjectID]models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// Products is an in-memory product store.
type Products struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Product
}

func NewProducts() *Products {
	return &Products{byID: make(map[primitive.ObjectID]models.Product)}
}

func (s *Products) Seed(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.byID[p.ID] = p
	return p
}

func (s *Products) GetByID(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return models.Product{}, mongo.ErrNoDocuments
	}
	return p, nil
}
