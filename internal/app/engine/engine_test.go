package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dalemusser/groupdeal/internal/app/engine"
	"github.com/dalemusser/groupdeal/internal/app/system/bizerr"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"github.com/dalemusser/groupdeal/internal/testutil/memstore"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// harness bundles an engine with its in-memory stores and a mock clock
// pinned to a fixed instant.
type harness struct {
	engine         *engine.Engine
	activities     *memstore.Activities
	groups         *memstore.Groups
	participations *memstore.Participations
	users          *memstore.Users
	products       *memstore.Products
	clk            *clock.Mock
	now            time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		activities:     memstore.NewActivities(),
		groups:         memstore.NewGroups(),
		participations: memstore.NewParticipations(),
		users:          memstore.NewUsers(),
		products:       memstore.NewProducts(),
		clk:            clock.NewMock(),
	}
	h.now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	h.clk.Set(h.now)
	h.engine = engine.New(h.activities, h.groups, h.participations, h.users, h.products, h.clk, zap.NewNop())
	return h
}

// seedActivity creates a product plus an active activity over it.
func (h *harness) seedActivity(requiredCount, maxPerUser int) models.Activity {
	p := h.products.Seed(models.Product{Name: "Widget", Price: 129.99, Stock: 100})
	return h.activities.Seed(models.Activity{
		ProductID:      p.ID,
		Name:           "Widget Deal",
		GroupPrice:     79.99,
		OriginalPrice:  129.99,
		RequiredCount:  requiredCount,
		TimeLimitHours: 24,
		MaxPerUser:     maxPerUser,
		StartTime:      h.now.Add(-time.Hour),
		EndTime:        h.now.Add(72 * time.Hour),
		Status:         models.ActivityActive,
	})
}

func (h *harness) seedUser(nickname string) models.User {
	return h.users.Seed(models.User{LoginID: nickname, Nickname: nickname, Role: "buyer", Status: "active"})
}

func TestInitiate(t *testing.T) {
	h := newHarness(t)
	a := h.seedActivity(3, 0)
	u := h.seedUser("alice")
	ctx := context.Background()

	d, err := h.engine.Initiate(ctx, u.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	if d.Group.Status != models.GroupInProgress {
		t.Errorf("status = %s, want in_progress", d.Group.Status)
	}
	if d.Group.CurrentCount != 1 {
		t.Errorf("current_count = %d, want 1", d.Group.CurrentCount)
	}
	if d.Group.InitiatorID != u.ID {
		t.Error("initiator mismatch")
	}
	wantExpire := h.now.Add(24 * time.Hour)
	if !d.Group.ExpireTime.Equal(wantExpire) {
		t.Errorf("expire_time = %v, want %v", d.Group.ExpireTime, wantExpire)
	}
	if len(d.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(d.Participants))
	}
	if !d.Participants[0].IsInitiator || d.Participants[0].Nickname != "alice" {
		t.Errorf("unexpected first participant: %+v", d.Participants[0])
	}
}

func TestInitiate_DeadlineCappedByActivityEnd(t *testing.T) {
	h := newHarness(t)
	p := h.products.Seed(models.Product{Name: "Widget", Price: 50})
	end := h.now.Add(6 * time.Hour)
	a := h.activities.Seed(models.Activity{
		ProductID:      p.ID,
		Name:           "Short Window",
		GroupPrice:     19.99,
		OriginalPrice:  29.99,
		RequiredCount:  2,
		TimeLimitHours: 24,
		StartTime:      h.now.Add(-time.Hour),
		EndTime:        end,
		Status:         models.ActivityActive,
	})
	u := h.seedUser("alice")

	d, err := h.engine.Initiate(context.Background(), u.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if !d.Group.ExpireTime.Equal(end) {
		t.Errorf("expire_time = %v, want activity end %v", d.Group.ExpireTime, end)
	}
}

func TestInitiate_ActivityWindow(t *testing.T) {
	h := newHarness(t)
	p := h.products.Seed(models.Product{Name: "Widget", Price: 50})
	u := h.seedUser("alice")
	ctx := context.Background()

	notStarted := h.activities.Seed(models.Activity{
		ProductID: p.ID, Name: "Future", GroupPrice: 10, OriginalPrice: 20,
		RequiredCount: 2, TimeLimitHours: 24,
		StartTime: h.now.Add(time.Hour), EndTime: h.now.Add(48 * time.Hour),
		Status: models.ActivityNotStarted,
	})
	if _, err := h.engine.Initiate(ctx, u.ID, notStarted.ID); !bizerr.IsKind(err, bizerr.KindActivityExpired) {
		t.Errorf("not-started activity: err = %v, want ActivityExpired", err)
	}

	ended := h.activities.Seed(models.Activity{
		ProductID: p.ID, Name: "Past", GroupPrice: 10, OriginalPrice: 20,
		RequiredCount: 2, TimeLimitHours: 24,
		StartTime: h.now.Add(-48 * time.Hour), EndTime: h.now.Add(-time.Hour),
		Status: models.ActivityEnded,
	})
	if _, err := h.engine.Initiate(ctx, u.ID, ended.ID); !bizerr.IsKind(err, bizerr.KindActivityExpired) {
		t.Errorf("ended activity: err = %v, want ActivityExpired", err)
	}

	if _, err := h.engine.Initiate(ctx, u.ID, primitive.NewObjectID()); !bizerr.IsKind(err, bizerr.KindNotFound) {
		t.Errorf("missing activity: err = %v, want NotFound", err)
	}
}

func TestJoin_CompletesGroupAtRequiredCount(t *testing.T) {
	h := newHarness(t)
	a := h.seedActivity(3, 0)
	ctx := context.Background()

	alice := h.seedUser("alice")
	d, err := h.engine.Initiate(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	groupID := d.Group.ID

	bob := h.seedUser("bob")
	g, err := h.engine.Join(ctx, bob.ID, groupID)
	if err != nil {
		t.Fatalf("second join failed: %v", err)
	}
	if g.CurrentCount != 2 || g.Status != models.GroupInProgress {
		t.Errorf("after second join: count=%d status=%s", g.CurrentCount, g.Status)
	}

	carol := h.seedUser("carol")
	g, err = h.engine.Join(ctx, carol.ID, groupID)
	if err != nil {
		t.Fatalf("final join failed: %v", err)
	}
	if g.CurrentCount != 3 {
		t.Errorf("final count = %d, want 3", g.CurrentCount)
	}
	if g.Status != models.GroupSuccess {
		t.Errorf("final status = %s, want success", g.Status)
	}

	// Success propagates to every participation.
	parts, err := h.participations.FindByGroup(ctx, groupID)
	if err != nil {
		t.Fatalf("FindByGroup failed: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("participations = %d, want 3", len(parts))
	}
	for _, p := range parts {
		if p.Status != models.GroupSuccess {
			t.Errorf("participation %s status = %s, want success", p.ID.Hex(), p.Status)
		}
	}
}

func TestJoin_Rejections(t *testing.T) {
	h := newHarness(t)
	a := h.seedActivity(2, 0)
	ctx := context.Background()

	alice := h.seedUser("alice")
	d, err := h.engine.Initiate(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	groupID := d.Group.ID

	// Joining twice is rejected before any write.
	if _, err := h.engine.Join(ctx, alice.ID, groupID); !bizerr.IsKind(err, bizerr.KindAlreadyJoined) {
		t.Errorf("rejoin: err = %v, want AlreadyJoined", err)
	}

	// Unknown group.
	bob := h.seedUser("bob")
	if _, err := h.engine.Join(ctx, bob.ID, primitive.NewObjectID()); !bizerr.IsKind(err, bizerr.KindNotFound) {
		t.Errorf("missing group: err = %v, want NotFound", err)
	}

	// Fill the group. A late joiner on the completed group sees it
	// full; expired is reserved for failed or past-deadline groups.
	if _, err := h.engine.Join(ctx, bob.ID, groupID); err != nil {
		t.Fatalf("fill join failed: %v", err)
	}
	carol := h.seedUser("carol")
	if _, err := h.engine.Join(ctx, carol.ID, groupID); !bizerr.IsKind(err, bizerr.KindGroupFull) {
		t.Errorf("join after success: err = %v, want GroupFull", err)
	}
}

// A group that already reached its required count rejects late joiners
// with full, not expired, however late they arrive.
func TestJoin_CompletedGroupReportsFull(t *testing.T) {
	h := newHarness(t)
	a := h.seedActivity(2, 0)
	ctx := context.Background()

	alice := h.seedUser("alice")
	d, err := h.engine.Initiate(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	bob := h.seedUser("bob")
	g, err := h.engine.Join(ctx, bob.ID, d.Group.ID)
	if err != nil {
		t.Fatalf("completing join failed: %v", err)
	}
	if g.Status != models.GroupSuccess {
		t.Fatalf("group status = %s, want success", g.Status)
	}

	dave := h.seedUser("dave")
	if _, err := h.engine.Join(ctx, dave.ID, d.Group.ID); !bizerr.IsKind(err, bizerr.KindGroupFull) {
		t.Errorf("late join: err = %v, want GroupFull", err)
	}

	// Even after the deadline passes, the completed group still reads
	// as full.
	h.clk.Set(h.now.Add(25 * time.Hour))
	erin := h.seedUser("erin")
	if _, err := h.engine.Join(ctx, erin.ID, d.Group.ID); !bizerr.IsKind(err, bizerr.KindGroupFull) {
		t.Errorf("late join past deadline: err = %v, want GroupFull", err)
	}
}

// A failed group reports expired to joiners.
func TestJoin_FailedGroupReportsExpired(t *testing.T) {
	h := newHarness(t)
	a := h.seedActivity(3, 0)
	ctx := context.Background()

	alice := h.seedUser("alice")
	d, err := h.engine.Initiate(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if ok, _ := h.groups.MarkFailed(ctx, d.Group.ID); !ok {
		t.Fatal("MarkFailed did not land")
	}

	bob := h.seedUser("bob")
	if _, err := h.engine.Join(ctx, bob.ID, d.Group.ID); !bizerr.IsKind(err, bizerr.KindGroupExpired) {
		t.Errorf("join failed group: err = %v, want GroupExpired", err)
	}
}

func TestJoin_ExpiredGroupRejectedBeforeSweep(t *testing.T) {
	h := newHarness(t)
	a := h.seedActivity(3, 0)
	ctx := context.Background()

	alice := h.seedUser("alice")
	d, err := h.engine.Initiate(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	// Move past the group deadline without running the sweeper. The
	// stored status is still in_progress, but joiners must see failure.
	h.clk.Set(h.now.Add(25 * time.Hour))

	bob := h.seedUser("bob")
	if _, err := h.engine.Join(ctx, bob.ID, d.Group.ID); !bizerr.IsKind(err, bizerr.KindGroupExpired) {
		t.Errorf("join expired group: err = %v, want GroupExpired", err)
	}
}

func TestJoin_ParticipationCap(t *testing.T) {
	h := newHarness(t)
	a := h.seedActivity(5, 1)
	ctx := context.Background()

	alice := h.seedUser("alice")
	bob := h.seedUser("bob")

	d, err := h.engine.Initiate(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if _, err := h.engine.Join(ctx, bob.ID, d.Group.ID); err != nil {
		t.Fatalf("first join failed: %v", err)
	}

	// With max_per_user=1, bob cannot enter a second group of the same
	// activity, not even as initiator.
	carol := h.seedUser("carol")
	d2, err := h.engine.Initiate(ctx, carol.ID, a.ID)
	if err != nil {
		t.Fatalf("second Initiate failed: %v", err)
	}
	if _, err := h.engine.Join(ctx, bob.ID, d2.Group.ID); !bizerr.IsKind(err, bizerr.KindParticipationLimit) {
		t.Errorf("capped join: err = %v, want ParticipationLimit", err)
	}
	if _, err := h.engine.Initiate(ctx, bob.ID, a.ID); !bizerr.IsKind(err, bizerr.KindParticipationLimit) {
		t.Errorf("capped initiate: err = %v, want ParticipationLimit", err)
	}
}

// TestJoin_ConcurrentNeverOverfills races many joiners at one group and
// checks exactly required-1 of them win.
func TestJoin_ConcurrentNeverOverfills(t *testing.T) {
	h := newHarness(t)
	const required = 5
	a := h.seedActivity(required, 0)
	ctx := context.Background()

	alice := h.seedUser("alice")
	d, err := h.engine.Initiate(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	groupID := d.Group.ID

	const joiners = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < joiners; i++ {
		u := h.seedUser(primitive.NewObjectID().Hex())
		wg.Add(1)
		go func(userID primitive.ObjectID) {
			defer wg.Done()
			_, err := h.engine.Join(ctx, userID, groupID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case bizerr.IsKind(err, bizerr.KindGroupFull):
				rejected++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	if succeeded != required-1 {
		t.Errorf("successful joins = %d, want %d", succeeded, required-1)
	}
	if rejected != joiners-(required-1) {
		t.Errorf("rejected joins = %d, want %d", rejected, joiners-(required-1))
	}

	g, err := h.groups.GetByID(ctx, groupID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if g.CurrentCount != required {
		t.Errorf("final count = %d, want %d", g.CurrentCount, required)
	}
	if g.Status != models.GroupSuccess {
		t.Errorf("final status = %s, want success", g.Status)
	}

	parts, err := h.participations.FindByGroup(ctx, groupID)
	if err != nil {
		t.Fatalf("FindByGroup failed: %v", err)
	}
	if len(parts) != required {
		t.Errorf("participations = %d, want %d; compensation left an orphan", len(parts), required)
	}
}

// brittlePropagation fails UpdateStatusByGroup on demand so the
// completion path's recovery can be observed.
type brittlePropagation struct {
	*memstore.Participations
	failPropagation bool
}

func (b *brittlePropagation) UpdateStatusByGroup(ctx context.Context, groupID primitive.ObjectID, status models.GroupStatus) (int64, error) {
	if b.failPropagation {
		return 0, errors.New("write timeout")
	}
	return b.Participations.UpdateStatusByGroup(ctx, groupID, status)
}

// An interrupted success propagation must not fail the join, and must
// leave the group visible to the reconcile scan instead of stranding
// its participations forever.
func TestJoin_InterruptedPropagationLeavesGroupUnsettled(t *testing.T) {
	h := newHarness(t)
	brittle := &brittlePropagation{Participations: h.participations}
	h.engine = engine.New(h.activities, h.groups, brittle, h.users, h.products, h.clk, zap.NewNop())

	a := h.seedActivity(2, 0)
	ctx := context.Background()

	alice := h.seedUser("alice")
	d, err := h.engine.Initiate(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	brittle.failPropagation = true
	bob := h.seedUser("bob")
	g, err := h.engine.Join(ctx, bob.ID, d.Group.ID)
	if err != nil {
		t.Fatalf("completing join should survive a propagation failure: %v", err)
	}
	if g.Status != models.GroupSuccess {
		t.Errorf("group status = %s, want success", g.Status)
	}

	// Participations are stranded for now.
	parts, _ := h.participations.FindByGroup(ctx, d.Group.ID)
	for _, p := range parts {
		if p.Status != models.GroupInProgress {
			t.Errorf("participation %s status = %s, want in_progress", p.ID.Hex(), p.Status)
		}
	}

	// The group stays scannable so a later sweep can finish the job.
	unsettled, err := h.groups.FindUnsettledTerminal(ctx, 0)
	if err != nil {
		t.Fatalf("FindUnsettledTerminal failed: %v", err)
	}
	if len(unsettled) != 1 || unsettled[0].ID != d.Group.ID {
		t.Fatalf("unsettled groups = %+v, want exactly the completed group", unsettled)
	}
}

func TestGetGroupDetail(t *testing.T) {
	h := newHarness(t)
	a := h.seedActivity(3, 0)
	ctx := context.Background()

	alice := h.seedUser("alice")
	bob := h.seedUser("bob")

	d, err := h.engine.Initiate(ctx, alice.ID, a.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if _, err := h.engine.Join(ctx, bob.ID, d.Group.ID); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	got, err := h.engine.GetGroupDetail(ctx, d.Group.ID)
	if err != nil {
		t.Fatalf("GetGroupDetail failed: %v", err)
	}
	if got.Activity.ID != a.ID {
		t.Error("activity mismatch")
	}
	if got.Product.Name != "Widget" {
		t.Errorf("product name = %q, want Widget", got.Product.Name)
	}
	if len(got.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(got.Participants))
	}
	if !got.Participants[0].IsInitiator {
		t.Error("initiator should be listed first")
	}
	if got.Participants[1].Nickname != "bob" {
		t.Errorf("second participant = %q, want bob", got.Participants[1].Nickname)
	}

	if _, err := h.engine.GetGroupDetail(ctx, primitive.NewObjectID()); !bizerr.IsKind(err, bizerr.KindNotFound) {
		t.Errorf("missing group: err = %v, want NotFound", err)
	}
}
