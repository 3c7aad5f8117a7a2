package activities_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dalemusser/groupdeal/internal/app/features/activities"
	"github.com/dalemusser/groupdeal/internal/app/registry"
	"github.com/dalemusser/groupdeal/internal/app/stats"
	"github.com/dalemusser/groupdeal/internal/app/system/auditlog"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"github.com/dalemusser/groupdeal/internal/testutil"
	"github.com/dalemusser/groupdeal/internal/testutil/memstore"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	handler    *activities.Handler
	activities *memstore.Activities
	groups     *memstore.Groups
	product    models.Product
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	acts := memstore.NewActivities()
	groups := memstore.NewGroups()
	products := memstore.NewProducts()

	clk := clock.NewMock()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	clk.Set(now)

	p := products.Seed(models.Product{Name: "Widget", Price: 129.99})

	reg := registry.New(acts, products, clk, zap.NewNop())
	agg := stats.New(acts, groups)
	return &fixture{
		handler:    activities.NewHandler(reg, agg, auditlog.New(nil, zap.NewNop(), auditlog.ModeLog), zap.NewNop()),
		activities: acts,
		groups:     groups,
		product:    p,
		now:        now,
	}
}

func (f *fixture) createBody() string {
	return fmt.Sprintf(`{
		"product_id": %q,
		"name": "Widget Deal",
		"group_price": 79.99,
		"original_price": 129.99,
		"required_count": 3,
		"time_limit_hours": 24,
		"start_time": %q,
		"end_time": %q
	}`, f.product.ID.Hex(),
		f.now.Add(time.Hour).Format(time.RFC3339),
		f.now.Add(72*time.Hour).Format(time.RFC3339))
}

func TestHandleCreate(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(http.MethodPost, "/activities", f.createBody())
	rec := httptest.NewRecorder()
	f.handler.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var a models.Activity
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Name != "Widget Deal" || a.Status != models.ActivityNotStarted {
		t.Errorf("activity = %+v", a)
	}
}

func TestHandleCreate_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	// Group price above original price.
	body := fmt.Sprintf(`{
		"product_id": %q,
		"name": "Bad Deal",
		"group_price": 200,
		"original_price": 129.99,
		"required_count": 3,
		"time_limit_hours": 24,
		"start_time": %q,
		"end_time": %q
	}`, f.product.ID.Hex(),
		f.now.Format(time.RFC3339), f.now.Add(time.Hour).Format(time.RFC3339))

	req := testutil.NewJSONRequest(http.MethodPost, "/activities", body)
	rec := httptest.NewRecorder()
	f.handler.HandleCreate(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
	var errBody struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errBody.Error != "validation_error" {
		t.Errorf("error code = %q, want validation_error", errBody.Error)
	}
}

func TestHandleUpdate(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(http.MethodPost, "/activities", f.createBody())
	rec := httptest.NewRecorder()
	f.handler.HandleCreate(rec, req)
	var a models.Activity
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}

	id := a.ID.Hex()
	req = testutil.WithChiURLParam(testutil.NewJSONRequest(http.MethodPatch, "/activities/"+id, `{"group_price":59.99}`), "id", id)
	rec = httptest.NewRecorder()
	f.handler.HandleUpdate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var updated models.Activity
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.GroupPrice != 59.99 {
		t.Errorf("group_price = %v, want 59.99", updated.GroupPrice)
	}
}

func TestServeList_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewRequest(http.MethodGet, "/activities?status=bogus")
	rec := httptest.NewRecorder()
	f.handler.ServeList(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServeList_Paging(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		req := testutil.NewJSONRequest(http.MethodPost, "/activities", f.createBody())
		rec := httptest.NewRecorder()
		f.handler.HandleCreate(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d failed: %s", i, rec.Body.String())
		}
	}

	req := testutil.NewRequest(http.MethodGet, "/activities?page=2&page_size=2")
	rec := httptest.NewRecorder()
	f.handler.ServeList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Activities []models.Activity `json:"activities"`
		Total      int64             `json:"total"`
		Page       int               `json:"page"`
		PageSize   int               `json:"page_size"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 5 || len(resp.Activities) != 2 || resp.Page != 2 {
		t.Errorf("total=%d len=%d page=%d, want 5/2/2", resp.Total, len(resp.Activities), resp.Page)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(http.MethodPost, "/activities", f.createBody())
	rec := httptest.NewRecorder()
	f.handler.HandleCreate(rec, req)
	var a models.Activity
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := a.ID.Hex()

	req = testutil.WithChiURLParam(testutil.NewRequest(http.MethodPost, "/activities/"+id+"/start"), "id", id)
	rec = httptest.NewRecorder()
	f.handler.HandleStart(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status = %d: %s", rec.Code, rec.Body.String())
	}

	req = testutil.WithChiURLParam(testutil.NewRequest(http.MethodPost, "/activities/"+id+"/end"), "id", id)
	rec = httptest.NewRecorder()
	f.handler.HandleEnd(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("end: status = %d: %s", rec.Code, rec.Body.String())
	}

	// Restarting an ended activity conflicts.
	req = testutil.WithChiURLParam(testutil.NewRequest(http.MethodPost, "/activities/"+id+"/start"), "id", id)
	rec = httptest.NewRecorder()
	f.handler.HandleStart(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("restart: status = %d, want 409", rec.Code)
	}
}

func TestServeStats(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(http.MethodPost, "/activities", f.createBody())
	rec := httptest.NewRecorder()
	f.handler.HandleCreate(rec, req)
	var a models.Activity
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}

	f.groups.Seed(models.Group{
		ActivityID: a.ID, InitiatorID: primitive.NewObjectID(),
		CurrentCount: 3, ExpireTime: f.now.Add(time.Hour), Status: models.GroupSuccess,
	})
	f.groups.Seed(models.Group{
		ActivityID: a.ID, InitiatorID: primitive.NewObjectID(),
		CurrentCount: 1, ExpireTime: f.now.Add(time.Hour), Status: models.GroupFailed,
	})

	id := a.ID.Hex()
	req = testutil.WithChiURLParam(testutil.NewRequest(http.MethodGet, "/activities/"+id+"/stats"), "id", id)
	rec = httptest.NewRecorder()
	f.handler.ServeStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var st stats.ActivityStats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.TotalGroups != 2 || st.SuccessGroups != 1 || st.SuccessRate != 50 {
		t.Errorf("stats = %+v", st)
	}
	// One successful group of 3 at 79.99.
	if st.TotalSales != 239.97 {
		t.Errorf("total_sales = %v, want 239.97", st.TotalSales)
	}
}
