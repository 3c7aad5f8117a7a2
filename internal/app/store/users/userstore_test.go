package userstore_test

import (
	"testing"

	userstore "github.com/dalemusser/groupdeal/internal/app/store/users"
	"github.com/dalemusser/groupdeal/internal/domain/models"
	"github.com/dalemusser/groupdeal/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		LoginID:  "Alice@Example.COM",
		Nickname: "Alice",
		Role:     "buyer",
	}, "s3cret-password")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if u.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if u.LoginID != "alice@example.com" {
		t.Errorf("login_id = %q, want folded form", u.LoginID)
	}
	if u.Status != "active" {
		t.Errorf("status = %q, want active", u.Status)
	}
	if u.PasswordHash == "" || u.PasswordHash == "s3cret-password" {
		t.Error("password should be stored as a bcrypt hash")
	}
}

func TestStore_Create_DuplicateLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{LoginID: "alice", Role: "buyer"}, "pw-one"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Same login with different case collides after folding.
	if _, err := store.Create(ctx, models.User{LoginID: "ALICE", Role: "buyer"}, "pw-two"); err != userstore.ErrDuplicateLoginID {
		t.Errorf("err = %v, want ErrDuplicateLoginID", err)
	}
}

func TestStore_FindByLogin_CaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{LoginID: "bob@example.com", Role: "buyer"}, "pw")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.FindByLogin(ctx, "BOB@Example.Com")
	if err != nil {
		t.Fatalf("FindByLogin failed: %v", err)
	}
	if got.ID != created.ID {
		t.Error("wrong user returned")
	}

	if _, err := store.FindByLogin(ctx, "nobody"); err != mongo.ErrNoDocuments {
		t.Errorf("missing user: err = %v, want ErrNoDocuments", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{LoginID: "carol", Role: "buyer"}, "correct horse")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !userstore.VerifyPassword(u, "correct horse") {
		t.Error("correct password rejected")
	}
	if userstore.VerifyPassword(u, "wrong") {
		t.Error("wrong password accepted")
	}
	if userstore.VerifyPassword(models.User{}, "anything") {
		t.Error("user with no hash accepted")
	}
}

func TestStore_GetByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, err := store.Create(ctx, models.User{LoginID: "a", Nickname: "A", Role: "buyer"}, "pw")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b, err := store.Create(ctx, models.User{LoginID: "b", Nickname: "B", Role: "buyer"}, "pw")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	missing := primitive.NewObjectID()
	got, err := store.GetByIDs(ctx, []primitive.ObjectID{a.ID, b.ID, missing})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[a.ID].Nickname != "A" || got[b.ID].Nickname != "B" {
		t.Error("wrong users returned")
	}
	if _, ok := got[missing]; ok {
		t.Error("missing ID should be absent from the map")
	}
}
