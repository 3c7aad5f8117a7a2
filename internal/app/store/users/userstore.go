// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/groupdeal/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateLoginID = errors.New("a user with this login already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByIDs fetches users in one round trip, keyed by ID. Used to render
// participant lists without N lookups.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	result := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		result[u.ID] = u
	}
	return result, cur.Err()
}

func (s *Store) FindByLogin(ctx context.Context, loginID string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"login_id": text.Fold(loginID)}).Decode(&u)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Create inserts a user, hashing the supplied plaintext password with
// bcrypt. LoginID is case-folded so logins are case-insensitive.
func (s *Store) Create(ctx context.Context, u models.User, password string) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.LoginID = text.Fold(u.LoginID)
	if u.Status == "" {
		u.Status = "active"
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return models.User{}, err
		}
		u.PasswordHash = string(hash)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateLoginID
		}
		return models.User{}, err
	}
	return u, nil
}

// VerifyPassword compares a candidate password against the stored hash.
func VerifyPassword(u models.User, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
