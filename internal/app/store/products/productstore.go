// internal/app/store/products/productstore.go
package productstore

import (
	"context"
	"time"

	"github.com/dalemusser/groupdeal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store is the product lookup the registry and detail views read from.
// Catalog management is out of scope; Create exists for seeding and
// tests.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("products")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var p models.Product
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func (s *Store) Create(ctx context.Context, p models.Product) (models.Product, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}
