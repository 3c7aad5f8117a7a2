// internal/domain/models/product.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is the catalog item an activity sells. The group engine only
// reads products (name, image, price, stock) to validate new activities
// and to enrich detail views; catalog management itself lives elsewhere.
type Product struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Image string             `bson:"image,omitempty" json:"image,omitempty"`
	Price float64            `bson:"price" json:"price"`
	Stock int                `bson:"stock" json:"stock"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
