package funkos

import (
	"time"

	"github.com/google/uuid"
)

// DefaultImage is used when a funko is created without an image.
const DefaultImage = "https://via.placeholder.com/150"

// Funko is a catalog item.
type Funko struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Quantity   int       `json:"quantity"`
	Image      string    `json:"image"`
	Category   string    `json:"category"`
	CategoryID uuid.UUID `json:"-"`
	IsDeleted  bool      `json:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CreateRequest is the body of POST /funkos.
type CreateRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=0"`
	Image    string  `json:"image" validate:"omitempty,url"`
	Category string  `json:"category" validate:"required"`
}

// UpdateRequest is the body of PUT /funkos/{id}. Absent fields are left unchanged.
type UpdateRequest struct {
	Name      *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0"`
	Quantity  *int     `json:"quantity" validate:"omitempty,gte=0"`
	Image     *string  `json:"image" validate:"omitempty,url"`
	Category  *string  `json:"category" validate:"omitempty,min=1"`
	IsDeleted *bool    `json:"isDeleted"`
}

// StockLine is one product and quantity reserved or released by an order.
type StockLine struct {
	ProductID int64
	Quantity  int
	Price     float64
}
