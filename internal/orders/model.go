package orders

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address is the shipping address embedded in a customer.
type Address struct {
	Street     string `bson:"street" json:"street" validate:"required,max=100"`
	Number     string `bson:"number" json:"number" validate:"required,max=50"`
	City       string `bson:"city" json:"city" validate:"required,max=100"`
	Province   string `bson:"province" json:"province" validate:"required,max=100"`
	Country    string `bson:"country" json:"country" validate:"required,max=100"`
	PostalCode string `bson:"postalCode" json:"postalCode" validate:"required,max=100"`
}

// Customer identifies who receives an order.
type Customer struct {
	FullName string  `bson:"fullName" json:"fullName" validate:"required,max=100"`
	Email    string  `bson:"email" json:"email" validate:"required,email,max=100"`
	Phone    string  `bson:"phone" json:"phone" validate:"required,max=100"`
	Address  Address `bson:"address" json:"address" validate:"required"`
}

// Line is one product, its unit price snapshot and quantity.
type Line struct {
	ProductID int64   `bson:"productId" json:"productId"`
	Price     float64 `bson:"price" json:"price"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	Total     float64 `bson:"total" json:"total"`
}

// Order is stored as one document with its lines embedded.
type Order struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     int64              `bson:"userId" json:"userId"`
	Customer   Customer           `bson:"customer" json:"customer"`
	Lines      []Line             `bson:"lines" json:"lines"`
	TotalItems int                `bson:"totalItems" json:"totalItems"`
	Total      float64            `bson:"total" json:"total"`
	IsDeleted  bool               `bson:"isDeleted" json:"isDeleted"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// LineRequest is one line of an incoming order.
type LineRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Price     float64 `json:"price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
}

// Request is the body of POST and PUT /pedidos.
type Request struct {
	UserID   int64         `json:"userId" validate:"required,gt=0"`
	Customer Customer      `json:"customer" validate:"required"`
	Lines    []LineRequest `json:"lines" validate:"dive"`
}
