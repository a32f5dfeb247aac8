package categories

import (
	"time"

	"github.com/google/uuid"
)

// Category groups funkos under a unique, lower-cased name.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateRequest is the body of POST /categorias.
type CreateRequest struct {
	Name string `json:"name" validate:"required,min=3,max=100"`
}

// UpdateRequest is the body of PUT /categorias/{id}. Absent fields are left unchanged.
type UpdateRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=3,max=100"`
	IsDeleted *bool   `json:"isDeleted"`
}
