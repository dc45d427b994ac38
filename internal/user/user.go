package user

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is an account of the identity provider. ID is the opaque identity
// string that collection records are keyed by.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Password    string    `json:"-"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

//go:generate mockgen -source=user.go -destination=mock_repository.go -package=user

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	// SetDisplayName stores name, or clears it when name is nil.
	SetDisplayName(ctx context.Context, userID string, name *string) (User, error)
}
