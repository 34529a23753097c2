package domain

import (
	"context"
	"time"
)

type Role string

const (
	UserRoleUser  Role = "USER"
	UserRoleAdmin Role = "ADMIN"
)

func (r Role) IsValid() bool {
	switch r {
	case UserRoleUser, UserRoleAdmin:
		return true
	default:
		return false
	}
}

// User is the persisted form. ID, CreatedAt and UpdatedAt are owned by the repository.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserDTO crosses the service boundary. Role and Active are optional on input;
// a nil value means "not supplied" and is resolved by RoleOrDefault / ActiveOrDefault.
type UserDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Phone     string    `json:"phone,omitempty"`
	Role      *Role     `json:"role,omitempty" validate:"omitempty,oneof=USER ADMIN"`
	Active    *bool     `json:"active,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserRepository is the persistence gateway for users.
// FindByID returns nil, nil when no row matches.
type UserRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindAll(ctx context.Context) ([]*User, error)
	FindByActive(ctx context.Context, active bool) ([]*User, error)
	Save(ctx context.Context, user *User) (*User, error)
	DeleteByID(ctx context.Context, id int64) error

	// WithinTransaction runs fn against a repository bound to a single store
	// transaction. A nil return commits, anything else rolls back.
	WithinTransaction(ctx context.Context, fn func(repo UserRepository) error) error
}

type UserService interface {
	CreateUser(ctx context.Context, dto *UserDTO) (*UserDTO, error)
	GetUserByID(ctx context.Context, id int64) (*UserDTO, error)
	GetAllUsers(ctx context.Context) ([]*UserDTO, error)
	GetActiveUsers(ctx context.Context) ([]*UserDTO, error)
	UpdateUser(ctx context.Context, id int64, dto *UserDTO) (*UserDTO, error)
	DeleteUser(ctx context.Context, id int64) error
	DeactivateUser(ctx context.Context, id int64) (*UserDTO, error)
}
