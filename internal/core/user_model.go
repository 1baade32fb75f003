package core

import (
	"context"
	"strings"
	"time"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Elevated reports whether the role may validate or cancel operations.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleManager
}

// User represents an authenticated warehouse user.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserInput is used when creating a user.
type UserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

func (in *UserInput) Normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Role = Role(strings.ToUpper(strings.TrimSpace(string(in.Role))))
}

func (in UserInput) Validate() error {
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return invalid("email", "must be a valid email address")
	}
	if len(in.Password) < 6 {
		return invalid("password", "must be at least 6 characters")
	}
	if !in.Role.Valid() {
		return invalid("role", "must be one of ADMIN, MANAGER, STAFF, got %q", in.Role)
	}
	return nil
}

// UserService provides user lookup and credential checks.
type UserService interface {
	CreateUser(ctx context.Context, in UserInput) (*User, error)

	// GetByEmail finds an active user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID string) (*User, error)

	// Authenticate returns the active user whose password matches. Any mismatch is ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, password string) (*User, error)
}
