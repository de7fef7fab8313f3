package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserRole enumerates the access levels of staff accounts.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleEditor  UserRole = "editor"
	RoleViewer  UserRole = "viewer"

	userPasswordMinLength = 6
	userPasswordCost      = 12
)

var (
	ErrInvalidUserEmail    = errors.New("invalid_user_email")
	ErrInvalidUserName     = errors.New("invalid_user_name")
	ErrInvalidUserRole     = errors.New("invalid_user_role")
	ErrInvalidUserPassword = errors.New("invalid_user_password")
)

// User is a staff account that bearer tokens resolve to.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Name         string     `gorm:"not null;size:100" json:"name"`
	Email        string     `gorm:"not null;size:320;uniqueIndex:idx_users_email" json:"email"`
	PasswordHash string     `gorm:"not null;size:100" json:"-"`
	Role         UserRole   `gorm:"not null;size:16;index" json:"role"`
	IsActive     bool       `gorm:"not null" json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// UserInput holds the raw values used to construct a User.
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// NewUser constructs an active User with a bcrypt password hash.
func NewUser(input UserInput) (User, error) {
	name := strings.TrimSpace(input.Name)
	if len(name) < 2 || len(name) > 100 {
		return User{}, ErrInvalidUserName
	}

	email := NormalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidUserEmail, err)
	}

	role := UserRole(strings.ToLower(strings.TrimSpace(input.Role)))
	if role == "" {
		role = RoleViewer
	}
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: %s", ErrInvalidUserRole, input.Role)
	}

	if len(input.Password) < userPasswordMinLength {
		return User{}, ErrInvalidUserPassword
	}
	hash, hashErr := bcrypt.GenerateFromPassword([]byte(input.Password), userPasswordCost)
	if hashErr != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidUserPassword, hashErr)
	}

	return User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}, nil
}

// PasswordMatches compares a candidate password against the stored hash.
func (user User) PasswordMatches(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(candidate)) == nil
}

// Valid reports whether the role is one of the known roles.
func (role UserRole) Valid() bool {
	switch role {
	case RoleAdmin, RoleManager, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}
