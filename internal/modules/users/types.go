package users

import (
	"errors"
	"time"

	"github.com/campusdocs/portal/internal/models"
)

var (
	errUserNotFound = errors.New("user not found")
	errNoEmail      = errors.New("user has no email address")

	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactive           = errors.New("account is inactive")
)

// CreateUserDTO is used both by self-registration and by admins.
type CreateUserDTO struct {
	Username   string `json:"username"    binding:"required,min=3,max=150"`
	Password   string `json:"password"    binding:"required,min=8"`
	Email      string `json:"email"       binding:"omitempty,email,max=254"`
	FirstName  string `json:"first_name"  binding:"max=150"`
	MiddleName string `json:"middle_name" binding:"max=150"`
	LastName   string `json:"last_name"   binding:"max=150"`
	Level      int    `json:"level"       binding:"omitempty,min=1,max=5"`
	IsAdmin    bool   `json:"is_admin"`
	// Inactive creates a disabled account. Accounts are active by default.
	Inactive bool `json:"inactive"`
}

type UpdateUserDTO struct {
	Email      *string `json:"email"       binding:"omitempty,email,max=254"`
	FirstName  *string `json:"first_name"  binding:"omitempty,max=150"`
	MiddleName *string `json:"middle_name" binding:"omitempty,max=150"`
	LastName   *string `json:"last_name"   binding:"omitempty,max=150"`
	Level      *int    `json:"level"       binding:"omitempty,min=1,max=5"`
	IsActive   *bool   `json:"is_active"`
	IsAdmin    *bool   `json:"is_admin"`
	Password   *string `json:"password"    binding:"omitempty,min=8"`
}

// UserResponse is the public shape of an account.
type UserResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	MiddleName    string     `json:"middle_name"`
	LastName      string     `json:"last_name"`
	FullName      string     `json:"full_name"`
	Level         int        `json:"level"`
	IsActive      bool       `json:"is_active"`
	IsAdmin       bool       `json:"is_admin"`
	Created       time.Time  `json:"created"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip,omitempty"`
}

func ToResponse(u *models.UserModel) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		MiddleName:    u.MiddleName,
		LastName:      u.LastName,
		FullName:      u.FullName(),
		Level:         u.Level,
		IsActive:      u.IsActive,
		IsAdmin:       u.IsAdmin,
		Created:       u.CreatedAt,
		LastLoginTime: u.LastLoginTime,
		LastLoginIP:   u.LastLoginIP,
	}
}
