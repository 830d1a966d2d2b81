package auth

import (
	"time"

	"github.com/campusdocs/portal/internal/modules/users"
)

// RegisterDTO is the self-registration form. Accounts created here are
// never admins.
type RegisterDTO struct {
	Username        string `json:"username"         binding:"required,min=3,max=150"`
	Password        string `json:"password"         binding:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" binding:"required,eqfield=Password"`
	Email           string `json:"email"            binding:"required,email,max=254"`
	FirstName       string `json:"first_name"       binding:"required,max=150"`
	MiddleName      string `json:"middle_name"      binding:"max=150"`
	LastName        string `json:"last_name"        binding:"required,max=150"`
	Level           int    `json:"level"            binding:"required,min=1,max=5"`
}

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type loginResponse struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	User      *users.UserResponse `json:"user"`
}

type registerResponse struct {
	loginResponse
	WelcomeSent bool `json:"welcome_sent"`
}

type sessionResponse struct {
	SessionID string              `json:"session_id"`
	IP        string              `json:"ip"`
	ExpiresAt time.Time           `json:"expires_at"`
	User      *users.UserResponse `json:"user"`
}
