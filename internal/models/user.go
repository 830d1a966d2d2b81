package models

import (
	"strings"
	"time"
)

// UserModel is a portal account. Students register themselves; admins
// are flagged with IsAdmin.
type UserModel struct {
	Base
	Username      string     `json:"username"        gorm:"uniqueIndex;size:150;not null"`
	Password      string     `json:"-"               gorm:"not null"`
	Email         string     `json:"email"           gorm:"size:254;index"`
	FirstName     string     `json:"first_name"      gorm:"size:150"`
	MiddleName    string     `json:"middle_name"     gorm:"size:150"`
	LastName      string     `json:"last_name"       gorm:"size:150"`
	Level         int        `json:"level"           gorm:"not null;default:1"`
	IsActive      bool       `json:"is_active"       gorm:"not null;index"`
	IsAdmin       bool       `json:"is_admin"        gorm:"not null;default:false"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

func (UserModel) TableName() string { return "users" }

// HasEmail reports whether the account has a deliverable address on file.
func (u *UserModel) HasEmail() bool { return strings.TrimSpace(u.Email) != "" }

// FullName joins the non-empty name parts.
func (u *UserModel) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.FirstName, u.MiddleName, u.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
