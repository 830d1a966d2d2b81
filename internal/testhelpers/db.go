// Package testhelpers provides an isolated, migrated database per test.
package testhelpers

import (
	"fmt"
	"testing"

	"github.com/campusdocs/portal/internal/database"
	"github.com/campusdocs/portal/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with the schema applied.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts an account with password "password".
func CreateUser(t *testing.T, db *gorm.DB, username, email string, active bool) *models.UserModel {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.UserModel{
		Username: username,
		Password: string(hash),
		Email:    email,
		Level:    1,
		IsActive: active,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateAdmin inserts an active admin account with password "password".
func CreateAdmin(t *testing.T, db *gorm.DB, username, email string) *models.UserModel {
	t.Helper()
	u := CreateUser(t, db, username, email, true)
	require.NoError(t, db.Model(u).Update("is_admin", true).Error)
	u.IsAdmin = true
	return u
}
