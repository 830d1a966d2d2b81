package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/modules/notify"
	"github.com/campusdocs/portal/internal/pkg/pagination"
	"github.com/campusdocs/portal/internal/pkg/response"
	sessionpkg "github.com/campusdocs/portal/internal/pkg/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// loginDelay slows down guessing of unknown usernames.
var loginDelay = time.Second

type Service struct {
	db     *gorm.DB
	sender notify.Sender
	from   string
	logger *zap.Logger
}

func NewService(db *gorm.DB, sender notify.Sender, from string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, sender: sender, from: from, logger: logger.Named("UserService")}
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) findByUsername(ctx context.Context, username string) (*models.UserModel, error) {
	var u models.UserModel
	err := s.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts an account. Usernames are unique regardless of case.
func (s *Service) Create(ctx context.Context, dto *CreateUserDTO) (*models.UserModel, error) {
	username := strings.TrimSpace(dto.Username)
	if _, err := s.findByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, errUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	level := dto.Level
	if level == 0 {
		level = models.MinLevel
	}
	u := &models.UserModel{
		Username:   username,
		Password:   string(hash),
		Email:      strings.TrimSpace(dto.Email),
		FirstName:  strings.TrimSpace(dto.FirstName),
		MiddleName: strings.TrimSpace(dto.MiddleName),
		LastName:   strings.TrimSpace(dto.LastName),
		Level:      level,
		IsActive:   !dto.Inactive,
		IsAdmin:    dto.IsAdmin,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// List returns accounts ordered by username. search matches username,
// email or any name part.
func (s *Service) List(ctx context.Context, q pagination.Query, search string, active *bool) ([]models.UserModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.UserModel{}).Order("username ASC")
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		like := "%" + search + "%"
		tx = tx.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			like, like, like, like)
	}
	if active != nil {
		tx = tx.Where("is_active = ?", *active)
	}
	var items []models.UserModel
	pag, err := pagination.Find(tx, q, &items)
	return items, pag, err
}

// Update applies admin changes. Deactivating an account ends its sessions.
func (s *Service) Update(ctx context.Context, id string, dto *UpdateUserDTO) (*models.UserModel, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if dto.Email != nil {
		updates["email"] = strings.TrimSpace(*dto.Email)
	}
	if dto.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*dto.FirstName)
	}
	if dto.MiddleName != nil {
		updates["middle_name"] = strings.TrimSpace(*dto.MiddleName)
	}
	if dto.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*dto.LastName)
	}
	if dto.Level != nil {
		updates["level"] = *dto.Level
	}
	if dto.IsActive != nil {
		updates["is_active"] = *dto.IsActive
	}
	if dto.IsAdmin != nil {
		updates["is_admin"] = *dto.IsAdmin
	}
	if dto.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*dto.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hash)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(u).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	if dto.IsActive != nil && !*dto.IsActive {
		if err := sessionpkg.RevokeAll(ctx, s.db, u.ID); err != nil {
			s.logger.Warn("revoke sessions failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	return s.GetByID(ctx, id)
}

// Authenticate checks credentials. Unknown users and wrong passwords
// return the same error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.UserModel, error) {
	u, err := s.findByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errUserNotFound) {
			time.Sleep(loginDelay)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	return u, nil
}

func (s *Service) RecordLogin(ctx context.Context, u *models.UserModel, ip string) {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(u).Updates(map[string]interface{}{
		"last_login_time": now,
		"last_login_ip":   ip,
	}).Error
	if err != nil {
		s.logger.Warn("record login failed", zap.String("user_id", u.ID), zap.Error(err))
		return
	}
	u.LastLoginTime = &now
	u.LastLoginIP = ip
}

// ChangePassword verifies the old password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, id, oldPwd, newPwd string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(oldPwd)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(u).Update("password", string(hash)).Error
}

// SendWelcome mails the welcome message through the logging notifier.
func (s *Service) SendWelcome(ctx context.Context, u *models.UserModel) (notify.Outcome, error) {
	if !u.HasEmail() {
		return notify.Outcome{}, errNoEmail
	}
	out := s.sender.Notify(ctx, notify.WelcomeNotice(u, s.from))
	if !out.Sent {
		s.logger.Warn("welcome mail not delivered", zap.String("user_id", u.ID), zap.String("log_id", out.LogID), zap.Error(out.Err()))
	}
	return out, nil
}
