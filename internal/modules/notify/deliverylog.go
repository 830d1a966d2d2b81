package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/pkg/mail"
	"github.com/campusdocs/portal/internal/pkg/pagination"
	"github.com/campusdocs/portal/internal/pkg/response"
	"gorm.io/gorm"
)

// DeliveryLog is the append-only audit trail of notification attempts.
// Rows are opened before any transport runs and are never deleted.
type DeliveryLog struct{ db *gorm.DB }

func NewDeliveryLog(db *gorm.DB) *DeliveryLog { return &DeliveryLog{db: db} }

// Open persists a pending entry (sent=false, empty error) for msg.
func (l *DeliveryLog) Open(ctx context.Context, msg mail.Message) (*models.DeliveryLogModel, error) {
	entry := &models.DeliveryLogModel{
		Subject:    msg.Subject,
		Body:       msg.Body,
		FromEmail:  msg.From,
		Recipients: strings.Join(msg.Recipients(), ","),
	}
	if err := l.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Update overwrites sent and appends errText, if any, to the entry's error
// text on a new line.
func (l *DeliveryLog) Update(ctx context.Context, entry *models.DeliveryLogModel, sent bool, errText string) error {
	combined := appendError(entry.Error, errText)
	err := l.db.WithContext(ctx).Model(&models.DeliveryLogModel{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{"sent": sent, "error": combined}).Error
	if err != nil {
		return err
	}
	entry.Sent = sent
	entry.Error = combined
	return nil
}

// Record writes a finished, unsent entry in one step. It is used when the
// normal open/update cycle could not run.
func (l *DeliveryLog) Record(ctx context.Context, msg mail.Message, errText string) (*models.DeliveryLogModel, error) {
	entry := &models.DeliveryLogModel{
		Subject:    msg.Subject,
		Body:       msg.Body,
		FromEmail:  msg.From,
		Recipients: strings.Join(msg.Recipients(), ","),
		Error:      errText,
	}
	if err := l.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns entries newest first, optionally filtered by sent state.
func (l *DeliveryLog) List(ctx context.Context, q pagination.Query, sent *bool) ([]models.DeliveryLogModel, response.Pagination, error) {
	tx := l.db.WithContext(ctx).Model(&models.DeliveryLogModel{}).Order("created_at DESC")
	if sent != nil {
		tx = tx.Where("sent = ?", *sent)
	}
	var items []models.DeliveryLogModel
	pag, err := pagination.Find(tx, q, &items)
	return items, pag, err
}

func (l *DeliveryLog) Get(ctx context.Context, id string) (*models.DeliveryLogModel, error) {
	var item models.DeliveryLogModel
	if err := l.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func appendError(prev, next string) string {
	if next == "" {
		return prev
	}
	if prev == "" {
		return next
	}
	return prev + "\n" + next
}
