package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/pkg/mail"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const uploadCallbackName = "portal:upload_notification"

// UploadTrigger announces newly created file records to every active user
// with an email address. It runs synchronously after the insert commits and
// never fails the insert. Records created inside Transaction are announced
// once the enclosing transaction commits; records created inside any other
// caller-managed transaction are not announced.
type UploadTrigger struct {
	db     *gorm.DB
	sender Sender
	log    *DeliveryLog
	from   string
	loc    *time.Location
	logger *zap.Logger

	mu      sync.Mutex
	pending map[gorm.ConnPool][]*models.FileRecordModel
}

func NewUploadTrigger(db *gorm.DB, sender Sender, log *DeliveryLog, from string, loc *time.Location, logger *zap.Logger) *UploadTrigger {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadTrigger{
		db:      db,
		sender:  sender,
		log:     log,
		from:    from,
		loc:     loc,
		logger:  logger.Named("UploadTrigger"),
		pending: make(map[gorm.ConnPool][]*models.FileRecordModel),
	}
}

// Register hooks the trigger into db's create pipeline. Updates never fire it.
func (t *UploadTrigger) Register() error {
	return t.db.Callback().Create().
		After("gorm:commit_or_rollback_transaction").
		Register(uploadCallbackName, t.afterCreate)
}

func (t *UploadTrigger) afterCreate(tx *gorm.DB) {
	if tx.Error != nil || tx.Statement == nil || tx.Statement.Schema == nil {
		return
	}
	if tx.Statement.Schema.Table != (models.FileRecordModel{}).TableName() {
		return
	}
	records := createdRecords(tx.Statement.Dest)
	if len(records) == 0 {
		return
	}
	// Still inside a caller's transaction: the row may roll back, and the
	// transaction may hold the only connection.
	if _, inTx := tx.Statement.ConnPool.(gorm.TxCommitter); inTx {
		if !t.hold(tx.Statement.ConnPool, records) {
			t.logger.Warn("file record created in an untracked transaction, upload notification skipped",
				zap.String("file_id", records[0].ID))
		}
		return
	}
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	for _, rec := range records {
		t.OnCreated(ctx, rec)
	}
}

// Transaction runs fn in a transaction and announces the file records it
// created only after the commit succeeds.
func (t *UploadTrigger) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var key gorm.ConnPool
	defer func() {
		if key != nil {
			t.release(key)
		}
	}()
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key = tx.Statement.ConnPool
		t.track(key)
		return fn(tx)
	})
	records := t.release(key)
	if err != nil {
		return err
	}
	for _, rec := range records {
		t.OnCreated(ctx, rec)
	}
	return nil
}

func (t *UploadTrigger) track(key gorm.ConnPool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[key] = nil
}

// hold queues records for a tracked transaction and reports whether it was one.
func (t *UploadTrigger) hold(key gorm.ConnPool, records []*models.FileRecordModel) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	queued, ok := t.pending[key]
	if !ok {
		return false
	}
	t.pending[key] = append(queued, records...)
	return true
}

func (t *UploadTrigger) release(key gorm.ConnPool) []*models.FileRecordModel {
	if key == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	records := t.pending[key]
	delete(t.pending, key)
	return records
}

func createdRecords(dest interface{}) []*models.FileRecordModel {
	switch v := dest.(type) {
	case *models.FileRecordModel:
		return []*models.FileRecordModel{v}
	case *[]models.FileRecordModel:
		out := make([]*models.FileRecordModel, 0, len(*v))
		for i := range *v {
			out = append(out, &(*v)[i])
		}
		return out
	case []models.FileRecordModel:
		out := make([]*models.FileRecordModel, 0, len(v))
		for i := range v {
			out = append(out, &v[i])
		}
		return out
	case []*models.FileRecordModel:
		return v
	case *[]*models.FileRecordModel:
		return *v
	}
	return nil
}

// OnCreated notifies recipients about rec. It reports whether a send was
// attempted. No delivery log entry is written when nobody can be notified.
// A cancelled ctx does not stop the notification.
func (t *UploadTrigger) OnCreated(ctx context.Context, rec *models.FileRecordModel) (attempted bool) {
	ctx = context.WithoutCancel(ctx)
	var msg mail.Message
	defer func() {
		if r := recover(); r != nil {
			attempted = true
			t.logger.Error("upload notification panicked", zap.String("file_id", rec.ID), zap.Any("panic", r))
			if msg.Subject == "" {
				msg = mail.Message{From: t.from, Subject: "New file uploaded: " + rec.Title}
			}
			if _, err := t.log.Record(ctx, msg, fmt.Sprintf("send failed (panic in upload notification): %v", r)); err != nil {
				t.logger.Error("record minimal delivery log failed", zap.String("file_id", rec.ID), zap.Error(err))
			}
		}
	}()

	recipients, err := t.recipients(ctx)
	if err != nil {
		t.logger.Error("resolve upload recipients failed", zap.String("file_id", rec.ID), zap.Error(err))
		msg = mail.Message{From: t.from, Subject: "New file uploaded: " + rec.Title}
		if _, recErr := t.log.Record(ctx, msg, fmt.Sprintf("send failed (recipient lookup): %v", err)); recErr != nil {
			t.logger.Error("record minimal delivery log failed", zap.String("file_id", rec.ID), zap.Error(recErr))
		}
		return true
	}
	if len(recipients) == 0 {
		t.logger.Info("no active users with email, skipping upload notification", zap.String("file_id", rec.ID))
		return false
	}

	msg = UploadNotice(rec, t.uploaderName(ctx, rec), t.loc, t.from, recipients)
	out := t.sender.Notify(ctx, msg)
	if !out.Sent {
		t.logger.Warn("upload notification not delivered", zap.String("file_id", rec.ID), zap.String("log_id", out.LogID), zap.Error(out.Err()))
	}
	return true
}

// recipients returns the distinct, sorted addresses of active users.
func (t *UploadTrigger) recipients(ctx context.Context) ([]string, error) {
	var emails []string
	err := t.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("is_active = ? AND email <> ?", true, "").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out, nil
}

func (t *UploadTrigger) uploaderName(ctx context.Context, rec *models.FileRecordModel) string {
	if rec.UploadedBy != nil && rec.UploadedBy.Username != "" {
		return rec.UploadedBy.Username
	}
	if rec.UploadedByID == nil || *rec.UploadedByID == "" {
		return unknownUploader
	}
	var u models.UserModel
	if err := t.db.WithContext(ctx).Select("id, username").First(&u, "id = ?", *rec.UploadedByID).Error; err != nil {
		return unknownUploader
	}
	return u.Username
}
