package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/pkg/blob"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errFileNotFound    = errors.New("file not found")
	errInvalidCategory = errors.New("invalid category")
)

type Service struct {
	db     *gorm.DB
	store  blob.Store
	loc    *time.Location
	logger *zap.Logger
}

func NewService(db *gorm.DB, store blob.Store, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, store: store, loc: loc, logger: logger.Named("FileService")}
}

// ParseFilter turns raw query values into a Filter. Values that are
// missing, unparseable or out of range are dropped rather than rejected.
func ParseFilter(level, category, semester string) Filter {
	var f Filter
	if v, err := strconv.Atoi(strings.TrimSpace(level)); err == nil && v >= models.MinLevel && v <= models.MaxLevel {
		f.Level = &v
	}
	if c := models.FileCategory(strings.TrimSpace(category)); c.Valid() {
		f.Category = &c
	}
	if v, err := strconv.Atoi(strings.TrimSpace(semester)); err == nil && v >= models.MinSemester && v <= models.MaxSemester {
		f.Semester = &v
	}
	return f
}

// List returns non-archived records matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]models.FileRecordModel, error) {
	tx := s.db.WithContext(ctx).Preload("UploadedBy").
		Where("archived = ?", false)
	if f.Level != nil {
		tx = tx.Where("level = ?", *f.Level)
	}
	if f.Category != nil {
		tx = tx.Where("category = ?", *f.Category)
	}
	if f.Semester != nil {
		tx = tx.Where("semester = ?", *f.Semester)
	}
	var items []models.FileRecordModel
	if err := tx.Order("uploaded_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Grouped is List bucketed by upload date.
func (s *Service) Grouped(ctx context.Context, f Filter) ([]DateGroup, error) {
	items, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return GroupByDate(items, s.loc), nil
}

// Get loads a record. Archived records are hidden unless includeArchived.
func (s *Service) Get(ctx context.Context, id string, includeArchived bool) (*models.FileRecordModel, error) {
	tx := s.db.WithContext(ctx).Preload("UploadedBy")
	if !includeArchived {
		tx = tx.Where("archived = ?", false)
	}
	var rec models.FileRecordModel
	if err := tx.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errFileNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Create stores the payload and inserts the record. The insert runs in its
// own transaction so the upload notification fires after commit. Callers
// composing a larger transaction go through notify.UploadTrigger.Transaction.
func (s *Service) Create(ctx context.Context, dto *UploadFileDTO, filename, contentType string, size int64, r io.Reader, uploaderID string) (*models.FileRecordModel, error) {
	category := models.FileCategory(strings.TrimSpace(dto.Category))
	if !category.Valid() {
		return nil, errInvalidCategory
	}
	filename = safeFilename(filename)
	now := time.Now()
	key := fmt.Sprintf("files/%s/%s%s", now.UTC().Format("2006/01"), uuid.NewString(), strings.ToLower(path.Ext(filename)))

	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	rec := &models.FileRecordModel{
		Title:        strings.TrimSpace(dto.Title),
		Level:        dto.Level,
		Semester:     dto.Semester,
		Category:     category,
		StorageKey:   key,
		OriginalName: filename,
		ContentType:  contentType,
		Size:         size,
		UploadedAt:   now,
	}
	if uploaderID != "" {
		rec.UploadedByID = &uploaderID
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("remove orphaned upload failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	s.logger.Info("file uploaded", zap.String("file_id", rec.ID), zap.String("title", rec.Title), zap.Int64("size", size))
	return rec, nil
}

// Update applies metadata changes and the archived flag. It never fires
// the upload notification.
func (s *Service) Update(ctx context.Context, id string, dto *UpdateFileDTO) (*models.FileRecordModel, error) {
	updates := map[string]interface{}{}
	if dto.Title != nil {
		updates["title"] = strings.TrimSpace(*dto.Title)
	}
	if dto.Level != nil {
		updates["level"] = *dto.Level
	}
	if dto.Semester != nil {
		updates["semester"] = *dto.Semester
	}
	if dto.Category != nil {
		c := models.FileCategory(strings.TrimSpace(*dto.Category))
		if !c.Valid() {
			return nil, errInvalidCategory
		}
		updates["category"] = c
	}
	if dto.Archived != nil {
		updates["archived"] = *dto.Archived
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.FileRecordModel{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, errFileNotFound
		}
	}
	return s.Get(ctx, id, true)
}

// IncrementDownloads bumps the counter in a single UPDATE so concurrent
// downloads never lose an increment.
func (s *Service) IncrementDownloads(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.FileRecordModel{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errFileNotFound
	}
	downloadsTotal.Inc()
	return nil
}

// Open returns the payload of rec.
func (s *Service) Open(ctx context.Context, rec *models.FileRecordModel) (io.ReadCloser, *blob.Object, error) {
	return s.store.Open(ctx, rec.StorageKey)
}

// Download opens the payload and counts the download. A missing payload
// is not counted.
func (s *Service) Download(ctx context.Context, rec *models.FileRecordModel) (io.ReadCloser, *blob.Object, error) {
	rc, obj, err := s.Open(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	if err := s.IncrementDownloads(ctx, rec.ID); err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	return rc, obj, nil
}
