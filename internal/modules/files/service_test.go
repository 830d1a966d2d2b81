package files

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/pkg/blob"
	"github.com/campusdocs/portal/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testhelpers.NewDB(t)
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewService(db, store, time.UTC, nil), db
}

func seed(t *testing.T, db *gorm.DB, title string, level, semester int, category models.FileCategory, archived bool) *models.FileRecordModel {
	t.Helper()
	r := &models.FileRecordModel{
		Title:        title,
		Level:        level,
		Semester:     semester,
		Category:     category,
		StorageKey:   "files/" + title,
		OriginalName: title + ".pdf",
	}
	require.NoError(t, db.Create(r).Error)
	if archived {
		require.NoError(t, db.Model(r).Update("archived", true).Error)
	}
	return r
}

func TestNewService_DefaultsToUTC(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)
	assert.Equal(t, time.UTC, svc.loc)
}

func TestParseFilter(t *testing.T) {
	f := ParseFilter("3", "notes", "2")
	require.NotNil(t, f.Level)
	require.NotNil(t, f.Category)
	require.NotNil(t, f.Semester)
	assert.Equal(t, 3, *f.Level)
	assert.Equal(t, models.CategoryNotes, *f.Category)
	assert.Equal(t, 2, *f.Semester)

	invalid := ParseFilter("9", "recipes", "x")
	assert.Nil(t, invalid.Level)
	assert.Nil(t, invalid.Category)
	assert.Nil(t, invalid.Semester)
	assert.Nil(t, ParseFilter("0", "", "3").Level)
}

func TestService_List(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	seed(t, db, "Calculus", 3, 1, models.CategoryNotes, false)
	seed(t, db, "Algebra", 3, 2, models.CategoryPastPapers, false)
	seed(t, db, "Physics", 1, 1, models.CategoryNotes, false)
	seed(t, db, "Old", 3, 1, models.CategoryNotes, true)

	t.Run("level filter", func(t *testing.T) {
		items, err := svc.List(ctx, ParseFilter("3", "", ""))
		require.NoError(t, err)
		assert.Len(t, items, 2)
		for _, it := range items {
			assert.Equal(t, 3, it.Level)
			assert.False(t, it.Archived)
		}
	})

	t.Run("out-of-range level is ignored", func(t *testing.T) {
		items, err := svc.List(ctx, ParseFilter("9", "", ""))
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("combined filters", func(t *testing.T) {
		items, err := svc.List(ctx, ParseFilter("3", "notes", "1"))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Calculus", items[0].Title)
	})
}

func TestService_Get(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	archived := seed(t, db, "Old", 2, 1, models.CategoryNotes, true)

	_, err := svc.Get(ctx, archived.ID, false)
	assert.ErrorIs(t, err, errFileNotFound)

	got, err := svc.Get(ctx, archived.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	_, err = svc.Get(ctx, "missing", true)
	assert.ErrorIs(t, err, errFileNotFound)
}

func TestService_CreateAndDownload(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	admin := testhelpers.CreateAdmin(t, db, "registrar", "registrar@example.edu")

	rec, err := svc.Create(ctx, &UploadFileDTO{Title: " Thermo ", Level: 2, Semester: 1, Category: "notes"},
		"../thermo.PDF", "application/pdf", 5, strings.NewReader("hello"), admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thermo", rec.Title)
	assert.Equal(t, "thermo.PDF", rec.OriginalName)
	assert.True(t, strings.HasSuffix(rec.StorageKey, ".pdf"))
	require.NotNil(t, rec.UploadedByID)
	assert.Equal(t, admin.ID, *rec.UploadedByID)

	rc, obj, err := svc.Download(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, int64(5), obj.Size)

	got, err := svc.Get(ctx, rec.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.DownloadCount)
	require.NotNil(t, got.UploadedBy)
	assert.Equal(t, "registrar", got.UploadedBy.Username)
}

func TestService_CreateRejectsCategory(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), &UploadFileDTO{Title: "x", Level: 1, Semester: 1, Category: "recipes"},
		"x.pdf", "application/pdf", 1, strings.NewReader("x"), "")
	assert.ErrorIs(t, err, errInvalidCategory)
}

func TestService_DownloadMissingPayloadNotCounted(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	r := seed(t, db, "Ghost", 1, 1, models.CategoryNotes, false)

	_, _, err := svc.Download(ctx, r)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	got, err := svc.Get(ctx, r.ID, false)
	require.NoError(t, err)
	assert.Zero(t, got.DownloadCount)
}

func TestService_ConcurrentDownloadsAreCounted(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	r := seed(t, db, "Popular", 1, 1, models.CategoryNotes, false)

	const downloads = 50
	var wg sync.WaitGroup
	errs := make(chan error, downloads)
	for i := 0; i < downloads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.IncrementDownloads(ctx, r.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, r.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, downloads, got.DownloadCount)
	assert.ErrorIs(t, svc.IncrementDownloads(ctx, "missing"), errFileNotFound)
}

func TestService_Update(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	r := seed(t, db, "Draft", 1, 1, models.CategoryNotes, false)
	originalUpload := r.UploadedAt

	title := "Final"
	archived := true
	got, err := svc.Update(ctx, r.ID, &UpdateFileDTO{Title: &title, Archived: &archived})
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
	assert.True(t, got.Archived)
	assert.Equal(t, originalUpload.Unix(), got.UploadedAt.Unix())

	bad := "recipes"
	_, err = svc.Update(ctx, r.ID, &UpdateFileDTO{Category: &bad})
	assert.ErrorIs(t, err, errInvalidCategory)

	_, err = svc.Update(ctx, "missing", &UpdateFileDTO{Title: &title})
	assert.ErrorIs(t, err, errFileNotFound)
}
