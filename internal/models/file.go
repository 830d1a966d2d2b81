package models

import (
	"time"

	"gorm.io/gorm"
)

// FileCategory classifies uploaded study material.
type FileCategory string

const (
	CategoryNotes       FileCategory = "notes"
	CategoryPastPapers  FileCategory = "past_papers"
	CategoryAssignments FileCategory = "assignments"
)

// FileCategories lists the accepted categories in display order.
var FileCategories = []FileCategory{CategoryNotes, CategoryPastPapers, CategoryAssignments}

// Valid reports whether c is one of the known categories.
func (c FileCategory) Valid() bool {
	for _, known := range FileCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Label is the human readable category name.
func (c FileCategory) Label() string {
	switch c {
	case CategoryNotes:
		return "Notes"
	case CategoryPastPapers:
		return "Past Papers"
	case CategoryAssignments:
		return "Assignments"
	}
	return string(c)
}

const (
	MinLevel    = 1
	MaxLevel    = 5
	MinSemester = 1
	MaxSemester = 2
)

// FileRecordModel is an uploaded file and its metadata. Records are archived
// rather than deleted.
type FileRecordModel struct {
	Base
	Title         string       `json:"title"          gorm:"size:200;not null"`
	Level         int          `json:"level"          gorm:"not null;index"`
	Semester      int          `json:"semester"       gorm:"not null;default:1;index"`
	Category      FileCategory `json:"category"       gorm:"size:20;not null;index"`
	StorageKey    string       `json:"-"              gorm:"size:512;not null"`
	OriginalName  string       `json:"filename"       gorm:"size:255;not null"`
	ContentType   string       `json:"content_type"   gorm:"size:127"`
	Size          int64        `json:"size"`
	UploadedAt    time.Time    `json:"uploaded_at"    gorm:"<-:create;not null;index"`
	UploadedByID  *string      `json:"uploaded_by_id" gorm:"type:char(36);index"`
	UploadedBy    *UserModel   `json:"uploaded_by,omitempty" gorm:"foreignKey:UploadedByID"`
	Archived      bool         `json:"archived"       gorm:"not null;default:false;index"`
	DownloadCount int64        `json:"download_count" gorm:"not null;default:0"`
}

func (FileRecordModel) TableName() string { return "file_records" }

func (f *FileRecordModel) BeforeCreate(tx *gorm.DB) error {
	if err := f.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now()
	}
	return nil
}
