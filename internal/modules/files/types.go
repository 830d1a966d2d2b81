package files

import (
	"time"

	"github.com/campusdocs/portal/internal/models"
)

// UploadFileDTO is the multipart form accompanying an upload.
type UploadFileDTO struct {
	Title    string `form:"title"    binding:"required,max=200"`
	Level    int    `form:"level"    binding:"required,min=1,max=5"`
	Semester int    `form:"semester" binding:"required,min=1,max=2"`
	Category string `form:"category" binding:"required"`
}

type UpdateFileDTO struct {
	Title    *string `json:"title"    binding:"omitempty,min=1,max=200"`
	Level    *int    `json:"level"    binding:"omitempty,min=1,max=5"`
	Semester *int    `json:"semester" binding:"omitempty,min=1,max=2"`
	Category *string `json:"category"`
	Archived *bool   `json:"archived"`
}

// Filter narrows a listing. Nil fields do not filter.
type Filter struct {
	Level    *int
	Semester *int
	Category *models.FileCategory
}

type fileResponse struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Level         int                 `json:"level"`
	Semester      int                 `json:"semester"`
	Category      models.FileCategory `json:"category"`
	CategoryLabel string              `json:"category_label"`
	Filename      string              `json:"filename"`
	ContentType   string              `json:"content_type"`
	FileType      string              `json:"file_type"`
	Size          int64               `json:"size"`
	SizeDisplay   string              `json:"size_display"`
	UploadedAt    time.Time           `json:"uploaded_at"`
	UploadedBy    string              `json:"uploaded_by,omitempty"`
	Archived      bool                `json:"archived"`
	DownloadCount int64               `json:"download_count"`
}

type groupResponse struct {
	Date  string         `json:"date"`
	Files []fileResponse `json:"files"`
}

func toResponse(rec *models.FileRecordModel) fileResponse {
	out := fileResponse{
		ID:            rec.ID,
		Title:         rec.Title,
		Level:         rec.Level,
		Semester:      rec.Semester,
		Category:      rec.Category,
		CategoryLabel: rec.Category.Label(),
		Filename:      rec.OriginalName,
		ContentType:   rec.ContentType,
		FileType:      fileType(rec.OriginalName),
		Size:          rec.Size,
		SizeDisplay:   sizeDisplay(rec.Size),
		UploadedAt:    rec.UploadedAt,
		Archived:      rec.Archived,
		DownloadCount: rec.DownloadCount,
	}
	if rec.UploadedBy != nil {
		out.UploadedBy = rec.UploadedBy.Username
	}
	return out
}

func toGroupResponses(groups []DateGroup) []groupResponse {
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		files := make([]fileResponse, 0, len(g.Files))
		for i := range g.Files {
			files = append(files, toResponse(&g.Files[i]))
		}
		out = append(out, groupResponse{Date: g.Date, Files: files})
	}
	return out
}
