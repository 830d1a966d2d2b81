package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/pkg/mail"
)

const (
	unknownUploader  = "Unknown"
	uploadDateLayout = "2006-01-02 15:04:05 MST"
	welcomeSubject   = "Welcome to our platform"
)

// UploadNotice builds the announcement for a newly created file record.
// The same record, uploader and zone always yield the same message.
func UploadNotice(rec *models.FileRecordModel, uploader string, loc *time.Location, from string, to []string) mail.Message {
	if strings.TrimSpace(uploader) == "" {
		uploader = unknownUploader
	}
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Filename: %s\n", rec.OriginalName)
	fmt.Fprintf(&b, "Title: %s\n", rec.Title)
	fmt.Fprintf(&b, "Level: %d\n", rec.Level)
	fmt.Fprintf(&b, "Category: %s\n", rec.Category)
	fmt.Fprintf(&b, "Semester: %d\n", rec.Semester)
	fmt.Fprintf(&b, "Uploaded by: %s\n", uploader)
	fmt.Fprintf(&b, "Upload date: %s\n", rec.UploadedAt.In(loc).Format(uploadDateLayout))
	return mail.Message{
		From:    from,
		To:      to,
		Subject: "New file uploaded: " + rec.Title,
		Body:    b.String(),
	}
}

// WelcomeNotice is sent after registration and on admin request.
func WelcomeNotice(u *models.UserModel, from string) mail.Message {
	return mail.Message{
		From:    from,
		To:      []string{u.Email},
		Subject: welcomeSubject,
		Body:    fmt.Sprintf("Hello %s, thank you for registering.", u.Username),
	}
}
