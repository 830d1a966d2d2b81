package files

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/campusdocs/portal/internal/models"
)

const (
	dateKeyLayout    = "2006-01-02"
	undatedKeyPrefix = "undated:"
)

// DateGroup is one calendar day of uploads.
type DateGroup struct {
	Date  string                   `json:"date"`
	Files []models.FileRecordModel `json:"files"`
}

// GroupByDate buckets records by the calendar date of UploadedAt in loc.
// Groups keep the order in which their first record appears, so input
// sorted newest first yields the newest day first. Records without an
// upload time each get their own group. Within a group files are sorted
// by title, case-insensitively.
func GroupByDate(records []models.FileRecordModel, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.UTC
	}
	index := make(map[string]int)
	groups := make([]DateGroup, 0)
	for _, rec := range records {
		key := dateKey(rec, loc)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Date: key})
		}
		groups[i].Files = append(groups[i].Files, rec)
	}
	for i := range groups {
		sortByTitle(groups[i].Files)
	}
	return groups
}

func dateKey(rec models.FileRecordModel, loc *time.Location) string {
	if rec.UploadedAt.IsZero() {
		return undatedKeyPrefix + rec.ID
	}
	return rec.UploadedAt.In(loc).Format(dateKeyLayout)
}

func sortByTitle(files []models.FileRecordModel) {
	sort.SliceStable(files, func(i, j int) bool {
		ti, tj := strings.ToLower(files[i].Title), strings.ToLower(files[j].Title)
		fi, fj := firstRune(ti), firstRune(tj)
		if fi != fj {
			return fi < fj
		}
		return ti < tj
	})
}

func firstRune(s string) string {
	if s == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}
