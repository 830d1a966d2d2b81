package pagination

import (
	"fmt"
	"strconv"

	"github.com/campusdocs/portal/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Query is one page request. The zero value means the first page at
// DefaultSize.
type Query struct {
	Page int
	Size int
}

// Normalize clamps Page to at least 1 and Size into [1, MaxSize].
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size < 1 {
		q.Size = DefaultSize
	}
	if q.Size > MaxSize {
		q.Size = MaxSize
	}
	return q
}

func (q Query) Offset() int {
	q = q.Normalize()
	return (q.Page - 1) * q.Size
}

// FromRequest reads ?page= and ?size=. Malformed values fall back to the
// defaults instead of failing the request.
func FromRequest(c *gin.Context) Query {
	return Query{
		Page: atoiOr(c.Query("page"), 1),
		Size: atoiOr(c.Query("size"), DefaultSize),
	}.Normalize()
}

// OptionalBool reads a tri-state filter such as ?sent=true. A missing or
// empty parameter yields nil.
func OptionalBool(c *gin.Context, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", key)
	}
	return &v, nil
}

// Find counts the rows matched by db and loads the requested page into dest.
// dest is left as an empty slice when nothing matches. db itself is not
// modified, so a base query can be reused.
func Find[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	q = q.Normalize()
	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return response.Pagination{}, fmt.Errorf("count: %w", err)
	}
	if total > 0 && q.Offset() < int(total) {
		if err := db.Session(&gorm.Session{}).Offset(q.Offset()).Limit(q.Size).Find(dest).Error; err != nil {
			return response.Pagination{}, fmt.Errorf("load page: %w", err)
		}
	}
	if *dest == nil {
		*dest = []T{}
	}
	pages := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   pages,
		Size:        q.Size,
		HasNextPage: q.Page < pages,
	}, nil
}

func atoiOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
