package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPageNo   = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Query holds parsed pagination parameters.
type Query struct {
	PageNo   int
	PageSize int
}

// Result is the wire shape every list endpoint returns inside the envelope.
type Result[T any] struct {
	List     []T   `json:"list"`
	PageNo   int   `json:"pageNo"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// FromContext extracts and validates pageNo/pageSize from the request.
func FromContext(c *gin.Context) Query {
	pageNo := parseIntOr(c.DefaultQuery("pageNo", "1"), DefaultPageNo)
	pageSize := parseIntOr(c.DefaultQuery("pageSize", "10"), DefaultPageSize)

	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return Query{PageNo: pageNo, PageSize: pageSize}
}

// Paginate applies limit/offset to a GORM query and returns the list result.
func Paginate[T any](db *gorm.DB, q Query) (Result[T], error) {
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return Result[T]{}, err
	}

	var items []T
	offset := (q.PageNo - 1) * q.PageSize
	if err := db.Offset(offset).Limit(q.PageSize).Find(&items).Error; err != nil {
		return Result[T]{}, err
	}
	if items == nil {
		items = []T{}
	}

	return Result[T]{List: items, PageNo: q.PageNo, PageSize: q.PageSize, Total: total}, nil
}

// Map converts a Result's list with fn, keeping the page metadata.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	out := Result[U]{PageNo: r.PageNo, PageSize: r.PageSize, Total: r.Total, List: make([]U, len(r.List))}
	for i, item := range r.List {
		out.List[i] = fn(item)
	}
	return out
}

// SortClause translates sort query parameters into an ORDER BY clause,
// restricted to the allowed column map. Returns fallback when the request
// names no (or an unknown) column.
func SortClause(c *gin.Context, fieldParam, orderParam string, allowed map[string]string, fallback string) string {
	col, ok := allowed[strings.TrimSpace(c.Query(fieldParam))]
	if !ok {
		return fallback
	}
	dir := "ASC"
	if strings.EqualFold(strings.TrimSpace(c.Query(orderParam)), "desc") {
		dir = "DESC"
	}
	return col + " " + dir
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
