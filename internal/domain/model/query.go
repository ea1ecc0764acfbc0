package model

import (
	"fmt"
	"math"
)

// SortKey names a sortable winner attribute.
type SortKey string

// Sort keys understood by the winner collection.
const (
	SortNone SortKey = ""
	SortWins SortKey = "wins"
	SortTime SortKey = "time"
)

// Valid reports whether k is a known key.
func (k SortKey) Valid() bool {
	switch k {
	case SortNone, SortWins, SortTime:
		return true
	}
	return false
}

// SortOrder is a sort direction.
type SortOrder string

// Sort directions.
const (
	OrderAsc  SortOrder = "ASC"
	OrderDesc SortOrder = "DESC"
)

// Flip returns the opposite direction.
func (o SortOrder) Flip() SortOrder {
	if o == OrderAsc {
		return OrderDesc
	}
	return OrderAsc
}

// Valid reports whether o is a known direction.
func (o SortOrder) Valid() bool {
	return o == OrderAsc || o == OrderDesc
}

// Query selects one page of a collection.
type Query struct {
	Page  int
	Limit int
	Sort  SortKey
	Order SortOrder
}

// Validate checks page and limit bounds and the sort fields.
func (q Query) Validate() error {
	switch {
	case q.Page < 1:
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidQuery, q.Page)
	case q.Limit < 1:
		return fmt.Errorf("%w: limit must be >= 1, got %d", ErrInvalidQuery, q.Limit)
	case q.Page-1 > math.MaxInt/q.Limit:
		return fmt.Errorf("%w: page %d with limit %d is out of range", ErrInvalidQuery, q.Page, q.Limit)
	case !q.Sort.Valid():
		return fmt.Errorf("%w: unknown sort key %q", ErrInvalidQuery, q.Sort)
	case q.Sort != SortNone && q.Order != "" && !q.Order.Valid():
		return fmt.Errorf("%w: unknown sort order %q", ErrInvalidQuery, q.Order)
	}
	return nil
}

// Offset returns the index of the first item on the page. It saturates at
// math.MaxInt for queries Validate rejects.
func (q Query) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Page is one page of a collection together with the collection size.
type Page[T any] struct {
	Items []T
	Total int
}

// LastPage returns ceil(total/size), or 1 when total is zero.
func LastPage(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Paginate returns the slice of items that q selects.
func Paginate[T any](items []T, q Query) []T {
	start := q.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if q.Limit > 0 && q.Limit < end-start {
		end = start + q.Limit
	}
	return items[start:end]
}
