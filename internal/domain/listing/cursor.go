// Package listing implements a page and sort cursor over a remote
// collection.
package listing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/pkg/metrics"
)

// Fetcher loads one page of a collection together with its total size.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, q model.Query) (model.Page[T], error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[T any] func(ctx context.Context, q model.Query) (model.Page[T], error)

// Fetch calls f.
func (f FetcherFunc[T]) Fetch(ctx context.Context, q model.Query) (model.Page[T], error) {
	return f(ctx, q)
}

// State is a copy of the cursor position and its current items.
type State[T any] struct {
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	LastPage int             `json:"last_page"`
	Total    int             `json:"total"`
	Sort     model.SortKey   `json:"sort,omitempty"`
	Order    model.SortOrder `json:"order,omitempty"`
	Items    []T             `json:"items"`
	HasPrev  bool            `json:"has_prev"`
	HasNext  bool            `json:"has_next"`
}

// Cursor tracks one page of a collection. Operations are serialized; a
// failed fetch leaves the previous page, total and sort untouched.
type Cursor[T any] struct {
	fetcher    Fetcher[T]
	pageSize   int
	collection string

	op sync.Mutex

	mu     sync.RWMutex
	page   int
	total  int
	loaded bool
	short  bool
	sort   model.SortKey
	order  model.SortOrder
	items  []T
}

// NewCursor creates a cursor on page 1. A pageSize below 1 is treated as 1.
func NewCursor[T any](f Fetcher[T], pageSize int, opts ...Option) *Cursor[T] {
	cfg := config{collection: "items"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return &Cursor[T]{
		fetcher:    f,
		pageSize:   pageSize,
		collection: cfg.collection,
		page:       1,
		sort:       cfg.sort,
		order:      cfg.order,
		items:      []T{},
	}
}

// Load fetches the current page.
func (c *Cursor[T]) Load(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.RLock()
	page, sort, order := c.page, c.sort, c.order
	c.mu.RUnlock()
	return c.fetchLocked(ctx, page, sort, order)
}

// GoToPage moves to page n. It does nothing and returns false when n is
// below 1 or past the last page of a known nonzero total.
func (c *Cursor[T]) GoToPage(ctx context.Context, n int) (bool, error) {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.RLock()
	total, sort, order := c.total, c.sort, c.order
	c.mu.RUnlock()

	if n < 1 || (total > 0 && n > model.LastPage(total, c.pageSize)) {
		return false, nil
	}
	if err := c.fetchLocked(ctx, n, sort, order); err != nil {
		return false, err
	}
	return true, nil
}

// Next moves forward one page when HasNext allows it.
func (c *Cursor[T]) Next(ctx context.Context) (bool, error) {
	st := c.State()
	if !st.HasNext {
		return false, nil
	}
	return c.GoToPage(ctx, st.Page+1)
}

// Prev moves back one page.
func (c *Cursor[T]) Prev(ctx context.Context) (bool, error) {
	return c.GoToPage(ctx, c.State().Page-1)
}

// SetSort flips the order when key is already the sort key. Otherwise it
// sorts by key in descending order. The current page is refetched.
func (c *Cursor[T]) SetSort(ctx context.Context, key model.SortKey) error {
	if !key.Valid() || key == model.SortNone {
		return fmt.Errorf("%w: unknown sort key %q", model.ErrInvalidQuery, key)
	}

	c.op.Lock()
	defer c.op.Unlock()

	c.mu.RLock()
	page, sort, order := c.page, c.sort, c.order
	c.mu.RUnlock()

	if key == sort {
		order = order.Flip()
	} else {
		sort, order = key, model.OrderDesc
	}
	return c.fetchLocked(ctx, page, sort, order)
}

// State returns a copy of the cursor.
func (c *Cursor[T]) State() State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	last := model.LastPage(c.total, c.pageSize)
	return State[T]{
		Page:     c.page,
		PageSize: c.pageSize,
		LastPage: last,
		Total:    c.total,
		Sort:     c.sort,
		Order:    c.order,
		Items:    append([]T(nil), c.items...),
		HasPrev:  c.page > 1,
		HasNext:  c.loaded && c.page < last && !c.short,
	}
}

// fetchLocked runs with c.op held. When the total shrank below page it
// refetches the last page once.
func (c *Cursor[T]) fetchLocked(ctx context.Context, page int, sort model.SortKey, order model.SortOrder) error {
	res, err := c.fetch(ctx, page, sort, order)
	if err != nil {
		return err
	}
	if last := model.LastPage(res.Total, c.pageSize); res.Total > 0 && page > last {
		page = last
		if res, err = c.fetch(ctx, page, sort, order); err != nil {
			return err
		}
	}

	items := res.Items
	if items == nil {
		items = []T{}
	}

	c.mu.Lock()
	c.page = page
	c.total = res.Total
	c.sort = sort
	c.order = order
	c.items = items
	c.short = len(items) < c.pageSize
	c.loaded = true
	c.mu.Unlock()
	return nil
}

func (c *Cursor[T]) fetch(ctx context.Context, page int, sort model.SortKey, order model.SortOrder) (model.Page[T], error) {
	q := model.Query{Page: page, Limit: c.pageSize, Sort: sort, Order: order}
	begin := time.Now()
	res, err := c.fetcher.Fetch(ctx, q)
	metrics.RecordCursorFetch(c.collection, float64(time.Since(begin).Milliseconds()), err)
	if err != nil {
		return model.Page[T]{}, fmt.Errorf("fetch %s page %d: %w", c.collection, page, err)
	}
	return res, nil
}
