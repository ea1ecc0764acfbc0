package listing

import "github.com/okian/asyncrace/internal/domain/model"

type config struct {
	collection string
	sort       model.SortKey
	order      model.SortOrder
}

// Option configures a Cursor.
type Option func(*config)

// WithSort sets the initial sort.
func WithSort(key model.SortKey, order model.SortOrder) Option {
	return func(c *config) {
		c.sort = key
		c.order = order
	}
}

// WithCollection names the collection in errors and metrics.
func WithCollection(name string) Option {
	return func(c *config) {
		if name != "" {
			c.collection = name
		}
	}
}
