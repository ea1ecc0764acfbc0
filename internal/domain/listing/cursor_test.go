package listing_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/asyncrace/internal/domain/listing"
	"github.com/okian/asyncrace/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// source serves a slice of ints and records every query.
type source struct {
	mu      sync.Mutex
	items   []int
	total   int // reported total; defaults to len(items)
	fail    error
	queries []model.Query
}

func (s *source) Fetch(_ context.Context, q model.Query) (model.Page[int], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.fail != nil {
		return model.Page[int]{}, s.fail
	}
	total := s.total
	if total == 0 {
		total = len(s.items)
	}
	return model.Page[int]{Items: model.Paginate(s.items, q), Total: total}, nil
}

func (s *source) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestCursorPaging(t *testing.T) {
	Convey("Given a cursor over 17 items with page size 7", t, func() {
		src := &source{items: seq(17)}
		c := listing.NewCursor[int](src, 7, listing.WithCollection("garage"))
		ctx := context.Background()
		So(c.Load(ctx), ShouldBeNil)

		Convey("Then the first page is loaded", func() {
			st := c.State()
			So(st.Page, ShouldEqual, 1)
			So(st.Total, ShouldEqual, 17)
			So(st.LastPage, ShouldEqual, 3)
			So(st.Items, ShouldResemble, seq(7))
			So(st.HasPrev, ShouldBeFalse)
			So(st.HasNext, ShouldBeTrue)
		})

		Convey("When going to page 0", func() {
			calls := src.calls()
			moved, err := c.GoToPage(ctx, 0)

			Convey("Then nothing changes and nothing is fetched", func() {
				So(err, ShouldBeNil)
				So(moved, ShouldBeFalse)
				So(c.State().Page, ShouldEqual, 1)
				So(src.calls(), ShouldEqual, calls)
			})
		})

		Convey("When going past the last page", func() {
			calls := src.calls()
			moved, err := c.GoToPage(ctx, 4)

			Convey("Then nothing changes and nothing is fetched", func() {
				So(err, ShouldBeNil)
				So(moved, ShouldBeFalse)
				So(c.State().Page, ShouldEqual, 1)
				So(src.calls(), ShouldEqual, calls)
			})
		})

		Convey("When walking to the last page", func() {
			_, err := c.Next(ctx)
			So(err, ShouldBeNil)
			_, err = c.Next(ctx)
			So(err, ShouldBeNil)
			moved, err := c.Next(ctx)

			Convey("Then the last page is short and next is disabled", func() {
				So(err, ShouldBeNil)
				So(moved, ShouldBeFalse)
				st := c.State()
				So(st.Page, ShouldEqual, 3)
				So(st.Items, ShouldResemble, []int{15, 16, 17})
				So(st.HasNext, ShouldBeFalse)
				So(st.HasPrev, ShouldBeTrue)
			})
		})

		Convey("When the fetch fails", func() {
			src.fail = errors.New("backend down")
			moved, err := c.GoToPage(ctx, 2)

			Convey("Then the previous page is kept", func() {
				So(err, ShouldNotBeNil)
				So(moved, ShouldBeFalse)
				st := c.State()
				So(st.Page, ShouldEqual, 1)
				So(st.Items, ShouldResemble, seq(7))
			})
		})

		Convey("When items vanish below the current page", func() {
			_, err := c.GoToPage(ctx, 3)
			So(err, ShouldBeNil)
			src.items = seq(10)
			So(c.Load(ctx), ShouldBeNil)

			Convey("Then the cursor clamps to the new last page", func() {
				st := c.State()
				So(st.Page, ShouldEqual, 2)
				So(st.Items, ShouldResemble, []int{8, 9, 10})
			})
		})
	})

	Convey("Given a total that overcounts the items", t, func() {
		src := &source{items: seq(9), total: 30}
		c := listing.NewCursor[int](src, 7)
		ctx := context.Background()
		_, err := c.GoToPage(ctx, 2)
		So(err, ShouldBeNil)

		Convey("Then a short page disables next", func() {
			st := c.State()
			So(st.LastPage, ShouldEqual, 5)
			So(st.HasNext, ShouldBeFalse)
		})
	})

	Convey("Given an empty collection", t, func() {
		c := listing.NewCursor[int](&source{}, 7)
		So(c.Load(context.Background()), ShouldBeNil)

		Convey("Then there is one empty page", func() {
			st := c.State()
			So(st.Page, ShouldEqual, 1)
			So(st.LastPage, ShouldEqual, 1)
			So(st.Items, ShouldBeEmpty)
			So(st.HasNext, ShouldBeFalse)
		})
	})
}

func TestCursorSort(t *testing.T) {
	Convey("Given a winners cursor", t, func() {
		src := &source{items: seq(3)}
		c := listing.NewCursor[int](src, 10, listing.WithSort(model.SortWins, model.OrderDesc))
		ctx := context.Background()

		Convey("When sorting by wins twice", func() {
			So(c.SetSort(ctx, model.SortWins), ShouldBeNil)
			first := c.State().Order
			So(c.SetSort(ctx, model.SortWins), ShouldBeNil)
			second := c.State().Order

			Convey("Then each call flips the order once", func() {
				So(first, ShouldEqual, model.OrderAsc)
				So(second, ShouldEqual, model.OrderDesc)
			})
		})

		Convey("When switching to time after an ascending wins sort", func() {
			So(c.SetSort(ctx, model.SortWins), ShouldBeNil)
			So(c.State().Order, ShouldEqual, model.OrderAsc)
			So(c.SetSort(ctx, model.SortTime), ShouldBeNil)

			Convey("Then the order resets to descending", func() {
				st := c.State()
				So(st.Sort, ShouldEqual, model.SortTime)
				So(st.Order, ShouldEqual, model.OrderDesc)
			})

			Convey("And the fetch used the new sort", func() {
				q := src.queries[len(src.queries)-1]
				So(q.Sort, ShouldEqual, model.SortTime)
				So(q.Order, ShouldEqual, model.OrderDesc)
			})
		})

		Convey("When the sort fetch fails", func() {
			src.fail = errors.New("backend down")
			err := c.SetSort(ctx, model.SortTime)

			Convey("Then the sort is unchanged", func() {
				So(err, ShouldNotBeNil)
				st := c.State()
				So(st.Sort, ShouldEqual, model.SortWins)
				So(st.Order, ShouldEqual, model.OrderDesc)
			})
		})

		Convey("When the key is unknown", func() {
			err := c.SetSort(ctx, model.SortKey("color"))

			Convey("Then it is rejected", func() {
				So(err, ShouldWrap, model.ErrInvalidQuery)
			})
		})
	})
}
