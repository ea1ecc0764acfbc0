package repository_test

import (
	"context"
	"testing"

	"github.com/okian/asyncrace/internal/adapters/repository"
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

func openTestDB(t *testing.T) *repository.DB {
	t.Helper()
	db, err := repository.Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

func TestGarageStore(t *testing.T) {
	Convey("Given an in-memory garage", t, func() {
		db := openTestDB(t)
		defer db.Close()
		store := repository.NewGarageStore(db)
		ctx := context.Background()

		Convey("When vehicles are created", func() {
			for i := 0; i < 9; i++ {
				_, err := store.CreateVehicle(ctx, model.VehicleInput{Name: " Audi A4 ", Color: "#FF0000"})
				So(err, ShouldBeNil)
			}

			Convey("Then ids are assigned in order and names are trimmed", func() {
				v, err := store.GetVehicle(ctx, 1)
				So(err, ShouldBeNil)
				So(v.Name, ShouldEqual, "Audi A4")

				page, err := store.ListVehicles(ctx, model.Query{Page: 2, Limit: 7})
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 9)
				So(len(page.Items), ShouldEqual, 2)
				So(page.Items[0].ID, ShouldEqual, 8)
				So(page.Items[1].ID, ShouldEqual, 9)
			})

			Convey("And a vehicle is updated", func() {
				v, err := store.UpdateVehicle(ctx, 3, model.VehicleInput{Name: "BMW M5", Color: "#00FF00"})
				So(err, ShouldBeNil)
				So(v.ID, ShouldEqual, 3)
				got, _ := store.GetVehicle(ctx, 3)
				So(got.Color, ShouldEqual, "#00FF00")
			})

			Convey("And a vehicle is deleted", func() {
				So(store.DeleteVehicle(ctx, 3), ShouldBeNil)
				_, err := store.GetVehicle(ctx, 3)
				So(err, ShouldWrap, model.ErrNotFound)
				So(store.DeleteVehicle(ctx, 3), ShouldWrap, model.ErrNotFound)

				all, err := store.AllVehicles(ctx)
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 8)
			})
		})

		Convey("When the name is blank", func() {
			_, err := store.CreateVehicle(ctx, model.VehicleInput{Name: "  "})

			Convey("Then it is rejected", func() {
				So(err, ShouldWrap, model.ErrInvalidVehicle)
			})
		})

		Convey("When updating an unknown vehicle", func() {
			_, err := store.UpdateVehicle(ctx, 42, model.VehicleInput{Name: "Ford"})

			Convey("Then it is not found", func() {
				So(err, ShouldWrap, model.ErrNotFound)
			})
		})
	})
}

func TestWinnerStore(t *testing.T) {
	Convey("Given winner records", t, func() {
		db := openTestDB(t)
		defer db.Close()
		store := repository.NewWinnerStore(db)
		ctx := context.Background()

		for _, rec := range []model.WinnerRecord{
			{ID: 1, Wins: 2, Time: 5000},
			{ID: 2, Wins: 5, Time: 7000},
			{ID: 3, Wins: 2, Time: 3000},
		} {
			_, err := store.CreateWinner(ctx, rec)
			So(err, ShouldBeNil)
		}

		Convey("When sorted by wins descending", func() {
			page, err := store.ListWinners(ctx, model.Query{Page: 1, Limit: 10, Sort: model.SortWins, Order: model.OrderDesc})

			Convey("Then the most wins come first and ties keep id order", func() {
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 3)
				So(page.Items[0].ID, ShouldEqual, 2)
				So(page.Items[1].ID, ShouldEqual, 1)
				So(page.Items[2].ID, ShouldEqual, 3)
			})
		})

		Convey("When sorted by time ascending", func() {
			page, err := store.ListWinners(ctx, model.Query{Page: 1, Limit: 2, Sort: model.SortTime, Order: model.OrderAsc})

			Convey("Then the fastest come first", func() {
				So(err, ShouldBeNil)
				So(page.Items[0].ID, ShouldEqual, 3)
				So(page.Items[1].ID, ShouldEqual, 1)
			})
		})

		Convey("When an id wider than ten digits is stored", func() {
			_, err := store.CreateWinner(ctx, model.WinnerRecord{ID: 12345678901, Wins: 1, Time: 1})
			So(err, ShouldBeNil)
			_, err = store.CreateWinner(ctx, model.WinnerRecord{ID: 2000000000, Wins: 1, Time: 1})
			So(err, ShouldBeNil)
			page, err := store.ListWinners(ctx, model.Query{Page: 1, Limit: 10})

			Convey("Then the unsorted list is still in id order", func() {
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 5)
				So(page.Items[2].ID, ShouldEqual, 3)
				So(page.Items[3].ID, ShouldEqual, 2000000000)
				So(page.Items[4].ID, ShouldEqual, 12345678901)
			})
		})

		Convey("When creating an existing record", func() {
			_, err := store.CreateWinner(ctx, model.WinnerRecord{ID: 1, Wins: 1, Time: 1})

			Convey("Then it conflicts", func() {
				So(err, ShouldWrap, model.ErrConflict)
			})
		})

		Convey("When updating and deleting", func() {
			_, err := store.UpdateWinner(ctx, model.WinnerRecord{ID: 1, Wins: 3, Time: 4000})
			So(err, ShouldBeNil)
			rec, err := store.GetWinner(ctx, 1)
			So(err, ShouldBeNil)
			So(rec.Wins, ShouldEqual, 3)

			So(store.DeleteWinner(ctx, 1), ShouldBeNil)
			So(store.DeleteWinner(ctx, 1), ShouldWrap, model.ErrNotFound)
			_, err = store.UpdateWinner(ctx, model.WinnerRecord{ID: 1, Wins: 1})
			So(err, ShouldWrap, model.ErrNotFound)
		})
	})
}
