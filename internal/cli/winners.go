package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/asyncrace/internal/domain/listing"
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/internal/domain/types"
)

func newWinnersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "winners",
		Short: "Review the winners table",
	}
	cmd.AddCommand(newWinnersListCmd(e))
	return cmd
}

func newWinnersListCmd(e *env) *cobra.Command {
	var (
		page  int
		sort  string
		order string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of the winners table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, dir := model.SortKey(sort), model.SortOrder(strings.ToUpper(order))
			if !key.Valid() || key == model.SortNone {
				return fmt.Errorf("%w: sort must be wins or time", model.ErrInvalidQuery)
			}
			if !dir.Valid() {
				return fmt.Errorf("%w: order must be ASC or DESC", model.ErrInvalidQuery)
			}
			c := listing.NewCursor[model.WinnerRecord](
				listing.FetcherFunc[model.WinnerRecord](e.client.ListWinners),
				e.cfg.WinnersPageSize,
				listing.WithCollection("winners"),
				listing.WithSort(key, dir),
			)
			if err := openPage(cmd.Context(), c, page); err != nil {
				return err
			}
			st := c.State()
			entries, err := joinVehicles(cmd.Context(), e, st)
			if err != nil {
				return err
			}
			renderWinners(e.out, fmt.Sprintf("Winners (%d) page %d/%d by %s %s",
				st.Total, st.Page, st.LastPage, st.Sort, st.Order), entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().StringVar(&sort, "sort", string(model.SortWins), "sort key: wins or time")
	cmd.Flags().StringVar(&order, "order", string(model.OrderDesc), "sort order: ASC or DESC")
	return cmd
}

// joinVehicles attaches name and color to each record of the page. Records
// whose vehicle is gone keep empty fields.
func joinVehicles(ctx context.Context, e *env, st listing.State[model.WinnerRecord]) ([]types.WinnerEntry, error) {
	entries := make([]types.WinnerEntry, 0, len(st.Items))
	for i, rec := range st.Items {
		var vp *model.Vehicle
		v, err := e.client.GetVehicle(ctx, rec.ID)
		switch {
		case err == nil:
			vp = &v
		case !errors.Is(err, model.ErrNotFound):
			return nil, err
		}
		entries = append(entries, types.NewWinnerEntry((st.Page-1)*st.PageSize+i+1, rec, vp))
	}
	return entries, nil
}
