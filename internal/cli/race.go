package cli

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/okian/asyncrace/internal/domain/ledger"
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/internal/domain/race"
	"github.com/okian/asyncrace/pkg/logger"
)

func newRaceCmd(e *env) *cobra.Command {
	var (
		page  int
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "race",
		Short: "Race every vehicle on a garage page and record the winner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRace(cmd.Context(), e, page, quiet)
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "garage page to race")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print state changes")
	return cmd
}

// runRace drives the engines of one garage page through the remote engine
// endpoint and writes the winner to the remote winners collection.
func runRace(ctx context.Context, e *env, page int, quiet bool) error {
	c := garageCursor(e)
	if err := openPage(ctx, c, page); err != nil {
		return err
	}
	st := c.State()
	names := lo.SliceToMap(st.Items, func(v model.Vehicle) (int, string) { return v.ID, v.Name })
	ids := lo.Map(st.Items, func(v model.Vehicle, _ int) int { return v.ID })

	orch := race.New(e.client, race.WithLogger(e.log))
	events, cancel := orch.Subscribe()
	defer cancel()

	session, err := orch.StartRace(ctx, ids)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "race %s started with %d vehicles\n", session.ID(), len(ids))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Type == race.EventRaceSettled {
				return
			}
			if quiet || ev.Type != race.EventTaskState {
				continue
			}
			fmt.Fprintf(e.out, "  #%d %s: %s -> %s\n", ev.VehicleID, names[ev.VehicleID], ev.From, ev.State)
		}
	}()

	if err := session.Wait(ctx); err != nil {
		for _, id := range ids {
			_ = e.client.Stop(context.WithoutCancel(ctx), id)
		}
		return err
	}
	cancel()
	<-done

	if w, ok := session.Winner(); ok {
		rec, err := ledger.New(e.client, ledger.WithLogger(e.log)).RecordWin(ctx, w.VehicleID, w.ElapsedTime)
		if err != nil {
			return fmt.Errorf("record winner %d: %w", w.VehicleID, err)
		}
		e.log.Debug(ctx, "winner recorded", logger.Int("vehicle", rec.ID), logger.Int("wins", rec.Wins))
	}
	renderOutcomes(e.out, session.Snapshot(), names)
	return nil
}
