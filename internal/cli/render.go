package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/okian/asyncrace/internal/domain/listing"
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/internal/domain/race"
	"github.com/okian/asyncrace/internal/domain/types"
)

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(header)
	return t
}

func renderVehicles(out io.Writer, st listing.State[model.Vehicle]) {
	t := newTable(out, table.Row{"ID", "Name", "Color"})
	for _, v := range st.Items {
		t.AppendRow(table.Row{v.ID, v.Name, v.Color})
	}
	t.SetCaption("Garage (%d) page %d/%d", st.Total, st.Page, st.LastPage)
	t.Render()
}

func renderWinners(out io.Writer, title string, entries []types.WinnerEntry) {
	t := newTable(out, table.Row{"No", "ID", "Name", "Color", "Wins", "Best time (s)"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Position, e.ID, e.Name, e.Color, e.Wins, fmt.Sprintf("%.2f", e.Seconds)})
	}
	t.SetCaption("%s", title)
	t.Render()
}

func renderOutcomes(out io.Writer, snap race.Snapshot, names map[int]string) {
	t := newTable(out, table.Row{"ID", "Name", "State", "Time (s)", "Error"})
	for _, task := range snap.Tasks {
		secs := ""
		if task.State == race.Finished {
			secs = fmt.Sprintf("%.2f", task.ElapsedTime/1000)
		}
		t.AppendRow(table.Row{task.VehicleID, names[task.VehicleID], task.State, secs, task.Error})
	}
	if snap.Winner != nil {
		t.SetCaption("Winner: %s (#%d) in %.2fs",
			names[snap.Winner.VehicleID], snap.Winner.VehicleID, snap.Winner.ElapsedTime/1000)
	} else {
		t.SetCaption("No winner: every vehicle broke down")
	}
	t.Render()
}
