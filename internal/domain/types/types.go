// Package types contains view types shared by the HTTP layer and the CLI.
package types

import (
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/internal/domain/race"
)

// WinnerEntry is a winner record joined with its vehicle for display.
type WinnerEntry struct {
	Position int     `json:"position"`
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	Wins     int     `json:"wins"`
	Time     float64 `json:"time"`
	Seconds  float64 `json:"seconds"`
}

// NewWinnerEntry builds an entry. position is 1-based across pages. A
// missing vehicle leaves name and color empty.
func NewWinnerEntry(position int, rec model.WinnerRecord, v *model.Vehicle) WinnerEntry {
	e := WinnerEntry{
		Position: position,
		ID:       rec.ID,
		Wins:     rec.Wins,
		Time:     rec.Time,
		Seconds:  rec.Seconds(),
	}
	if v != nil {
		e.Name = v.Name
		e.Color = v.Color
	}
	return e
}

// RaceView is the race state together with the allowed actions.
type RaceView struct {
	Race     race.Snapshot `json:"race"`
	Controls race.Controls `json:"controls"`
}

// NewRaceView derives the controls from snap.
func NewRaceView(snap race.Snapshot) RaceView {
	return RaceView{Race: snap, Controls: race.ViewState(snap)}
}
