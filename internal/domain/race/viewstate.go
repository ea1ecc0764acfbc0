package race

// Controls lists which user actions are currently allowed.
type Controls struct {
	StartRace  bool `json:"start_race"`
	Reset      bool `json:"reset"`
	EditGarage bool `json:"edit_garage"`
	Paginate   bool `json:"paginate"`
}

// ViewState derives the allowed actions from a snapshot. It holds no state
// of its own. A settled race may be started again, matching StartRace.
func ViewState(s Snapshot) Controls {
	running := s.Running()
	return Controls{
		StartRace:  !running,
		Reset:      s.Started,
		EditGarage: !running,
		Paginate:   !running,
	}
}
