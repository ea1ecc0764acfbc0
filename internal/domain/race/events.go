package race

// EventType names a race notification.
type EventType string

// Race notifications.
const (
	EventTaskState      EventType = "task_state"
	EventWinnerDeclared EventType = "winner_declared"
	EventRaceSettled    EventType = "race_settled"
	EventRaceReset      EventType = "race_reset"
)

// Event is published to subscribers of the current session.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	VehicleID int       `json:"vehicle_id,omitempty"`
	From      State     `json:"from,omitempty"`
	State     State     `json:"state,omitempty"`
	Outcome   *Outcome  `json:"outcome,omitempty"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
}
