package model

// WinEvent asks the ledger to record one race win. EventID is the race
// session id, so a session yields at most one recorded win.
type WinEvent struct {
	EventID   string  `json:"event_id"`
	VehicleID int     `json:"vehicle_id"`
	Time      float64 `json:"time"`
}
