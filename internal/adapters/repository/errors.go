package repository

import "errors"

// Sentinel kinds for store errors. Absent records are reported with
// model.ErrNotFound.
var (
	ErrClosed  = errors.New("store closed")
	ErrEncode  = errors.New("encode record")
	ErrDecode  = errors.New("decode record")
	ErrNoSpace = errors.New("vehicle id sequence exhausted")
)
