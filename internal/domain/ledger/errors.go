package ledger

import "errors"

// ErrInvalidWin rejects a win with a bad vehicle id or time.
var ErrInvalidWin = errors.New("invalid win")
