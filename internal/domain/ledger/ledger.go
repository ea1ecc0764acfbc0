// Package ledger keeps the per-vehicle win statistics.
//
// A win is recorded with read-modify-write against the winner store. Writes
// for the same vehicle are serialized inside one process. Two processes
// recording a win for the same vehicle at the same time can still lose an
// update because the store offers no compare-and-swap.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/pkg/logger"
	"github.com/okian/asyncrace/pkg/metrics"
)

// Store is the persistence surface the ledger needs.
type Store interface {
	// GetWinner returns model.ErrNotFound when no record exists.
	GetWinner(ctx context.Context, id int) (model.WinnerRecord, error)
	CreateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error)
	UpdateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error)
	// DeleteWinner returns model.ErrNotFound when no record exists.
	DeleteWinner(ctx context.Context, id int) error
}

// Ledger records wins.
type Ledger struct {
	store  Store
	logger logger.Logger

	mu    sync.Mutex
	locks map[int]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		locks: make(map[int]*keyLock),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logger.Get().Named("ledger")
	}
	return l
}

// RecordWin adds one win for vehicleID and keeps the smaller of the stored
// and the new time. A vehicle without a record gets {wins: 1, time}. A read
// failure other than not-found is returned and nothing is written.
func (l *Ledger) RecordWin(ctx context.Context, vehicleID int, elapsed float64) (model.WinnerRecord, error) {
	if vehicleID <= 0 {
		return model.WinnerRecord{}, fmt.Errorf("%w: vehicle id %d", ErrInvalidWin, vehicleID)
	}
	if elapsed < 0 || math.IsNaN(elapsed) || math.IsInf(elapsed, 0) {
		return model.WinnerRecord{}, fmt.Errorf("%w: time %v", ErrInvalidWin, elapsed)
	}

	unlock := l.lock(vehicleID)
	defer unlock()

	current, err := l.store.GetWinner(ctx, vehicleID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		rec, err := l.store.CreateWinner(ctx, model.WinnerRecord{ID: vehicleID, Wins: 1, Time: elapsed})
		if err != nil {
			metrics.RecordLedgerError("create")
			return model.WinnerRecord{}, fmt.Errorf("create winner %d: %w", vehicleID, err)
		}
		metrics.RecordLedgerWrite()
		l.logger.Debug(ctx, "first win recorded", logger.Int("vehicle", vehicleID), logger.Float64("time", elapsed))
		return rec, nil
	case err != nil:
		metrics.RecordLedgerError("read")
		return model.WinnerRecord{}, fmt.Errorf("read winner %d: %w", vehicleID, err)
	}

	next := model.WinnerRecord{
		ID:   vehicleID,
		Wins: current.Wins + 1,
		Time: math.Min(current.Time, elapsed),
	}
	rec, err := l.store.UpdateWinner(ctx, next)
	if err != nil {
		metrics.RecordLedgerError("update")
		return model.WinnerRecord{}, fmt.Errorf("update winner %d: %w", vehicleID, err)
	}
	metrics.RecordLedgerWrite()
	l.logger.Debug(ctx, "win recorded",
		logger.Int("vehicle", vehicleID),
		logger.Int("wins", rec.Wins),
		logger.Float64("time", rec.Time))
	return rec, nil
}

// DeleteRecord removes the record of vehicleID. A missing record is not an
// error.
func (l *Ledger) DeleteRecord(ctx context.Context, vehicleID int) error {
	unlock := l.lock(vehicleID)
	defer unlock()

	err := l.store.DeleteWinner(ctx, vehicleID)
	if err == nil || errors.Is(err, model.ErrNotFound) {
		return nil
	}
	metrics.RecordLedgerError("delete")
	return fmt.Errorf("delete winner %d: %w", vehicleID, err)
}

func (l *Ledger) lock(id int) func() {
	l.mu.Lock()
	kl, ok := l.locks[id]
	if !ok {
		kl = &keyLock{}
		l.locks[id] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
