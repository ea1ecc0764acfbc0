package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v3"

	"github.com/okian/asyncrace/internal/domain/model"
)

// WinnerStore keeps winner records.
type WinnerStore struct {
	db *DB
}

// NewWinnerStore creates a winner store on db.
func NewWinnerStore(db *DB) *WinnerStore {
	return &WinnerStore{db: db}
}

// ListWinners returns one page of records sorted by q. Equal keys keep id
// order; no sort key means id order.
func (s *WinnerStore) ListWinners(ctx context.Context, q model.Query) (model.Page[model.WinnerRecord], error) {
	if err := checkCtx(ctx); err != nil {
		return model.Page[model.WinnerRecord]{}, err
	}
	if err := q.Validate(); err != nil {
		return model.Page[model.WinnerRecord]{}, err
	}
	var all []model.WinnerRecord
	err := s.db.db.View(func(txn *badger.Txn) error {
		var err error
		all, err = list[model.WinnerRecord](txn, winnerEntity)
		return err
	})
	if err != nil {
		return model.Page[model.WinnerRecord]{}, fmt.Errorf("list winners: %w", err)
	}
	sortWinners(all, q.Sort, q.Order)
	return model.Page[model.WinnerRecord]{Items: model.Paginate(all, q), Total: len(all)}, nil
}

func sortWinners(recs []model.WinnerRecord, key model.SortKey, order model.SortOrder) {
	var by func(a, b model.WinnerRecord) int
	switch key {
	case model.SortWins:
		by = func(a, b model.WinnerRecord) int { return cmp.Compare(a.Wins, b.Wins) }
	case model.SortTime:
		by = func(a, b model.WinnerRecord) int { return cmp.Compare(a.Time, b.Time) }
	default:
		return
	}
	slices.SortStableFunc(recs, func(a, b model.WinnerRecord) int {
		if order == model.OrderDesc {
			return by(b, a)
		}
		return by(a, b)
	})
}

// GetWinner returns model.ErrNotFound when the vehicle has no record.
func (s *WinnerStore) GetWinner(ctx context.Context, id int) (model.WinnerRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return model.WinnerRecord{}, err
	}
	var rec model.WinnerRecord
	err := s.db.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = get[model.WinnerRecord](txn, buildKey(winnerEntity, id))
		return err
	})
	if err != nil {
		return model.WinnerRecord{}, fmt.Errorf("get winner %d: %w", id, err)
	}
	return rec, nil
}

// CreateWinner stores a new record. It returns model.ErrConflict when one
// exists.
func (s *WinnerStore) CreateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return model.WinnerRecord{}, err
	}
	if rec.ID <= 0 {
		return model.WinnerRecord{}, fmt.Errorf("%w: winner id %d", model.ErrInvalidQuery, rec.ID)
	}
	err := s.db.db.Update(func(txn *badger.Txn) error {
		key := buildKey(winnerEntity, rec.ID)
		if _, err := txn.Get(key); err == nil {
			return model.ErrConflict
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return put(txn, key, rec)
	})
	if err != nil {
		return model.WinnerRecord{}, fmt.Errorf("create winner %d: %w", rec.ID, err)
	}
	return rec, nil
}

// UpdateWinner replaces an existing record.
func (s *WinnerStore) UpdateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return model.WinnerRecord{}, err
	}
	err := s.db.db.Update(func(txn *badger.Txn) error {
		key := buildKey(winnerEntity, rec.ID)
		if _, err := get[model.WinnerRecord](txn, key); err != nil {
			return err
		}
		return put(txn, key, rec)
	})
	if err != nil {
		return model.WinnerRecord{}, fmt.Errorf("update winner %d: %w", rec.ID, err)
	}
	return rec, nil
}

// DeleteWinner returns model.ErrNotFound when the vehicle has no record.
func (s *WinnerStore) DeleteWinner(ctx context.Context, id int) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	err := s.db.db.Update(func(txn *badger.Txn) error {
		key := buildKey(winnerEntity, id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return model.ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete winner %d: %w", id, err)
	}
	return nil
}
