package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/okian/asyncrace/internal/domain/model"
)

// GarageStore keeps vehicles.
type GarageStore struct {
	db *DB
}

// NewGarageStore creates a vehicle store on db.
func NewGarageStore(db *DB) *GarageStore {
	return &GarageStore{db: db}
}

// ListVehicles returns one page of vehicles in id order. Sort fields are
// ignored.
func (s *GarageStore) ListVehicles(ctx context.Context, q model.Query) (model.Page[model.Vehicle], error) {
	if err := checkCtx(ctx); err != nil {
		return model.Page[model.Vehicle]{}, err
	}
	if err := q.Validate(); err != nil {
		return model.Page[model.Vehicle]{}, err
	}
	var all []model.Vehicle
	err := s.db.db.View(func(txn *badger.Txn) error {
		var err error
		all, err = list[model.Vehicle](txn, vehicleEntity)
		return err
	})
	if err != nil {
		return model.Page[model.Vehicle]{}, fmt.Errorf("list vehicles: %w", err)
	}
	return model.Page[model.Vehicle]{Items: model.Paginate(all, q), Total: len(all)}, nil
}

// AllVehicles returns every vehicle in id order.
func (s *GarageStore) AllVehicles(ctx context.Context) ([]model.Vehicle, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var all []model.Vehicle
	err := s.db.db.View(func(txn *badger.Txn) error {
		var err error
		all, err = list[model.Vehicle](txn, vehicleEntity)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return all, nil
}

// GetVehicle returns model.ErrNotFound for an unknown id.
func (s *GarageStore) GetVehicle(ctx context.Context, id int) (model.Vehicle, error) {
	if err := checkCtx(ctx); err != nil {
		return model.Vehicle{}, err
	}
	var v model.Vehicle
	err := s.db.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = get[model.Vehicle](txn, buildKey(vehicleEntity, id))
		return err
	})
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("get vehicle %d: %w", id, err)
	}
	return v, nil
}

// CreateVehicle stores a vehicle under a fresh id.
func (s *GarageStore) CreateVehicle(ctx context.Context, in model.VehicleInput) (model.Vehicle, error) {
	if err := checkCtx(ctx); err != nil {
		return model.Vehicle{}, err
	}
	in, err := in.Normalize()
	if err != nil {
		return model.Vehicle{}, err
	}
	id, err := s.db.nextID()
	if err != nil {
		return model.Vehicle{}, err
	}
	v := model.Vehicle{ID: id, Name: in.Name, Color: in.Color}
	err = s.db.db.Update(func(txn *badger.Txn) error {
		return put(txn, buildKey(vehicleEntity, id), v)
	})
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("create vehicle: %w", err)
	}
	return v, nil
}

// UpdateVehicle replaces name and color of an existing vehicle.
func (s *GarageStore) UpdateVehicle(ctx context.Context, id int, in model.VehicleInput) (model.Vehicle, error) {
	if err := checkCtx(ctx); err != nil {
		return model.Vehicle{}, err
	}
	in, err := in.Normalize()
	if err != nil {
		return model.Vehicle{}, err
	}
	v := model.Vehicle{ID: id, Name: in.Name, Color: in.Color}
	err = s.db.db.Update(func(txn *badger.Txn) error {
		if _, err := get[model.Vehicle](txn, buildKey(vehicleEntity, id)); err != nil {
			return err
		}
		return put(txn, buildKey(vehicleEntity, id), v)
	})
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("update vehicle %d: %w", id, err)
	}
	return v, nil
}

// DeleteVehicle removes a vehicle. It returns model.ErrNotFound for an
// unknown id.
func (s *GarageStore) DeleteVehicle(ctx context.Context, id int) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	err := s.db.db.Update(func(txn *badger.Txn) error {
		key := buildKey(vehicleEntity, id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return model.ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete vehicle %d: %w", id, err)
	}
	return nil
}
