// Package repository stores vehicles and winner records in badger.
//
// Values are msgpack encoded under "<entity>/<id padded to 19 digits>" keys so a
// prefix scan yields records in id order.
package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/pkg/logger"
)

const (
	vehicleEntity = "vehicle"
	winnerEntity  = "winner"
	vehicleSeqKey = "seq/vehicle"
)

// DB owns the badger handle shared by the stores.
type DB struct {
	db        *badger.DB
	seq       *badger.Sequence
	bandwidth uint64
	logger    logger.Logger
}

// Open opens the database in dir. An empty dir keeps everything in memory.
func Open(dir string, opts ...Option) (*DB, error) {
	d := &DB{bandwidth: defaultSequenceBandwidth}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("repository")
	}

	bopts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(vehicleSeqKey), d.bandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vehicle sequence: %w", err)
	}
	d.db = db
	d.seq = seq

	d.logger.Info(context.Background(), "store opened",
		logger.String("dir", dir),
		logger.Bool("in_memory", dir == ""))
	return d, nil
}

// Close releases the sequence lease and closes badger.
func (d *DB) Close() error {
	var errs []error
	if err := d.seq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release sequence: %w", err))
	}
	if err := d.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close badger: %w", err))
	}
	return errors.Join(errs...)
}

func (d *DB) nextID() (int, error) {
	n, err := d.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next vehicle id: %w", err)
	}
	// Sequences start at zero; ids start at one.
	if n >= math.MaxInt32 {
		return 0, ErrNoSpace
	}
	return int(n) + 1, nil
}

func buildKey(entity string, id int) []byte {
	return []byte(fmt.Sprintf("%s/%019d", entity, id))
}

func prefix(entity string) []byte {
	return []byte(entity + "/")
}

func encode(v any) ([]byte, error) {
	buf, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return buf, nil
}

func get[T any](txn *badger.Txn, key []byte) (T, error) {
	var out T
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return out, model.ErrNotFound
	}
	if err != nil {
		return out, err
	}
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &out)
	})
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return out, nil
}

func put(txn *badger.Txn, key []byte, v any) error {
	buf, err := encode(v)
	if err != nil {
		return err
	}
	return txn.Set(key, buf)
}

func list[T any](txn *badger.Txn, entity string) ([]T, error) {
	var out []T
	p := prefix(entity)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &v)
		}); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
