package seenset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/bakkerme/salewatch/internal/retry"
	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps each document as a key prefix: "<document>/<sale id>" -> seen_at.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
}

func NewBadgerStore(path, document string) (*BadgerStore, error) {
	if path == "" {
		return nil, fmt.Errorf("badger path is required")
	}
	if document == "" {
		return nil, fmt.Errorf("badger document name is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger directory: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db, prefix: []byte(document + "/")}, nil
}

func (b *BadgerStore) Load(ctx context.Context) (core.SeenSet, error) {
	seen := core.SeenSet{}
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(b.prefix); it.ValidForPrefix(b.prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := string(item.Key()[len(b.prefix):])
			err := item.Value(func(val []byte) error {
				var seenAt time.Time
				if err := seenAt.UnmarshalBinary(val); err != nil {
					return fmt.Errorf("decode seen_at for %q: %w", id, err)
				}
				seen[id] = seenAt
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return seen, nil
}

func (b *BadgerStore) Merge(ctx context.Context, delta core.SeenSet) error {
	if len(delta) == 0 {
		return nil
	}
	// Existence checks register reads on the txn, so a concurrent merger of the
	// same key surfaces as ErrConflict and the whole delta is replayed.
	err := retry.Do(ctx, retry.Config{
		Attempts:    3,
		BaseDelay:   20 * time.Millisecond,
		ShouldRetry: func(err error) bool { return errors.Is(err, badger.ErrConflict) },
	}, func() error {
		return b.db.Update(func(txn *badger.Txn) error {
			return b.mergeTxn(txn, delta)
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMerge, err)
	}
	return nil
}

func (b *BadgerStore) mergeTxn(txn *badger.Txn, delta core.SeenSet) error {
	for id, seenAt := range delta {
		if id == "" {
			continue
		}
		key := append(append([]byte{}, b.prefix...), id...)
		_, err := txn.Get(key)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if seenAt.IsZero() {
			seenAt = time.Now()
		}
		val, err := seenAt.UTC().MarshalBinary()
		if err != nil {
			return err
		}
		if err := txn.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (b *BadgerStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
