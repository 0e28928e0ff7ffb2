// Package storage - bolt.go is the dryRun / no-DSN Store backend.
//
// Grounded on the bitunix-bot storage package's bucket-per-record-type
// BoltDB layout: one bucket for the open-position snapshots (keyed by
// symbol), one append-only bucket for completed trades (keyed by a
// zero-padded exit timestamp so a cursor scan returns them in order).
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/nitinkhare/intradaytrader/internal/position"
)

const (
	openPositionsBucket = "open_positions"
	completedTradesBucket = "completed_trades"
)

// BoltStore implements Store on an embedded BoltDB file.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (creating if absent) the BoltDB file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(openPositionsBucket)); err != nil {
			return fmt.Errorf("create %s bucket: %w", openPositionsBucket, err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(completedTradesBucket)); err != nil {
			return fmt.Errorf("create %s bucket: %w", completedTradesBucket, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (bs *BoltStore) SaveOpenPosition(_ context.Context, symbol string, snapshot []byte) error {
	return bs.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(openPositionsBucket)).Put([]byte(symbol), snapshot)
	})
}

func (bs *BoltStore) DeleteOpenPosition(_ context.Context, symbol string) error {
	return bs.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(openPositionsBucket)).Delete([]byte(symbol))
	})
}

func (bs *BoltStore) LoadOpenPositions(_ context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := bs.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(openPositionsBucket)).ForEach(func(k, v []byte) error {
			snapshot := make([]byte, len(v))
			copy(snapshot, v)
			out[string(k)] = snapshot
			return nil
		})
	})
	return out, err
}

func (bs *BoltStore) AppendCompletedTrade(_ context.Context, trade position.CompletedTrade) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("bolt store: marshal completed trade: %w", err)
	}
	key := tradeKey(trade.ExitTs, trade.Symbol)
	return bs.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(completedTradesBucket)).Put(key, data)
	})
}

func (bs *BoltStore) ListCompletedTrades(_ context.Context, from, to time.Time) ([]position.CompletedTrade, error) {
	var out []position.CompletedTrade
	startKey := tradeKey(from, "")
	endKey := tradeKey(to, "")
	err := bs.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(completedTradesBucket)).Cursor()
		for k, v := c.Seek(startKey); k != nil && string(k) < string(endKey); k, v = c.Next() {
			var t position.CompletedTrade
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("bolt store: unmarshal completed trade: %w", err)
			}
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

func (bs *BoltStore) DeleteCompletedTrades(_ context.Context, from, to time.Time) (int64, error) {
	startKey := tradeKey(from, "")
	endKey := tradeKey(to, "")
	var removed int64
	err := bs.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(completedTradesBucket))
		c := b.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(startKey); k != nil && string(k) < string(endKey); k, _ = c.Next() {
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			keys = append(keys, keyCopy)
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (bs *BoltStore) ClearOpenPositions(_ context.Context) (int64, error) {
	var removed int64
	err := bs.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(openPositionsBucket))
		c := b.Cursor()
		var keys [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			keys = append(keys, keyCopy)
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (bs *BoltStore) Ping(context.Context) error {
	return nil
}

func (bs *BoltStore) Close() error {
	return bs.db.Close()
}

// tradeKey zero-pads the exit timestamp so lexicographic (bbolt cursor)
// order matches chronological order.
func tradeKey(ts time.Time, symbol string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", ts.UnixNano(), symbol))
}
