// Package boltdb is the embedded single-file storage backend built on bbolt.
// It is the default for local runs that have no database server.
package boltdb

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"

	"equity-monitor/internal/domain"
)

var (
	bucketObservations = []byte("observations")
	bucketMetadata     = []byte("instrument_metadata")
	bucketSnapshots    = []byte("snapshots")
	bucketState        = []byte("state")

	keyWatermark = []byte("observations_watermark")
)

// DB wraps bolt.DB for dependency injection.
type DB struct {
	*bolt.DB
}

// Open opens or creates the database file at path and ensures all buckets.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketObservations, bucketMetadata, bucketSnapshots, bucketState} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db}, nil
}

// Close closes the database file.
func (d *DB) Close() error {
	return d.DB.Close()
}

func dateKey(t time.Time) []byte {
	return []byte(domain.Day(t).Format(domain.DateLayout))
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Put(key, data)
}

// optFloat maps NaN and infinities to nil so records stay JSON-encodable.
func optFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func optFloatPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return optFloat(*v)
}

func floatOr(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
