package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

// keySep separates instrument and date in observation keys, so byte order
// of keys equals (instrument, date) order.
const keySep = 0x00

type observationRecord struct {
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// ObservationStore implements storage.ObservationStore on a bolt bucket.
type ObservationStore struct {
	db *DB
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(db *DB) *ObservationStore {
	return &ObservationStore{db: db}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

func observationKey(instrument string, date time.Time) []byte {
	k := make([]byte, 0, len(instrument)+1+len(domain.DateLayout))
	k = append(k, instrument...)
	k = append(k, keySep)
	return append(k, dateKey(date)...)
}

func splitObservationKey(k []byte) (string, time.Time, error) {
	i := bytes.IndexByte(k, keySep)
	if i < 0 {
		return "", time.Time{}, fmt.Errorf("malformed observation key %q", k)
	}
	d, err := domain.ParseDate(string(k[i+1:]))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("malformed observation key %q: %w", k, err)
	}
	return string(k[:i]), d, nil
}

// Upsert writes observations in one transaction, last write wins.
func (s *ObservationStore) Upsert(_ context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	if err := storage.ValidateObservations(obs); err != nil {
		return err
	}
	for _, o := range obs {
		if o.Close.IsNegative() || bytes.IndexByte([]byte(o.Instrument), keySep) >= 0 {
			return storage.ErrInvalidInput
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketObservations)
		state := tx.Bucket(bucketState)

		watermark := append([]byte(nil), state.Get(keyWatermark)...)
		for _, o := range obs {
			rec := observationRecord{Close: o.Close, Volume: o.Volume}
			if err := putJSON(b, observationKey(o.Instrument, o.Date), rec); err != nil {
				return fmt.Errorf("upsert observation: %w", err)
			}
			if dk := dateKey(o.Date); bytes.Compare(dk, watermark) > 0 {
				watermark = dk
			}
		}
		return state.Put(keyWatermark, watermark)
	})
}

// All returns every observation ordered by (instrument, date).
func (s *ObservationStore) All(_ context.Context) ([]domain.Observation, error) {
	var out []domain.Observation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketObservations).ForEach(func(k, v []byte) error {
			o, err := decodeObservation(k, v)
			if err != nil {
				return err
			}
			out = append(out, o)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get all observations: %w", err)
	}
	return out, nil
}

// ByInstrument returns observations for one instrument ordered by date.
func (s *ObservationStore) ByInstrument(_ context.Context, instrument string) ([]domain.Observation, error) {
	prefix := append([]byte(instrument), keySep)

	var out []domain.Observation
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketObservations).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			o, err := decodeObservation(k, v)
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get observations by instrument: %w", err)
	}
	return out, nil
}

// LatestDate returns the maximum date ever written.
func (s *ObservationStore) LatestDate(_ context.Context) (time.Time, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketState).Get(keyWatermark); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get latest observation date: %w", err)
	}
	if len(raw) == 0 {
		return time.Time{}, false, nil
	}
	d, err := domain.ParseDate(string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse watermark %q: %w", raw, err)
	}
	return d, true, nil
}

// Instruments returns the distinct instruments in the store, sorted.
func (s *ObservationStore) Instruments(_ context.Context) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketObservations).Cursor()
		for k, _ := c.First(); k != nil; {
			i := bytes.IndexByte(k, keySep)
			if i < 0 {
				return fmt.Errorf("malformed observation key %q", k)
			}
			out = append(out, string(k[:i]))
			// Jump past every key of this instrument.
			k, _ = c.Seek(append(append([]byte(nil), k[:i]...), keySep+1))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	return out, nil
}

func decodeObservation(k, v []byte) (domain.Observation, error) {
	inst, d, err := splitObservationKey(k)
	if err != nil {
		return domain.Observation{}, err
	}
	var rec observationRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return domain.Observation{}, fmt.Errorf("decode observation %q: %w", k, err)
	}
	return domain.Observation{Date: d, Instrument: inst, Close: rec.Close, Volume: rec.Volume}, nil
}
