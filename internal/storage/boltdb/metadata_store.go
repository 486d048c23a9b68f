package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

type metadataRecord struct {
	DisplayName   string    `json:"display_name"`
	Sector        string    `json:"sector"`
	Industry      string    `json:"industry"`
	SubIndustry   string    `json:"sub_industry"`
	Description   string    `json:"description"`
	Tags          string    `json:"tags"`
	LastRefreshed time.Time `json:"last_refreshed"`
}

// MetadataStore implements storage.MetadataStore on a bolt bucket.
type MetadataStore struct {
	db *DB
}

// NewMetadataStore creates a new MetadataStore.
func NewMetadataStore(db *DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// Compile-time interface check.
var _ storage.MetadataStore = (*MetadataStore)(nil)

// ReplaceAll swaps the bucket contents in one transaction.
func (s *MetadataStore) ReplaceAll(_ context.Context, rows []domain.InstrumentMetadata) error {
	for _, m := range rows {
		if m.Instrument == "" {
			return storage.ErrInvalidInput
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketMetadata); err != nil {
			return fmt.Errorf("clear instrument metadata: %w", err)
		}
		b, err := tx.CreateBucket(bucketMetadata)
		if err != nil {
			return fmt.Errorf("recreate instrument metadata: %w", err)
		}
		for _, m := range rows {
			if err := putJSON(b, []byte(m.Instrument), toMetadataRecord(m)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetAll returns all rows ordered by instrument.
func (s *MetadataStore) GetAll(_ context.Context) ([]domain.InstrumentMetadata, error) {
	var out []domain.InstrumentMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMetadata).ForEach(func(k, v []byte) error {
			m, err := decodeMetadata(k, v)
			if err != nil {
				return err
			}
			out = append(out, m)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get all instrument metadata: %w", err)
	}
	return out, nil
}

// Get returns one row. Returns ErrNotFound if not exists.
func (s *MetadataStore) Get(_ context.Context, instrument string) (*domain.InstrumentMetadata, error) {
	var m domain.InstrumentMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMetadata).Get([]byte(instrument))
		if v == nil {
			return storage.ErrNotFound
		}
		var err error
		m, err = decodeMetadata([]byte(instrument), v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetTags overwrites the tags of one row. Returns ErrNotFound if not exists.
func (s *MetadataStore) SetTags(_ context.Context, instrument string, tags domain.Tags) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMetadata)
		key := []byte(instrument)
		v := b.Get(key)
		if v == nil {
			return storage.ErrNotFound
		}
		var rec metadataRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("decode instrument metadata %s: %w", instrument, err)
		}
		rec.Tags = tags.String()
		return putJSON(b, key, rec)
	})
}

func toMetadataRecord(m domain.InstrumentMetadata) metadataRecord {
	return metadataRecord{
		DisplayName:   m.DisplayName,
		Sector:        m.Sector,
		Industry:      m.Industry,
		SubIndustry:   m.SubIndustry,
		Description:   m.Description,
		Tags:          m.Tags.String(),
		LastRefreshed: m.LastRefreshed,
	}
}

func decodeMetadata(k, v []byte) (domain.InstrumentMetadata, error) {
	var rec metadataRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return domain.InstrumentMetadata{}, fmt.Errorf("decode instrument metadata %s: %w", k, err)
	}
	return domain.InstrumentMetadata{
		Instrument:    string(k),
		DisplayName:   rec.DisplayName,
		Sector:        rec.Sector,
		Industry:      rec.Industry,
		SubIndustry:   rec.SubIndustry,
		Description:   rec.Description,
		Tags:          domain.ParseTags(rec.Tags),
		LastRefreshed: rec.LastRefreshed,
	}, nil
}
