// Package blob is a content-addressed archive store. Object ids are sha256
// digests of the stored bytes; each object carries total and per-day
// download counters on its metadata record.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/opencontainers/go-digest"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("blob not found")

type Downloads struct {
	Total int            `json:"total_downloads"`
	Dates map[string]int `json:"dates"`
}

type Blob struct {
	OID         string    `gorm:"column:oid;primaryKey" json:"oid"`
	Key         string    `gorm:"uniqueIndex:ux_blobs_key" json:"key"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Data        []byte    `gorm:"type:blob" json:"-"`
	Downloads   Downloads `gorm:"serializer:json;type:text" json:"downloads_stats"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (Blob) TableName() string { return "blobs" }

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

// Put stores archive bytes under the deterministic key and returns the
// content-addressed object id. Re-putting identical content is a no-op that
// returns the same id.
func (s *Store) Put(ctx context.Context, key, filename, contentType string, data []byte) (string, error) {
	oid := digest.FromBytes(data).Encoded()

	var existing Blob
	err := s.db.WithContext(ctx).First(&existing, "oid = ?", oid).Error
	if err == nil {
		return oid, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", err
	}

	b := Blob{
		OID:         oid,
		Key:         key,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
		Downloads:   Downloads{Dates: map[string]int{}},
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return "", err
	}
	return oid, nil
}

// Get reads a blob without touching its counters. The verification sweep
// uses this path.
func (s *Store) Get(ctx context.Context, oid string) (*Blob, error) {
	var b Blob
	if err := s.db.WithContext(ctx).First(&b, "oid = ?", oid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Fetch reads a blob for serving and increments its total and per-UTC-day
// download counters. Counter success is coupled to response success: if the
// increment modifies no record, no body is returned.
func (s *Store) Fetch(ctx context.Context, oid string) (*Blob, error) {
	var b *Blob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Blob
		if err := tx.First(&row, "oid = ?", oid).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		day := time.Now().UTC().Format("2006-01-02")
		row.Downloads.Total++
		if row.Downloads.Dates == nil {
			row.Downloads.Dates = map[string]int{}
		}
		row.Downloads.Dates[day]++

		// map/column updates bypass the serializer, so counters are
		// written in their JSON text form
		encoded, err := json.Marshal(row.Downloads)
		if err != nil {
			return err
		}
		res := tx.Model(&Blob{}).Where("oid = ?", oid).Update("downloads", string(encoded))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		b = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
