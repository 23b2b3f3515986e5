package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("record not found")

// encodeJSONFields pre-marshals the values of serialized columns. Map-based
// Updates bypasses gorm's serializer, so values headed for a
// serializer:json column must be written as their JSON text form.
func encodeJSONFields(fields map[string]any, jsonColumns map[string]bool) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for column, value := range fields {
		if !jsonColumns[column] {
			out[column] = value
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", column, err)
		}
		out[column] = string(data)
	}
	return out, nil
}

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{DB: db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx})
	})
}
