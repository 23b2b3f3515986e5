package store

import (
	"context"

	"registry/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NamespaceStore struct{ db *gorm.DB }

func (s *Store) Namespaces() *NamespaceStore { return &NamespaceStore{db: s.DB} }

func (n *NamespaceStore) Create(ctx context.Context, ns *domain.Namespace) error {
	if ns.ID == uuid.Nil {
		ns.ID = uuid.New()
	}
	return n.db.WithContext(ctx).Create(ns).Error
}

func (n *NamespaceStore) GetByID(ctx context.Context, id domain.NamespaceID) (*domain.Namespace, error) {
	var ns domain.Namespace
	if err := n.db.WithContext(ctx).First(&ns, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &ns, nil
}

func (n *NamespaceStore) GetByName(ctx context.Context, name string) (*domain.Namespace, error) {
	var ns domain.Namespace
	if err := n.db.WithContext(ctx).First(&ns, "name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &ns, nil
}

// GetByUploadToken finds the namespace whose token list holds the given
// opaque token value. Tokens are uuid hex, so a substring match on the
// serialized token list cannot false-positive.
func (n *NamespaceStore) GetByUploadToken(ctx context.Context, token string) (*domain.Namespace, error) {
	var ns domain.Namespace
	err := n.db.WithContext(ctx).
		First(&ns, "upload_tokens LIKE ?", `%"token":"`+token+`"%`).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &ns, nil
}

var namespaceJSONColumns = map[string]bool{
	"admins":        true,
	"maintainers":   true,
	"packages":      true,
	"upload_tokens": true,
}

// UpdateFields applies a single atomic field-set against one namespace row.
func (n *NamespaceStore) UpdateFields(ctx context.Context, id domain.NamespaceID, fields map[string]any) error {
	fields, err := encodeJSONFields(fields, namespaceJSONColumns)
	if err != nil {
		return err
	}
	return n.db.WithContext(ctx).Model(&domain.Namespace{}).
		Where("id = ?", id).
		Updates(fields).Error
}
