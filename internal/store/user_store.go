package store

import (
	"context"
	"encoding/json"

	"registry/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStore struct{ db *gorm.DB }

func (s *Store) Users() *UserStore { return &UserStore{db: s.DB} }

func (u *UserStore) Create(ctx context.Context, usr *domain.User) error {
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	return u.db.WithContext(ctx).Create(usr).Error
}

func (u *UserStore) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var usr domain.User
	if err := u.db.WithContext(ctx).First(&usr, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &usr, nil
}

func (u *UserStore) GetByUUID(ctx context.Context, uid string) (*domain.User, error) {
	var usr domain.User
	if err := u.db.WithContext(ctx).First(&usr, "uuid = ?", uid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &usr, nil
}

// AppendAuthored records a first-publish back-reference on the author.
func (u *UserStore) AppendAuthored(ctx context.Context, id domain.UserID, pkgID domain.PackageID) error {
	usr, err := u.GetByID(ctx, id)
	if err != nil {
		return err
	}
	usr.AuthorOf = append(usr.AuthorOf, pkgID)
	encoded, err := json.Marshal(usr.AuthorOf)
	if err != nil {
		return err
	}
	return u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Update("author_of", string(encoded)).Error
}
