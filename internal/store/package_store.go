package store

import (
	"context"

	"registry/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PackageStore struct{ db *gorm.DB }

func (s *Store) Packages() *PackageStore { return &PackageStore{db: s.DB} }

func (p *PackageStore) Create(ctx context.Context, pkg *domain.Package) error {
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	return p.db.WithContext(ctx).Create(pkg).Error
}

func (p *PackageStore) GetByID(ctx context.Context, id domain.PackageID) (*domain.Package, error) {
	var pkg domain.Package
	if err := p.db.WithContext(ctx).First(&pkg, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

// GetByNameAndNamespace looks a package up by its unique (name, namespace) pair.
func (p *PackageStore) GetByNameAndNamespace(ctx context.Context, name string, nsID domain.NamespaceID) (*domain.Package, error) {
	var pkg domain.Package
	if err := p.db.WithContext(ctx).First(&pkg, "name = ? AND namespace = ?", name, nsID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

// GetByNameAndNamespaceName resolves through the denormalized namespace_name cache.
func (p *PackageStore) GetByNameAndNamespaceName(ctx context.Context, name, namespaceName string) (*domain.Package, error) {
	var pkg domain.Package
	if err := p.db.WithContext(ctx).First(&pkg, "name = ? AND namespace_name = ?", name, namespaceName).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

// ListWithUnverifiedVersions selects every package holding at least one
// version with isVerified == false. The version list is a serialized JSON
// column, so the predicate matches on the encoded flag.
func (p *PackageStore) ListWithUnverifiedVersions(ctx context.Context) ([]domain.Package, error) {
	var pkgs []domain.Package
	err := p.db.WithContext(ctx).
		Where(`versions LIKE ?`, `%"isVerified":false%`).
		Find(&pkgs).Error
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

// ListUnviewedReports returns packages carrying a malicious report that no
// admin has viewed yet.
func (p *PackageStore) ListUnviewedReports(ctx context.Context) ([]domain.Package, error) {
	var pkgs []domain.Package
	err := p.db.WithContext(ctx).
		Where(`malicious_report LIKE ?`, `%"isViewed":false%`).
		Find(&pkgs).Error
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

var packageJSONColumns = map[string]bool{
	"maintainers":      true,
	"keywords":         true,
	"categories":       true,
	"versions":         true,
	"ratings":          true,
	"malicious_report": true,
}

// UpdateFields applies a single atomic field-set keyed by (name, namespace).
func (p *PackageStore) UpdateFields(ctx context.Context, name string, nsID domain.NamespaceID, fields map[string]any) error {
	fields, err := encodeJSONFields(fields, packageJSONColumns)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Model(&domain.Package{}).
		Where("name = ? AND namespace = ?", name, nsID).
		Updates(fields).Error
}

func (p *PackageStore) Delete(ctx context.Context, name string, nsID domain.NamespaceID) (int64, error) {
	res := p.db.WithContext(ctx).
		Where("name = ? AND namespace = ?", name, nsID).
		Delete(&domain.Package{})
	return res.RowsAffected, res.Error
}
