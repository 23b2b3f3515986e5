package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"registry/internal/authz"
	"registry/internal/domain"
	"registry/internal/store"
)

// PackageView is the read model for one package: latest version, history,
// rating summary and per-blob download stats.
type PackageView struct {
	Name                string                 `json:"name"`
	Namespace           string                 `json:"namespace"`
	Author              string                 `json:"author"`
	License             string                 `json:"license"`
	Description         string                 `json:"description"`
	RegistryDescription string                 `json:"registry_description"`
	Keywords            []string               `json:"keywords"`
	Categories          []string               `json:"categories"`
	LatestVersion       domain.Version         `json:"latest_version_data"`
	VersionHistory      []domain.Version       `json:"version_history"`
	Ratings             float64                `json:"ratings"`
	RatingsCount        map[string]int         `json:"ratings_count"`
	Downloads           map[string]any         `json:"downloads"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// GetPackage resolves a package through the denormalized namespace-name
// cache and assembles its read model.
func (s *Service) GetPackage(ctx context.Context, namespaceName, packageName string) (*PackageView, error) {
	pkg, err := s.store.Packages().GetByNameAndNamespaceName(ctx, packageName, namespaceName)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: package", ErrNotFound)
		}
		return nil, err
	}
	if len(pkg.Versions) == 0 {
		return nil, fmt.Errorf("%w: package has no versions", ErrNotFound)
	}

	authorName := ""
	if author, err := s.store.Users().GetByID(ctx, pkg.Author); err == nil {
		authorName = author.Username
	}

	var avg float64
	if n := len(pkg.Ratings.Users); n > 0 {
		sum := 0
		for _, r := range pkg.Ratings.Users {
			sum += r
		}
		avg = float64(sum) / float64(n)
	}

	downloads := map[string]any{"total_downloads": 0, "versions": map[string]int{}, "dates": map[string]map[string]int{}}
	total := 0
	perVersion := map[string]int{}
	perDate := map[string]map[string]int{}
	for _, v := range pkg.Versions {
		b, err := s.blobs.Get(ctx, v.OID)
		if err != nil {
			continue
		}
		perVersion[v.OID] = b.Downloads.Total
		total += b.Downloads.Total
		for day, n := range b.Downloads.Dates {
			if perDate[day] == nil {
				perDate[day] = map[string]int{}
			}
			perDate[day][v.OID] = n
			perDate[day]["total_downloads"] += n
		}
	}
	downloads["total_downloads"] = total
	downloads["versions"] = perVersion
	downloads["dates"] = perDate

	return &PackageView{
		Name:                pkg.Name,
		Namespace:           pkg.NamespaceName,
		Author:              authorName,
		License:             pkg.License,
		Description:         pkg.Description,
		RegistryDescription: pkg.RegistryDescription,
		Keywords:            pkg.Keywords,
		Categories:          pkg.Categories,
		LatestVersion:       pkg.Versions[len(pkg.Versions)-1],
		VersionHistory:      pkg.Versions,
		Ratings:             avg,
		RatingsCount:        pkg.Ratings.Counts,
		Downloads:           downloads,
		CreatedAt:           pkg.CreatedAt,
		UpdatedAt:           pkg.UpdatedAt,
	}, nil
}

// VersionView is the read model for a single recorded version.
type VersionView struct {
	Name        string         `json:"name"`
	Namespace   string         `json:"namespace"`
	Author      string         `json:"author"`
	License     string         `json:"license"`
	Description string         `json:"description"`
	Keywords    []string       `json:"keywords"`
	Categories  []string       `json:"categories"`
	VersionData domain.Version `json:"version_data"`
}

// GetPackageVersion returns one version of a package.
func (s *Service) GetPackageVersion(ctx context.Context, namespaceName, packageName, version string) (*VersionView, error) {
	pkg, err := s.store.Packages().GetByNameAndNamespaceName(ctx, packageName, namespaceName)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: package", ErrNotFound)
		}
		return nil, err
	}
	v, ok := pkg.VersionNamed(version)
	if !ok {
		return nil, fmt.Errorf("%w: version", ErrNotFound)
	}

	authorName := ""
	if author, err := s.store.Users().GetByID(ctx, pkg.Author); err == nil {
		authorName = author.Username
	}

	return &VersionView{
		Name:        pkg.Name,
		Namespace:   pkg.NamespaceName,
		Author:      authorName,
		License:     pkg.License,
		Description: pkg.Description,
		Keywords:    pkg.Keywords,
		Categories:  pkg.Categories,
		VersionData: v,
	}, nil
}

// MaintainerView is one entry of a package's maintainer listing.
type MaintainerView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ListMaintainers returns the package's maintainer set with usernames
// resolved.
func (s *Service) ListMaintainers(ctx context.Context, namespaceName, packageName string) ([]MaintainerView, error) {
	ns, err := s.store.Namespaces().GetByName(ctx, namespaceName)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: namespace", ErrNotFound)
		}
		return nil, err
	}
	pkg, err := s.store.Packages().GetByNameAndNamespace(ctx, packageName, ns.ID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: package", ErrNotFound)
		}
		return nil, err
	}

	views := make([]MaintainerView, 0, len(pkg.Maintainers))
	for _, id := range pkg.Maintainers {
		view := MaintainerView{ID: domain.CanonicalID(id)}
		if u, err := s.store.Users().GetByID(ctx, id); err == nil {
			view.Username = u.Username
		}
		views = append(views, view)
	}
	return views, nil
}

// VerifyUserRole reports whether the caller holds any mutating role on the
// package (namespace admin/maintainer or package maintainer).
func (s *Service) VerifyUserRole(ctx context.Context, namespaceName, packageName, principalUUID string) (bool, error) {
	user, err := s.store.Users().GetByUUID(ctx, principalUUID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return false, ErrUnauthorized
		}
		return false, err
	}
	ns, err := s.store.Namespaces().GetByName(ctx, namespaceName)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: namespace", ErrNotFound)
		}
		return false, err
	}
	pkg, err := s.store.Packages().GetByNameAndNamespace(ctx, packageName, ns.ID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: package", ErrNotFound)
		}
		return false, err
	}
	return authz.CanMutatePackage(user.ID, ns, pkg), nil
}
