package service

import (
	"context"
	"errors"
	"fmt"

	"registry/internal/authz"
	"registry/internal/domain"
	"registry/internal/store"
)

func (s *Service) requireAdmin(ctx context.Context, principalUUID string) (*domain.User, error) {
	user, err := s.store.Users().GetByUUID(ctx, principalUUID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	if !authz.CanDelete(user.Roles) {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// DeletePackage removes a package record entirely. Admin role only.
func (s *Service) DeletePackage(ctx context.Context, namespaceName, packageName, principalUUID string) error {
	if _, err := s.requireAdmin(ctx, principalUUID); err != nil {
		return err
	}

	ns, err := s.store.Namespaces().GetByName(ctx, namespaceName)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return fmt.Errorf("%w: namespace", ErrNotFound)
		}
		return err
	}

	deleted, err := s.store.Packages().Delete(ctx, packageName, ns.ID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%w: package", ErrNotFound)
	}
	return nil
}

// DeletePackageVersion pulls one version out of a package's version list.
// Admin role only.
func (s *Service) DeletePackageVersion(ctx context.Context, namespaceName, packageName, version, principalUUID string) error {
	if _, err := s.requireAdmin(ctx, principalUUID); err != nil {
		return err
	}

	ns, err := s.store.Namespaces().GetByName(ctx, namespaceName)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return fmt.Errorf("%w: namespace", ErrNotFound)
		}
		return err
	}
	pkg, err := s.store.Packages().GetByNameAndNamespace(ctx, packageName, ns.ID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return fmt.Errorf("%w: package", ErrNotFound)
		}
		return err
	}

	kept := pkg.Versions[:0:0]
	for _, v := range pkg.Versions {
		if v.Version != version {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(pkg.Versions) {
		return fmt.Errorf("%w: version", ErrNotFound)
	}

	return s.store.Packages().UpdateFields(ctx, pkg.Name, pkg.Namespace, map[string]any{
		"versions":   kept,
		"updated_at": s.now(),
	})
}

// UnviewedReport is one pending malicious report joined with reporter,
// package and namespace names.
type UnviewedReport struct {
	Reporter  string `json:"name"`
	Reason    string `json:"reason"`
	Package   string `json:"package"`
	Namespace string `json:"namespace"`
}

// ListUnviewedReports returns every report no admin has viewed yet. Admin
// role only.
func (s *Service) ListUnviewedReports(ctx context.Context, principalUUID string) ([]UnviewedReport, error) {
	if _, err := s.requireAdmin(ctx, principalUUID); err != nil {
		return nil, err
	}

	pkgs, err := s.store.Packages().ListUnviewedReports(ctx)
	if err != nil {
		return nil, err
	}

	var reports []UnviewedReport
	for _, pkg := range pkgs {
		for userID, report := range pkg.MaliciousReport.Users {
			if report.IsViewed {
				continue
			}
			reporter := userID
			if uid, err := domain.ParseID(userID); err == nil {
				if u, err := s.store.Users().GetByID(ctx, uid); err == nil {
					reporter = u.Username
				}
			}
			reports = append(reports, UnviewedReport{
				Reporter:  reporter,
				Reason:    report.Reason,
				Package:   pkg.Name,
				Namespace: pkg.NamespaceName,
			})
		}
	}
	return reports, nil
}
