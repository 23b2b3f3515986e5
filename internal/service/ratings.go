package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"registry/internal/domain"
	"registry/internal/store"
)

func (s *Service) loadUserAndPackage(ctx context.Context, namespaceName, packageName, principalUUID string) (*domain.User, *domain.Package, error) {
	user, err := s.store.Users().GetByUUID(ctx, principalUUID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, nil, err
	}
	ns, err := s.store.Namespaces().GetByName(ctx, namespaceName)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: namespace", ErrNotFound)
		}
		return nil, nil, err
	}
	pkg, err := s.store.Packages().GetByNameAndNamespace(ctx, packageName, ns.ID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: package", ErrNotFound)
		}
		return nil, nil, err
	}
	return user, pkg, nil
}

// RatePackage records or replaces the caller's 1..5 rating and recomputes
// the per-value counts.
func (s *Service) RatePackage(ctx context.Context, namespaceName, packageName, principalUUID string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating should be between 1 and 5", ErrValidation)
	}

	user, pkg, err := s.loadUserAndPackage(ctx, namespaceName, packageName, principalUUID)
	if err != nil {
		return err
	}

	ratings := pkg.Ratings
	if ratings.Users == nil {
		ratings.Users = map[string]int{}
	}
	ratings.Users[domain.CanonicalID(user.ID)] = rating

	counts := map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
	for _, r := range ratings.Users {
		counts[strconv.Itoa(r)]++
	}
	ratings.Counts = counts

	return s.store.Packages().UpdateFields(ctx, pkg.Name, pkg.Namespace, map[string]any{
		"ratings": ratings,
	})
}

// ReportPackage files a malicious-package report from the caller.
func (s *Service) ReportPackage(ctx context.Context, namespaceName, packageName, principalUUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: reason is missing", ErrValidation)
	}
	if len(reason) < 10 {
		return fmt.Errorf("%w: reason should at least be 10 characters", ErrValidation)
	}

	user, pkg, err := s.loadUserAndPackage(ctx, namespaceName, packageName, principalUUID)
	if err != nil {
		return err
	}

	report := pkg.MaliciousReport
	if report.Users == nil {
		report.Users = map[string]domain.Report{}
	}
	report.Users[domain.CanonicalID(user.ID)] = domain.Report{Reason: reason}
	report.IsViewed = false

	return s.store.Packages().UpdateFields(ctx, pkg.Name, pkg.Namespace, map[string]any{
		"malicious_report": report,
	})
}
