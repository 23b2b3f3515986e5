// Package authz holds the pure role predicates for namespace and package
// mutation. No store access, no side effects; callers load the records.
package authz

import (
	"registry/internal/domain"

	"github.com/google/uuid"
)

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	want := domain.CanonicalID(id)
	for _, candidate := range ids {
		if domain.CanonicalID(candidate) == want {
			return true
		}
	}
	return false
}

// CanMutatePackage reports whether the principal may publish or mutate a
// package in the namespace. Membership in any one of namespace admins,
// namespace maintainers, or (when the package already exists) the package's
// own maintainer set suffices. pkg may be nil for a first publish.
func CanMutatePackage(principal domain.UserID, ns *domain.Namespace, pkg *domain.Package) bool {
	if containsID(ns.Admins, principal) || containsID(ns.Maintainers, principal) {
		return true
	}
	return pkg != nil && containsID(pkg.Maintainers, principal)
}

// CanIssueUploadToken reports whether the principal may create an upload
// token for the package. Token creation is strictly package-scoped:
// namespace-level roles do not suffice.
func CanIssueUploadToken(principal domain.UserID, pkg *domain.Package) bool {
	return containsID(pkg.Maintainers, principal)
}

// CanDelete reports whether a role set permits deleting packages or
// package versions.
func CanDelete(roles []string) bool {
	for _, r := range roles {
		if r == "admin" {
			return true
		}
	}
	return false
}
