// Package service implements the registry's publish-and-verify request
// surface: the upload transaction, upload-token lifecycle, package reads,
// admin deletes, ratings and abuse reports.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"registry/internal/archive"
	"registry/internal/authz"
	"registry/internal/blob"
	"registry/internal/domain"
	"registry/internal/store"

	"github.com/google/uuid"
)

type Service struct {
	store *store.Store
	blobs *blob.Store

	// now is swappable so token-expiry boundaries are testable.
	now func() time.Time
}

func New(st *store.Store, blobs *blob.Store) *Service {
	return &Service{store: st, blobs: blobs, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PublishRequest carries one upload attempt.
type PublishRequest struct {
	UploadToken string
	Name        string
	Version     string
	License     string
	ContentType string
	Archive     []byte
	DryRun      bool
}

// PublishResult reports the applied effect.
type PublishResult struct {
	Namespace string
	Package   string
	Version   string
	OID       string
	DryRun    bool
}

// Publish runs the upload transaction: fail-fast validation, token
// resolution, authorization, archive verification, blob write, then the
// create-or-append metadata write. DryRun short-circuits before any
// persistent write.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	switch {
	case req.UploadToken == "":
		return nil, fmt.Errorf("%w: upload token missing", ErrValidation)
	case req.Name == "":
		return nil, fmt.Errorf("%w: package name missing", ErrValidation)
	case req.Version == "":
		return nil, fmt.Errorf("%w: package version missing", ErrValidation)
	case req.License == "":
		return nil, fmt.Errorf("%w: package license missing", ErrValidation)
	case len(req.Archive) == 0:
		return nil, fmt.Errorf("%w: tarball missing", ErrValidation)
	}

	if !validVersion(req.Version) {
		return nil, fmt.Errorf("%w: version %q is not valid", ErrValidation, req.Version)
	}
	if !validLicense(req.License) {
		return nil, fmt.Errorf("%w: invalid license identifier %q", ErrValidation, req.License)
	}

	ns, token, err := s.resolveUploadToken(ctx, req.UploadToken)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, token.CreatedBy)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}

	pkg, err := s.store.Packages().GetByNameAndNamespace(ctx, req.Name, ns.ID)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}
		pkg = nil
	}

	if !authz.CanMutatePackage(user.ID, ns, pkg) {
		return nil, ErrUnauthorized
	}

	if !allowedArchiveTypes[req.ContentType] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidArchiveType, req.ContentType)
	}
	if _, err := archive.List(bytes.NewReader(req.Archive)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	if pkg != nil && pkg.HasVersion(req.Version) {
		return nil, ErrVersionExists
	}

	if req.DryRun {
		return &PublishResult{Namespace: ns.Name, Package: req.Name, Version: req.Version, DryRun: true}, nil
	}

	tarballName := fmt.Sprintf("%s-%s.tar.gz", req.Name, req.Version)
	blobKey := fmt.Sprintf("%s_%s_%s", req.Name, req.Version, tarballName)

	oid, err := s.blobs.Put(ctx, blobKey, tarballName, req.ContentType, req.Archive)
	if err != nil {
		return nil, err
	}

	version := domain.Version{
		Version:     req.Version,
		Tarball:     tarballName,
		OID:         oid,
		DownloadURL: "/tarballs/" + oid,
		CreatedAt:   s.now(),
	}

	if pkg == nil {
		if err := s.createPackage(ctx, ns, user, req, version); err != nil {
			return nil, err
		}
	} else {
		if err := s.appendVersion(ctx, pkg, version); err != nil {
			return nil, err
		}
	}

	return &PublishResult{Namespace: ns.Name, Package: req.Name, Version: req.Version, OID: oid}, nil
}

func (s *Service) createPackage(ctx context.Context, ns *domain.Namespace, user *domain.User, req PublishRequest, version domain.Version) error {
	now := s.now()
	pkg := &domain.Package{
		ID:            uuid.New(),
		Name:          req.Name,
		Namespace:     ns.ID,
		NamespaceName: ns.Name,
		Author:        user.ID,
		Maintainers:   []domain.UserID{user.ID},
		License:       req.License,

		Description:         domain.MetadataSentinel,
		Homepage:            domain.MetadataSentinel,
		Repository:          domain.MetadataSentinel,
		Copyright:           domain.MetadataSentinel,
		RegistryDescription: domain.MetadataSentinel,
		Keywords:            []string{"fortran", "fpm"},
		Categories:          []string{"fortran", "fpm"},

		Versions: []domain.Version{version},
		Ratings:  domain.Ratings{Users: map[string]int{}, Counts: map[string]int{}},
		MaliciousReport: domain.MaliciousReport{
			IsViewed: true,
			Users:    map[string]domain.Report{},
		},

		CreatedAt: now,
		UpdatedAt: now,
	}

	return s.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.Packages().Create(ctx, pkg); err != nil {
			return err
		}
		if err := tx.Namespaces().UpdateFields(ctx, ns.ID, map[string]any{
			"packages":   append(ns.Packages, pkg.ID),
			"updated_at": now,
		}); err != nil {
			return err
		}
		return tx.Users().AppendAuthored(ctx, user.ID, pkg.ID)
	})
}

func (s *Service) appendVersion(ctx context.Context, pkg *domain.Package, version domain.Version) error {
	versions := append(pkg.Versions, version)
	// Versions are ordered by a plain lexicographic comparison of the raw
	// string, so "1.10.0" sorts before "1.9.0". Stored blobs and clients
	// depend on this ordering; keep it.
	sort.SliceStable(versions, func(i, j int) bool {
		return strings.Compare(versions[i].Version, versions[j].Version) < 0
	})

	return s.store.Packages().UpdateFields(ctx, pkg.Name, pkg.Namespace, map[string]any{
		"versions":   versions,
		"updated_at": s.now(),
	})
}

// resolveUploadToken maps a raw token to its namespace and creation record.
func (s *Service) resolveUploadToken(ctx context.Context, token string) (*domain.Namespace, domain.UploadToken, error) {
	ns, err := s.store.Namespaces().GetByUploadToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.UploadToken{}, ErrInvalidToken
		}
		return nil, domain.UploadToken{}, err
	}
	tok, ok := ns.TokenNamed(token)
	if !ok {
		return nil, domain.UploadToken{}, ErrInvalidToken
	}
	if tok.Expired(s.now()) {
		return nil, domain.UploadToken{}, ErrTokenExpired
	}
	return ns, tok, nil
}

// IssueUploadToken creates a new upload token for a package. Only package
// maintainers may issue one; namespace-level roles do not suffice.
func (s *Service) IssueUploadToken(ctx context.Context, namespaceName, packageName, principalUUID string) (string, error) {
	user, err := s.store.Users().GetByUUID(ctx, principalUUID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}

	ns, err := s.store.Namespaces().GetByName(ctx, namespaceName)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: namespace", ErrNotFound)
		}
		return "", err
	}

	pkg, err := s.store.Packages().GetByNameAndNamespace(ctx, packageName, ns.ID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: package", ErrNotFound)
		}
		return "", err
	}

	if !authz.CanIssueUploadToken(user.ID, pkg) {
		return "", ErrUnauthorized
	}

	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	tokens := append(ns.UploadTokens, domain.UploadToken{
		Token:     token,
		CreatedAt: s.now(),
		CreatedBy: user.ID,
	})

	err = s.store.Namespaces().UpdateFields(ctx, ns.ID, map[string]any{
		"upload_tokens": tokens,
		"updated_at":    s.now(),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// FetchTarball serves archive bytes by object id, counting the download.
func (s *Service) FetchTarball(ctx context.Context, oid string) (*blob.Blob, error) {
	b, err := s.blobs.Fetch(ctx, oid)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("%w: tarball", ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}
