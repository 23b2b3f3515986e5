// Package verify is the asynchronous verification pipeline. A sweep selects
// every unverified version, extracts its archive, parses the manifest, runs
// the digest/build check, resolves declared dependencies against the
// registry and reconciles package metadata, committing one atomic update
// per version.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"registry/internal/archive"
	"registry/internal/blob"
	"registry/internal/domain"
	"registry/internal/manifest"
	"registry/internal/observability/metrics"
	"registry/internal/store"

	"github.com/cenk/backoff"
)

// scalarFields are the reconciled single-valued package columns; categories
// and keywords are handled separately as list merges.
var scalarFields = []string{"repository", "copyright", "description", "homepage", "registry_description"}

type Sweeper struct {
	store       *store.Store
	blobs       *blob.Store
	checker     BuildChecker
	scratchRoot string
	logger      *slog.Logger
}

func NewSweeper(st *store.Store, blobs *blob.Store, checker BuildChecker, scratchRoot string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: st, blobs: blobs, checker: checker, scratchRoot: scratchRoot, logger: logger}
}

// Sweep processes every package holding at least one unverified version.
// Per-version failures are recorded as state, never returned; only
// infrastructure errors abort the sweep.
func (s *Sweeper) Sweep(ctx context.Context) error {
	pkgs, err := s.store.Packages().ListWithUnverifiedVersions(ctx)
	if err != nil {
		return err
	}

	for i := range pkgs {
		pkg := &pkgs[i]
		for vi := range pkg.Versions {
			if pkg.Versions[vi].IsVerified {
				continue
			}
			if err := s.processVersion(ctx, pkg, vi); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("version processing aborted",
					"package", pkg.Name, "namespace", pkg.NamespaceName,
					"version", pkg.Versions[vi].Version, "error", err)
			}
		}
	}
	return nil
}

func (s *Sweeper) processVersion(ctx context.Context, pkg *domain.Package, vi int) error {
	version := &pkg.Versions[vi]
	key := fmt.Sprintf("%s-%s", pkg.Name, version.Version)

	b, err := s.fetchBlob(ctx, version.OID)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			// left unverified, retried on the next sweep
			s.logger.Warn("no tarball found", "package", pkg.Name, "version", version.Version, "oid", version.OID)
			return nil
		}
		return err
	}

	scratch, err := archive.NewScratch(s.scratchRoot, key)
	if err != nil {
		return err
	}
	defer scratch.Close()

	if err := archive.Extract(bytes.NewReader(b.Data), scratch.Dir); err != nil {
		s.logger.Warn("extraction failed", "package", pkg.Name, "version", version.Version, "error", err)
		version.IsVerified = false
		metrics.VerificationsTotal.WithLabelValues("failed").Inc()
		return s.persist(ctx, pkg, nil)
	}

	m, err := manifest.Load(scratch.Dir)
	if err != nil {
		// terminal for this pass
		s.logger.Warn("manifest parse failed", "package", pkg.Name, "version", version.Version, "error", err)
		version.IsVerified = false
		metrics.VerificationsTotal.WithLabelValues("failed").Inc()
		return s.persist(ctx, pkg, nil)
	}

	report, err := s.checker.Check(ctx, scratch.Dir)
	if err != nil {
		return err
	}

	version.IsVerified = report.Passed
	version.UnableToVerify = !report.Passed
	if report.Passed {
		s.logger.Info("build check passed", "package", pkg.Name, "version", version.Version)
	} else {
		s.logger.Warn("build check failed", "package", pkg.Name, "version", version.Version)
	}

	// Dependency existence resolution: a single unresolved dependency blocks
	// verification but does not abort metadata reconciliation.
	refs := m.DependencyRefs()
	resolved := make([]domain.DependencyRef, 0, len(refs))
	for _, ref := range refs {
		resolved = append(resolved, domain.DependencyRef{Namespace: ref.Namespace, Name: ref.Name, Version: ref.Version})
		if !s.dependencyExists(ctx, ref) {
			s.logger.Warn("dependency not found", "package", pkg.Name, "version", version.Version,
				"dependency", ref.Namespace+"/"+ref.Name)
			version.IsVerified = false
		}
	}
	version.Dependencies = resolved

	if version.IsVerified {
		metrics.VerificationsTotal.WithLabelValues("verified").Inc()
	} else {
		metrics.VerificationsTotal.WithLabelValues("failed").Inc()
	}
	return s.persist(ctx, pkg, m)
}

// fetchBlob retries transient store reads before giving up; a missing blob
// is returned immediately.
func (s *Sweeper) fetchBlob(ctx context.Context, oid string) (*blob.Blob, error) {
	var b *blob.Blob
	op := func() error {
		var err error
		b, err = s.blobs.Get(ctx, oid)
		if errors.Is(err, blob.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Sweeper) dependencyExists(ctx context.Context, ref manifest.DependencyRef) bool {
	ns, err := s.store.Namespaces().GetByName(ctx, ref.Namespace)
	if err != nil {
		return false
	}
	dep, err := s.store.Packages().GetByNameAndNamespace(ctx, ref.Name, ns.ID)
	if err != nil {
		return false
	}
	if ref.Version != "" {
		return dep.HasVersion(ref.Version)
	}
	return true
}

// persist commits the version flags plus reconciled metadata as a single
// atomic field-set keyed by (name, namespace). m may be nil when the
// manifest never parsed.
func (s *Sweeper) persist(ctx context.Context, pkg *domain.Package, m *manifest.Manifest) error {
	fields := map[string]any{"versions": pkg.Versions}
	if m != nil {
		reconcileMetadata(pkg, m, fields)
	}
	return s.store.Packages().UpdateFields(ctx, pkg.Name, pkg.Namespace, fields)
}

// reconcileMetadata folds manifest-supplied values into the update: scalar
// fields are overwritten when they differ, the two list fields are merged as
// a de-duplicated union, and any field still holding the sentinel is
// replaced with an explicit "<field> not provided." marker.
func reconcileMetadata(pkg *domain.Package, m *manifest.Manifest, fields map[string]any) {
	current := map[string]*string{
		"repository":           &pkg.Repository,
		"copyright":            &pkg.Copyright,
		"description":          &pkg.Description,
		"homepage":             &pkg.Homepage,
		"registry_description": &pkg.RegistryDescription,
	}
	supplied := map[string]string{
		"repository":           m.Repository,
		"copyright":            m.Copyright,
		"description":          m.Description,
		"homepage":             m.Homepage,
		"registry_description": m.RegistryDescription,
	}

	for _, field := range scalarFields {
		if v := supplied[field]; v != "" && v != *current[field] {
			fields[field] = v
			*current[field] = v
		}
	}

	if len(m.Categories) > 0 {
		merged := mergeUnique(pkg.Categories, m.Categories)
		fields["categories"] = merged
		pkg.Categories = merged
	}
	if len(m.Keywords) > 0 {
		merged := mergeUnique(pkg.Keywords, m.Keywords)
		fields["keywords"] = merged
		pkg.Keywords = merged
	}

	for _, field := range scalarFields {
		if *current[field] == domain.MetadataSentinel {
			marker := fmt.Sprintf("%s not provided.", field)
			fields[field] = marker
			*current[field] = marker
		}
	}
}

// mergeUnique unions two lists preserving first-seen order.
func mergeUnique(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, lists := range [][]string{existing, incoming} {
		for _, v := range lists {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
