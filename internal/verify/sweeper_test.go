package verify_test

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"registry/internal/blob"
	"registry/internal/domain"
	"registry/internal/observability/metrics"
	"registry/internal/store"
	"registry/internal/verify"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	metrics.MustRegister("verifier-test")
	os.Exit(m.Run())
}

// fakeChecker reports a fixed outcome and records the trees it was given.
type fakeChecker struct {
	pass bool
	dirs []string
}

func (f *fakeChecker) Check(_ context.Context, dir string) (*verify.Report, error) {
	f.dirs = append(f.dirs, dir)
	return &verify.Report{Passed: f.pass}, nil
}

func setup(t *testing.T) (*store.Store, *blob.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Namespace{}, &domain.Package{}, &domain.User{}, &blob.Blob{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return store.New(db), blob.New(db)
}

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// seedPackage stores the archive as a blob and creates a package in the
// given namespace with one unverified version pointing at it.
func seedPackage(t *testing.T, st *store.Store, blobs *blob.Store, nsName, name string, archiveBytes []byte) *domain.Package {
	t.Helper()
	ctx := context.Background()

	ns, err := st.Namespaces().GetByName(ctx, nsName)
	if err != nil {
		ns = &domain.Namespace{ID: uuid.New(), Name: nsName}
		if err := st.Namespaces().Create(ctx, ns); err != nil {
			t.Fatalf("create namespace: %v", err)
		}
	}

	var oid string
	if archiveBytes != nil {
		oid, err = blobs.Put(ctx, name+"_1.0.0", name+"-1.0.0.tar.gz", "application/gzip", archiveBytes)
		if err != nil {
			t.Fatalf("put blob: %v", err)
		}
	} else {
		oid = "missing"
	}

	pkg := &domain.Package{
		ID:            uuid.New(),
		Name:          name,
		Namespace:     ns.ID,
		NamespaceName: nsName,
		License:       "MIT",

		Description:         domain.MetadataSentinel,
		Homepage:            domain.MetadataSentinel,
		Repository:          domain.MetadataSentinel,
		Copyright:           domain.MetadataSentinel,
		RegistryDescription: domain.MetadataSentinel,
		Keywords:            []string{"fortran", "fpm"},
		Categories:          []string{"fortran", "fpm"},

		Versions: []domain.Version{{
			Version:   "1.0.0",
			Tarball:   name + "-1.0.0.tar.gz",
			OID:       oid,
			CreatedAt: time.Now().UTC(),
		}},
		Ratings:         domain.Ratings{Users: map[string]int{}, Counts: map[string]int{}},
		MaliciousReport: domain.MaliciousReport{IsViewed: true, Users: map[string]domain.Report{}},
	}
	if err := st.Packages().Create(ctx, pkg); err != nil {
		t.Fatalf("create package: %v", err)
	}
	return pkg
}

func reload(t *testing.T, st *store.Store, pkg *domain.Package) *domain.Package {
	t.Helper()
	fresh, err := st.Packages().GetByNameAndNamespace(context.Background(), pkg.Name, pkg.Namespace)
	if err != nil {
		t.Fatalf("reload package: %v", err)
	}
	return fresh
}

func TestSweepVerifiesAndReconcilesMetadata(t *testing.T) {
	st, blobs := setup(t)
	ctx := context.Background()

	data := makeTarGz(t, map[string]string{
		"fpm.toml": `
name = "demo"
description = "A demo package"
keywords = ["json", "fpm"]
categories = ["io"]
`,
		"src/demo.f90": "module demo\nend module\n",
	})
	pkg := seedPackage(t, st, blobs, "acme", "demo", data)

	checker := &fakeChecker{pass: true}
	sw := verify.NewSweeper(st, blobs, checker, t.TempDir(), nil)
	if err := sw.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(checker.dirs) != 1 {
		t.Fatalf("checker ran %d times, want 1", len(checker.dirs))
	}

	fresh := reload(t, st, pkg)
	v := fresh.Versions[0]
	if !v.IsVerified || v.UnableToVerify {
		t.Fatalf("version flags = %+v", v)
	}

	if fresh.Description != "A demo package" {
		t.Fatalf("description = %q", fresh.Description)
	}
	// untouched fields are resolved to explicit markers
	if fresh.Homepage != "homepage not provided." {
		t.Fatalf("homepage = %q", fresh.Homepage)
	}
	if fresh.RegistryDescription != "registry_description not provided." {
		t.Fatalf("registry description = %q", fresh.RegistryDescription)
	}

	// list fields merge as a union, preserving seeded entries
	wantKeywords := []string{"fortran", "fpm", "json"}
	if len(fresh.Keywords) != len(wantKeywords) {
		t.Fatalf("keywords = %v, want %v", fresh.Keywords, wantKeywords)
	}
	for i, k := range wantKeywords {
		if fresh.Keywords[i] != k {
			t.Fatalf("keywords = %v, want %v", fresh.Keywords, wantKeywords)
		}
	}

	// a second sweep finds nothing left to do
	if err := sw.Sweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(checker.dirs) != 1 {
		t.Fatalf("checker re-ran on a verified version, %d runs", len(checker.dirs))
	}
}

func TestSweepFailedBuildMarksUnableToVerify(t *testing.T) {
	st, blobs := setup(t)
	ctx := context.Background()

	data := makeTarGz(t, map[string]string{"fpm.toml": `name = "demo"`})
	pkg := seedPackage(t, st, blobs, "acme", "demo", data)

	sw := verify.NewSweeper(st, blobs, &fakeChecker{pass: false}, t.TempDir(), nil)
	if err := sw.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	v := reload(t, st, pkg).Versions[0]
	if v.IsVerified || !v.UnableToVerify {
		t.Fatalf("version flags = %+v", v)
	}
}

func TestSweepMissingDependencyBlocksVerification(t *testing.T) {
	st, blobs := setup(t)
	ctx := context.Background()

	data := makeTarGz(t, map[string]string{
		"fpm.toml": `
name = "demo"

[dependencies]
stdlib = { namespace = "fortran-lang", v = "1.0.0" }
`,
	})
	pkg := seedPackage(t, st, blobs, "acme", "demo", data)

	sw := verify.NewSweeper(st, blobs, &fakeChecker{pass: true}, t.TempDir(), nil)
	if err := sw.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	v := reload(t, st, pkg).Versions[0]
	if v.IsVerified {
		t.Fatal("version verified despite unresolved dependency")
	}
	if len(v.Dependencies) != 1 || v.Dependencies[0].Name != "stdlib" {
		t.Fatalf("dependencies = %+v", v.Dependencies)
	}

	// once the dependency exists at the pinned version, a re-sweep verifies
	depData := makeTarGz(t, map[string]string{"fpm.toml": `name = "stdlib"`})
	seedPackage(t, st, blobs, "fortran-lang", "stdlib", depData)

	if err := sw.Sweep(ctx); err != nil {
		t.Fatalf("re-sweep: %v", err)
	}
	v = reload(t, st, pkg).Versions[0]
	if !v.IsVerified {
		t.Fatal("version still unverified after dependency published")
	}
}

func TestSweepMissingBlobLeavesVersionUnverified(t *testing.T) {
	st, blobs := setup(t)
	ctx := context.Background()

	pkg := seedPackage(t, st, blobs, "acme", "demo", nil)

	checker := &fakeChecker{pass: true}
	sw := verify.NewSweeper(st, blobs, checker, t.TempDir(), nil)
	if err := sw.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(checker.dirs) != 0 {
		t.Fatal("checker should not run without a tarball")
	}

	fresh := reload(t, st, pkg)
	if fresh.Versions[0].IsVerified {
		t.Fatal("version should stay unverified")
	}
	// metadata untouched without a manifest
	if fresh.Description != domain.MetadataSentinel {
		t.Fatalf("description = %q", fresh.Description)
	}
}

func TestSweepCorruptArchivePersistsUnverified(t *testing.T) {
	st, blobs := setup(t)
	ctx := context.Background()

	pkg := seedPackage(t, st, blobs, "acme", "demo", []byte("not a tarball"))

	checker := &fakeChecker{pass: true}
	sw := verify.NewSweeper(st, blobs, checker, t.TempDir(), nil)
	if err := sw.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(checker.dirs) != 0 {
		t.Fatal("checker should not run on a corrupt archive")
	}

	fresh := reload(t, st, pkg)
	if fresh.Versions[0].IsVerified {
		t.Fatal("version should stay unverified")
	}
	if fresh.Description != domain.MetadataSentinel {
		t.Fatalf("metadata reconciled without a manifest: %q", fresh.Description)
	}
}

func TestSweepMissingManifestPersistsUnverified(t *testing.T) {
	st, blobs := setup(t)
	ctx := context.Background()

	data := makeTarGz(t, map[string]string{"README.md": "# demo"})
	pkg := seedPackage(t, st, blobs, "acme", "demo", data)

	sw := verify.NewSweeper(st, blobs, &fakeChecker{pass: true}, t.TempDir(), nil)
	if err := sw.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	fresh := reload(t, st, pkg)
	if fresh.Versions[0].IsVerified {
		t.Fatal("version should stay unverified without a manifest")
	}
}
