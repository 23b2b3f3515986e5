package service_test

import (
	"context"
	"errors"
	"testing"

	"registry/internal/domain"
	"registry/internal/service"
	"registry/internal/store"

	"github.com/google/uuid"
)

func addUser(t *testing.T, st *store.Store, username string, roles ...string) *domain.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	u := &domain.User{ID: uuid.New(), UUID: uuid.New().String(), Username: username, Roles: roles}
	if err := st.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func TestRatePackage(t *testing.T) {
	svc, st, _ := setup(t)
	user, ns, token := seed(t, st, 0)
	ctx := context.Background()

	if _, err := svc.Publish(ctx, validRequest(t, token, "1.0.0")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := svc.RatePackage(ctx, "acme", "demo", user.UUID, 0); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("rating 0: got %v, want ErrValidation", err)
	}
	if err := svc.RatePackage(ctx, "acme", "demo", user.UUID, 6); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("rating 6: got %v, want ErrValidation", err)
	}

	other := addUser(t, st, "bob")
	if err := svc.RatePackage(ctx, "acme", "demo", user.UUID, 4); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if err := svc.RatePackage(ctx, "acme", "demo", other.UUID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	// re-rating replaces, it does not accumulate
	if err := svc.RatePackage(ctx, "acme", "demo", user.UUID, 2); err != nil {
		t.Fatalf("re-rate: %v", err)
	}

	pkg, err := st.Packages().GetByNameAndNamespace(ctx, "demo", ns.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkg.Ratings.Users) != 2 {
		t.Fatalf("rating users = %v", pkg.Ratings.Users)
	}
	if pkg.Ratings.Counts["2"] != 1 || pkg.Ratings.Counts["5"] != 1 || pkg.Ratings.Counts["4"] != 0 {
		t.Fatalf("counts = %v", pkg.Ratings.Counts)
	}

	view, err := svc.GetPackage(ctx, "acme", "demo")
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if view.Ratings != 3.5 {
		t.Fatalf("average rating = %v, want 3.5", view.Ratings)
	}
}

func TestReportPackage(t *testing.T) {
	svc, st, _ := setup(t)
	user, ns, token := seed(t, st, 0)
	ctx := context.Background()

	if _, err := svc.Publish(ctx, validRequest(t, token, "1.0.0")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := svc.ReportPackage(ctx, "acme", "demo", user.UUID, "   "); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("blank reason: got %v, want ErrValidation", err)
	}
	if err := svc.ReportPackage(ctx, "acme", "demo", user.UUID, "too short"); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("short reason: got %v, want ErrValidation", err)
	}

	if err := svc.ReportPackage(ctx, "acme", "demo", user.UUID, "this package ships malware"); err != nil {
		t.Fatalf("report: %v", err)
	}

	pkg, err := st.Packages().GetByNameAndNamespace(ctx, "demo", ns.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.MaliciousReport.IsViewed {
		t.Fatal("new report should flag the package unviewed")
	}

	// plain users cannot read the report queue
	if _, err := svc.ListUnviewedReports(ctx, user.UUID); !errors.Is(err, service.ErrUnauthorized) {
		t.Fatalf("non-admin list: got %v, want ErrUnauthorized", err)
	}

	admin := addUser(t, st, "root", "user", "admin")
	reports, err := svc.ListUnviewedReports(ctx, admin.UUID)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %+v", reports)
	}
	r := reports[0]
	if r.Reporter != "alice" || r.Package != "demo" || r.Namespace != "acme" {
		t.Fatalf("report join = %+v", r)
	}
	if r.Reason != "this package ships malware" {
		t.Fatalf("reason = %q", r.Reason)
	}
}

func TestDeletePackageIsAdminOnly(t *testing.T) {
	svc, st, _ := setup(t)
	user, ns, token := seed(t, st, 0)
	ctx := context.Background()

	if _, err := svc.Publish(ctx, validRequest(t, token, "1.0.0")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// the package author is not enough; only the admin role deletes
	if err := svc.DeletePackage(ctx, "acme", "demo", user.UUID); !errors.Is(err, service.ErrUnauthorized) {
		t.Fatalf("author delete: got %v, want ErrUnauthorized", err)
	}

	admin := addUser(t, st, "root", "user", "admin")
	if err := svc.DeletePackage(ctx, "acme", "demo", admin.UUID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := st.Packages().GetByNameAndNamespace(ctx, "demo", ns.ID); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("package still present: %v", err)
	}

	if err := svc.DeletePackage(ctx, "acme", "demo", admin.UUID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("re-delete: got %v, want ErrNotFound", err)
	}
}

func TestDeletePackageVersion(t *testing.T) {
	svc, st, _ := setup(t)
	_, ns, token := seed(t, st, 0)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.1.0"} {
		if _, err := svc.Publish(ctx, validRequest(t, token, v)); err != nil {
			t.Fatalf("publish %s: %v", v, err)
		}
	}

	admin := addUser(t, st, "root", "user", "admin")
	if err := svc.DeletePackageVersion(ctx, "acme", "demo", "1.0.0", admin.UUID); err != nil {
		t.Fatalf("delete version: %v", err)
	}

	pkg, err := st.Packages().GetByNameAndNamespace(ctx, "demo", ns.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkg.Versions) != 1 || pkg.Versions[0].Version != "1.1.0" {
		t.Fatalf("versions after delete = %+v", pkg.Versions)
	}

	if err := svc.DeletePackageVersion(ctx, "acme", "demo", "9.9.9", admin.UUID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("delete absent version: got %v, want ErrNotFound", err)
	}
}

func TestGetPackageAndVersion(t *testing.T) {
	svc, st, _ := setup(t)
	_, _, token := seed(t, st, 0)
	ctx := context.Background()

	for _, v := range []string{"1.9.0", "1.10.0"} {
		if _, err := svc.Publish(ctx, validRequest(t, token, v)); err != nil {
			t.Fatalf("publish %s: %v", v, err)
		}
	}

	view, err := svc.GetPackage(ctx, "acme", "demo")
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if view.Author != "alice" || view.Namespace != "acme" {
		t.Fatalf("view header = %+v", view)
	}
	// latest is the last element of the stored ordering, which is
	// lexicographic, so "1.9.0" wins over "1.10.0"
	if view.LatestVersion.Version != "1.9.0" {
		t.Fatalf("latest = %q", view.LatestVersion.Version)
	}
	if len(view.VersionHistory) != 2 {
		t.Fatalf("history = %+v", view.VersionHistory)
	}

	vv, err := svc.GetPackageVersion(ctx, "acme", "demo", "1.10.0")
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if vv.VersionData.Version != "1.10.0" || vv.VersionData.Tarball != "demo-1.10.0.tar.gz" {
		t.Fatalf("version data = %+v", vv.VersionData)
	}

	if _, err := svc.GetPackageVersion(ctx, "acme", "demo", "9.9.9"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("absent version: got %v, want ErrNotFound", err)
	}
	if _, err := svc.GetPackage(ctx, "acme", "nope"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("absent package: got %v, want ErrNotFound", err)
	}
}

func TestListMaintainers(t *testing.T) {
	svc, st, _ := setup(t)
	user, _, token := seed(t, st, 0)
	ctx := context.Background()

	if _, err := svc.Publish(ctx, validRequest(t, token, "1.0.0")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	views, err := svc.ListMaintainers(ctx, "acme", "demo")
	if err != nil {
		t.Fatalf("list maintainers: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("maintainers = %+v", views)
	}
	if views[0].ID != user.ID.String() || views[0].Username != "alice" {
		t.Fatalf("maintainer entry = %+v", views[0])
	}

	if _, err := svc.ListMaintainers(ctx, "acme", "nope"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("absent package: got %v, want ErrNotFound", err)
	}
	if _, err := svc.ListMaintainers(ctx, "ghost", "demo"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("absent namespace: got %v, want ErrNotFound", err)
	}
}

func TestVerifyUserRole(t *testing.T) {
	svc, st, _ := setup(t)
	user, _, token := seed(t, st, 0)
	ctx := context.Background()

	if _, err := svc.Publish(ctx, validRequest(t, token, "1.0.0")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ok, err := svc.VerifyUserRole(ctx, "acme", "demo", user.UUID)
	if err != nil || !ok {
		t.Fatalf("author role = %v, %v", ok, err)
	}

	outsider := addUser(t, st, "mallory")
	ok, err = svc.VerifyUserRole(ctx, "acme", "demo", outsider.UUID)
	if err != nil || ok {
		t.Fatalf("outsider role = %v, %v", ok, err)
	}
}
