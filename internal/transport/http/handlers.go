package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"registry/internal/auth"
	"registry/internal/observability/metrics"
	"registry/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// maxArchiveBytes bounds an uploaded tarball.
const maxArchiveBytes = 64 << 20

type handlers struct {
	svc *service.Service
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Code: status, Message: message})
}

// writeError maps the service taxonomy onto status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidArchiveType),
		errors.Is(err, service.ErrCorruptArchive):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrVersionExists):
		status = http.StatusConflict
	}
	writeMessage(w, status, err.Error())
}

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	reqID := chimw.GetReqID(r.Context())

	if err := r.ParseMultipartForm(maxArchiveBytes); err != nil {
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		writeMessage(w, http.StatusBadRequest, "malformed multipart form")
		return
	}

	req := service.PublishRequest{
		UploadToken: r.FormValue("upload_token"),
		Name:        r.FormValue("package_name"),
		Version:     r.FormValue("package_version"),
		License:     r.FormValue("package_license"),
		DryRun:      r.FormValue("dry_run") == "true",
	}

	if file, header, err := r.FormFile("tarball"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxArchiveBytes+1))
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			writeMessage(w, http.StatusBadRequest, "unreadable tarball")
			return
		}
		req.Archive = data
		req.ContentType = header.Header.Get("Content-Type")
	}

	res, err := h.svc.Publish(r.Context(), req)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		slog.Warn("upload rejected", "package", req.Name, "version", req.Version, "error", err, "request_id", reqID)
		writeError(w, err)
		return
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	if res.DryRun {
		slog.Info("dry run accepted", "package", res.Package, "version", res.Version, "request_id", reqID)
		writeMessage(w, http.StatusOK, "Dry run Successful.")
		return
	}
	slog.Info("package uploaded", "namespace", res.Namespace, "package", res.Package,
		"version", res.Version, "oid", res.OID, "request_id", reqID)
	writeMessage(w, http.StatusOK, "Package Uploaded Successfully.")
}

func (h *handlers) tarball(w http.ResponseWriter, r *http.Request) {
	oid := chi.URLParam(r, "oid")

	b, err := h.svc.FetchTarball(r.Context(), oid)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("failure").Inc()
		writeError(w, err)
		return
	}

	metrics.DownloadsTotal.WithLabelValues("success").Inc()
	w.Header().Set("Content-Type", b.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(b.Size, 10))
	_, _ = w.Write(b.Data)
}

func (h *handlers) getPackage(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetPackage(r.Context(), chi.URLParam(r, "namespace"), chi.URLParam(r, "package"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": http.StatusOK, "data": view})
}

func (h *handlers) getPackageVersion(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetPackageVersion(r.Context(),
		chi.URLParam(r, "namespace"), chi.URLParam(r, "package"), chi.URLParam(r, "version"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": http.StatusOK, "data": view})
}

func (h *handlers) listMaintainers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListMaintainers(r.Context(), chi.URLParam(r, "namespace"), chi.URLParam(r, "package"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": http.StatusOK, "users": users})
}

func (h *handlers) createUploadToken(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.SubjectFrom(r.Context())

	token, err := h.svc.IssueUploadToken(r.Context(),
		chi.URLParam(r, "namespace"), chi.URLParam(r, "package"), principal)
	if err != nil {
		metrics.UploadTokensIssuedTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, service.ErrUnauthorized) {
			writeMessage(w, http.StatusUnauthorized, "Only package maintainers can create tokens")
			return
		}
		writeError(w, err)
		return
	}

	metrics.UploadTokensIssuedTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"code":         http.StatusOK,
		"message":      "Upload token created successfully",
		"upload_token": token,
	})
}

func (h *handlers) verifyUserRole(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.SubjectFrom(r.Context())

	ok, err := h.svc.VerifyUserRole(r.Context(),
		chi.URLParam(r, "namespace"), chi.URLParam(r, "package"), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": http.StatusUnauthorized, "isVerified": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": http.StatusOK, "isVerified": true})
}

func (h *handlers) deletePackage(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.SubjectFrom(r.Context())

	err := h.svc.DeletePackage(r.Context(),
		chi.URLParam(r, "namespace"), chi.URLParam(r, "package"), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Package deleted successfully")
}

func (h *handlers) deletePackageVersion(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.SubjectFrom(r.Context())

	err := h.svc.DeletePackageVersion(r.Context(),
		chi.URLParam(r, "namespace"), chi.URLParam(r, "package"), chi.URLParam(r, "version"), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Package version deleted successfully")
}

func (h *handlers) ratePackage(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.SubjectFrom(r.Context())

	rating, err := strconv.Atoi(r.FormValue("rating"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Rating is missing")
		return
	}
	err = h.svc.RatePackage(r.Context(),
		chi.URLParam(r, "namespace"), chi.URLParam(r, "package"), principal, rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Ratings Submitted Successfully")
}

func (h *handlers) reportPackage(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.SubjectFrom(r.Context())

	err := h.svc.ReportPackage(r.Context(),
		chi.URLParam(r, "namespace"), chi.URLParam(r, "package"), principal, r.FormValue("reason"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Malicious Report Submitted Successfully")
}

func (h *handlers) viewReports(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.SubjectFrom(r.Context())

	reports, err := h.svc.ListUnviewedReports(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":    http.StatusOK,
		"message": "Malicious Reports fetched Successfully",
		"reports": reports,
	})
}
