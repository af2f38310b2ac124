package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-workflow/internal/hospital"
	"github.com/hackgods/hospital-workflow/internal/storage"
)

const (
	defaultMaxUploadBytes = 10 << 20
	mimeDocx              = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var allowedReportTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	mimeDocx:             true,
	"image/jpeg":         true,
	"image/jpg":          true,
	"image/png":          true,
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// attachReportHandler accepts a multipart upload, stores the file and records
// it on the consultation. The stored object is removed again if the
// consultation could not be updated.
func attachReportHandler(svc *hospital.Service, store storage.ObjectStore, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Sprintf("report file must be at most %d bytes", maxBytes))
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_multipart", "could not parse multipart form")
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		patientID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("patientId")), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientId must be numeric")
			return
		}
		consultationID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("consultationId")), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_consultation_id", "consultationId must be numeric")
			return
		}

		var testID *uuid.UUID
		if raw := strings.TrimSpace(r.FormValue("testId")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_test_id", "testId must be a valid UUID")
				return
			}
			testID = &id
		}

		in := hospital.AttachReportInput{
			PatientID:      patientID,
			ConsultationID: consultationID,
			TestID:         testID,
			Title:          firstNonEmpty(r.FormValue("reportTitle"), r.FormValue("title")),
			Type:           firstNonEmpty(r.FormValue("reportType"), r.FormValue("type")),
			Description:    strings.TrimSpace(r.FormValue("description")),
		}
		// Reject obviously incomplete requests before anything is uploaded.
		if in.Title == "" {
			handleServiceError(w, r, hospital.ErrMissingTitle)
			return
		}
		if in.Type == "" {
			handleServiceError(w, r, hospital.ErrMissingReportType)
			return
		}

		file, header, err := r.FormFile("reportFile")
		if err != nil {
			handleServiceError(w, r, hospital.ErrMissingFile)
			return
		}
		defer file.Close()

		if header.Size > maxBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Sprintf("report file must be at most %d bytes", maxBytes))
			return
		}
		contentType, _, _ := strings.Cut(strings.ToLower(header.Header.Get("Content-Type")), ";")
		contentType = strings.TrimSpace(contentType)
		if !allowedReportTypes[contentType] {
			writeError(w, http.StatusBadRequest, "unsupported_file_type", "only PDF, Word, JPEG and PNG files are accepted")
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		key := fmt.Sprintf("%s/%d-%s%s", hospital.ReportCategory, patientID, uuid.New(), ext)

		url, err := store.Upload(ctx, key, file, header.Size, contentType)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("key", key).Msg("report upload failed")
			writeError(w, http.StatusInternalServerError, "upload_failed", "could not store report file")
			return
		}
		in.File = hospital.FileRef{
			URL:  url,
			Name: storage.SanitizeFileName(header.Filename),
			Key:  key,
		}

		res, err := svc.AttachReport(ctx, ActorFromContext(ctx), in)
		if err != nil {
			if rmErr := store.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
				zerolog.Ctx(ctx).Warn().Err(rmErr).Str("key", key).Msg("could not remove orphaned report upload")
			}
			handleServiceError(w, r, err)
			return
		}

		status := http.StatusCreated
		if testID != nil {
			status = http.StatusOK
		}
		writeJSON(w, status, res)
	}
}

// downloadReportHandler redirects to the stored file of a completed report.
func downloadReportHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		reportID, err := uuid.Parse(chi.URLParam(r, "reportId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_reportId", "reportId must be a valid UUID")
			return
		}

		rep, err := svc.ReportFile(r.Context(), ActorFromContext(r.Context()), id, reportID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		http.Redirect(w, r, rep.ReportFile, http.StatusFound)
	}
}
