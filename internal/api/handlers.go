package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-workflow/internal/hospital"
	redisclient "github.com/hackgods/hospital-workflow/internal/redis"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be numeric")
		return 0, false
	}
	return id, true
}

// handleServiceError maps domain errors onto HTTP responses. Anything not
// recognised is logged and answered generically.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, hospital.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, hospital.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())

	case errors.Is(err, hospital.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", "Patient not found")
	case errors.Is(err, hospital.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, hospital.ErrConsultationNotFound):
		writeError(w, http.StatusNotFound, "consultation_not_found", "Consultation not found")
	case errors.Is(err, hospital.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "test_not_found", "Test not found in consultation")
	case errors.Is(err, hospital.ErrReportNotUploaded):
		writeError(w, http.StatusNotFound, "report_not_uploaded", err.Error())
	case errors.Is(err, hospital.ErrDiagnosisNotFound):
		writeError(w, http.StatusNotFound, "diagnosis_not_found", err.Error())
	case errors.Is(err, hospital.ErrPrescriptionNotFound):
		writeError(w, http.StatusNotFound, "prescription_not_found", "Prescription not found")
	case errors.Is(err, hospital.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry_not_found", "Prescription entry not found")
	case errors.Is(err, hospital.ErrEquipmentNotFound):
		writeError(w, http.StatusNotFound, "equipment_not_found", err.Error())

	case errors.Is(err, hospital.ErrDocumentBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "document_busy", "document is being modified, please retry shortly")
	case errors.Is(err, hospital.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, hospital.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, hospital.ErrConsultationCancelled):
		writeError(w, http.StatusConflict, "consultation_cancelled", err.Error())
	case errors.Is(err, hospital.ErrPrescriptionCancelled):
		writeError(w, http.StatusConflict, "prescription_cancelled", err.Error())
	case errors.Is(err, hospital.ErrPrescriptionClosed):
		writeError(w, http.StatusConflict, "prescription_closed", err.Error())
	case errors.Is(err, hospital.ErrFeedbackTooEarly):
		writeError(w, http.StatusConflict, "feedback_too_early", err.Error())

	default:
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func createConsultationHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateConsultationRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		c, err := svc.CreateConsultation(r.Context(), ActorFromContext(r.Context()), hospital.NewConsultation{
			PatientID:       req.PatientID,
			DoctorID:        req.DoctorID,
			Status:          hospital.ConsultationStatus(strings.ToLower(req.Status)),
			AppointmentType: hospital.AppointmentType(strings.ToLower(req.AppointmentType)),
			BookedAt:        req.BookedAt,
			Reason:          req.Reason,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func getConsultationHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}

		c, err := svc.GetConsultation(r.Context(), ActorFromContext(r.Context()), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func transitionConsultationHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		var req TransitionRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		to := hospital.ConsultationStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		c, err := svc.TransitionConsultation(r.Context(), ActorFromContext(r.Context()), id, to)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func requestReportHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		var req RequestReportRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		rep, err := svc.RequestReport(r.Context(), ActorFromContext(r.Context()), id, req.Title, req.Description)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rep)
	}
}

func addFeedbackHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		var req FeedbackRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		c, err := svc.AddFeedback(r.Context(), ActorFromContext(r.Context()), id, req.Rating, req.Comments)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}
