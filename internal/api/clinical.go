package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/hospital-workflow/internal/hospital"
)

func addDiagnosisHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		var req DiagnosisRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		c, err := svc.AddDiagnosis(r.Context(), ActorFromContext(r.Context()), id, req.Diagnosis)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// updateDiagnosisHandler addresses a diagnosis by its zero-based position.
func updateDiagnosisHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_index", "index must be numeric")
			return
		}
		var req DiagnosisRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		c, err := svc.UpdateDiagnosis(r.Context(), ActorFromContext(r.Context()), id, index, req.Diagnosis)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func updateNotesHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		var req NotesRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		c, err := svc.UpdateNotes(r.Context(), ActorFromContext(r.Context()), id, hospital.NotesUpdate{
			Remark:         req.Remark,
			AdditionalInfo: req.AdditionalInfo,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func linkBillHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		var req BillRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		c, err := svc.LinkBill(r.Context(), ActorFromContext(r.Context()), id, req.BillID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}
