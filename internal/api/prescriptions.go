package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/hospital-workflow/internal/hospital"
)

func createPrescriptionHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePrescriptionRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		lines := make([]hospital.NewPrescriptionEntry, 0, len(req.Entries))
		for _, e := range req.Entries {
			lines = append(lines, hospital.NewPrescriptionEntry{
				MedicineID: e.MedicineID,
				Dosage:     e.Dosage,
				Frequency:  e.Frequency,
				Duration:   e.Duration,
				Quantity:   e.Quantity,
			})
		}

		p, err := svc.CreatePrescription(r.Context(), ActorFromContext(r.Context()), req.ConsultationID, lines)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func getPrescriptionHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "prescriptionId")
		if !ok {
			return
		}

		p, err := svc.GetPrescription(r.Context(), ActorFromContext(r.Context()), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func cancelPrescriptionHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "prescriptionId")
		if !ok {
			return
		}

		p, err := svc.CancelPrescription(r.Context(), ActorFromContext(r.Context()), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func dispenseHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prescriptionID, ok := int64Param(w, r, "prescriptionId")
		if !ok {
			return
		}
		entryID, err := uuid.Parse(chi.URLParam(r, "entryId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_entryId", "entryId must be a valid UUID")
			return
		}

		var req DispenseRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.Dispense(r.Context(), ActorFromContext(r.Context()), prescriptionID, entryID, req.DispensedQty)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
