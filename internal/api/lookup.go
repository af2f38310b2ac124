package api

import (
	"net/http"
	"strings"

	"github.com/hackgods/hospital-workflow/internal/hospital"
)

func registerPatientHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterPatientRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		p, err := svc.RegisterPatient(r.Context(), ActorFromContext(r.Context()), hospital.Patient{
			Name:        req.Name,
			Info:        req.Info,
			PhoneNumber: req.PhoneNumber,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func findPatientTestsHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.FindPatientTests(r.Context(), ActorFromContext(r.Context()), r.URL.Query().Get("searchById"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func searchEquipmentHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.SearchEquipment(r.Context(), ActorFromContext(r.Context()), r.URL.Query().Get("searchBy"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func addEquipmentHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddEquipmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		e, err := svc.AddEquipment(r.Context(), ActorFromContext(r.Context()), hospital.NewEquipment{
			Name:          req.Name,
			OwnerID:       req.OwnerID,
			Quantity:      req.Quantity,
			InstalledAt:   req.InstalledAt,
			NextServiceAt: req.NextServiceAt,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func updateEquipmentOrderHandler(svc *hospital.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		var req UpdateOrderStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		to := hospital.EquipmentOrderStatus(strings.ToLower(strings.TrimSpace(req.OrderStatus)))
		e, err := svc.UpdateEquipmentOrder(r.Context(), ActorFromContext(r.Context()), id, to)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}
