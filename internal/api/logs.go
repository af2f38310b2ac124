package api

import (
	"net/http"
	"strconv"

	"github.com/hackgods/hospital-workflow/internal/hospital"
)

// logFilter reads ?subjectId= and ?limit= from the query string.
func logFilter(w http.ResponseWriter, r *http.Request) (hospital.LogFilter, bool) {
	var f hospital.LogFilter
	q := r.URL.Query()

	if raw := q.Get("subjectId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_subjectId", "subjectId must be numeric")
			return f, false
		}
		f.SubjectID = &id
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be numeric")
			return f, false
		}
		f.Limit = n
	}
	return f, true
}

// recordHandler and listHandler share the decode/encode plumbing of the
// four log kinds.
func recordHandler[T any](record func(r *http.Request, v T) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v T
		if !decodeJSON(w, r, &v) {
			return
		}
		out, err := record(r, v)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func listHandler[T any](list func(r *http.Request, f hospital.LogFilter) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := logFilter(w, r)
		if !ok {
			return
		}
		items, err := list(r, f)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func recordLoginHandler(svc *hospital.Service) http.HandlerFunc {
	return recordHandler(func(r *http.Request, l hospital.LoginLog) (*hospital.LoginLog, error) {
		return svc.RecordLogin(r.Context(), ActorFromContext(r.Context()), l)
	})
}

func listLoginLogsHandler(svc *hospital.Service) http.HandlerFunc {
	return listHandler(func(r *http.Request, f hospital.LogFilter) ([]hospital.LoginLog, error) {
		return svc.LoginLogs(r.Context(), ActorFromContext(r.Context()), f)
	})
}

func recordBedHandler(svc *hospital.Service) http.HandlerFunc {
	return recordHandler(func(r *http.Request, l hospital.BedLog) (*hospital.BedLog, error) {
		return svc.RecordBed(r.Context(), ActorFromContext(r.Context()), l)
	})
}

func listBedLogsHandler(svc *hospital.Service) http.HandlerFunc {
	return listHandler(func(r *http.Request, f hospital.LogFilter) ([]hospital.BedLog, error) {
		return svc.BedLogs(r.Context(), ActorFromContext(r.Context()), f)
	})
}

func recordInventoryHandler(svc *hospital.Service) http.HandlerFunc {
	return recordHandler(func(r *http.Request, l hospital.MedicineInventoryLog) (*hospital.MedicineInventoryLog, error) {
		return svc.RecordInventory(r.Context(), ActorFromContext(r.Context()), l)
	})
}

func listInventoryLogsHandler(svc *hospital.Service) http.HandlerFunc {
	return listHandler(func(r *http.Request, f hospital.LogFilter) ([]hospital.MedicineInventoryLog, error) {
		return svc.InventoryLogs(r.Context(), ActorFromContext(r.Context()), f)
	})
}

func recordFinanceHandler(svc *hospital.Service) http.HandlerFunc {
	return recordHandler(func(r *http.Request, l hospital.FinanceLog) (*hospital.FinanceLog, error) {
		return svc.RecordFinance(r.Context(), ActorFromContext(r.Context()), l)
	})
}

func listFinanceLogsHandler(svc *hospital.Service) http.HandlerFunc {
	return listHandler(func(r *http.Request, f hospital.LogFilter) ([]hospital.FinanceLog, error) {
		return svc.FinanceLogs(r.Context(), ActorFromContext(r.Context()), f)
	})
}
