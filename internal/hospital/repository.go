package hospital

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrConsultationNotFound = errors.New("consultation not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrEquipmentNotFound    = errors.New("equipment not found")

	// ErrVersionConflict is returned when a document changed between read and write.
	ErrVersionConflict = errors.New("document was modified concurrently")
)

// Repository contains all DB interactions needed by the service.
// Consultation and prescription saves are whole-document writes guarded by
// their Version field.
type Repository interface {
	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)

	CreateConsultation(ctx context.Context, c Consultation) (*Consultation, error)
	GetConsultationByID(ctx context.Context, id int64) (*Consultation, error)
	// Newest actual start first, doctor name resolved through the employee record.
	ListConsultationsByPatient(ctx context.Context, patientID int64) ([]ConsultationDetail, error)
	SaveConsultation(ctx context.Context, c Consultation) (*Consultation, error)
	// Requested consultations booked before the cutoff, oldest booking first.
	FindStaleRequested(ctx context.Context, bookedBefore time.Time, limit int) ([]int64, error)

	CreatePrescription(ctx context.Context, p Prescription) (*Prescription, error)
	GetPrescriptionByID(ctx context.Context, id int64) (*Prescription, error)
	SavePrescription(ctx context.Context, p Prescription) (*Prescription, error)
	// Only used to roll back a prescription that could not be linked.
	DeletePrescription(ctx context.Context, id int64) error

	CreateEquipment(ctx context.Context, e Equipment) (*Equipment, error)
	// Case-insensitive substring match on the equipment name.
	SearchEquipment(ctx context.Context, text string) ([]Equipment, error)
	UpdateEquipmentOrderStatus(ctx context.Context, id int64, from, to EquipmentOrderStatus) (*Equipment, error)
	GetEquipmentByID(ctx context.Context, id int64) (*Equipment, error)

	InsertLoginLog(ctx context.Context, l LoginLog) (*LoginLog, error)
	InsertBedLog(ctx context.Context, l BedLog) (*BedLog, error)
	InsertInventoryLog(ctx context.Context, l MedicineInventoryLog) (*MedicineInventoryLog, error)
	InsertFinanceLog(ctx context.Context, l FinanceLog) (*FinanceLog, error)
	ListLoginLogs(ctx context.Context, f LogFilter) ([]LoginLog, error)
	ListBedLogs(ctx context.Context, f LogFilter) ([]BedLog, error)
	ListInventoryLogs(ctx context.Context, f LogFilter) ([]MedicineInventoryLog, error)
	ListFinanceLogs(ctx context.Context, f LogFilter) ([]FinanceLog, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// FileRemover deletes stored report files by key.
type FileRemover interface {
	Remove(ctx context.Context, key string) error
}

func findReport(reports []Report, id uuid.UUID) int {
	for i := range reports {
		if reports[i].ID == id {
			return i
		}
	}
	return -1
}

func findEntry(entries []PrescriptionEntry, id uuid.UUID) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
