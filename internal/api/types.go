package api

import (
	"time"

	"github.com/hackgods/hospital-workflow/internal/hospital"
)

type RegisterPatientRequest struct {
	Name        string               `json:"name"`
	Info        hospital.PatientInfo `json:"patient_info"`
	PhoneNumber string               `json:"phone_number"`
}

type AddEquipmentRequest struct {
	Name          string     `json:"equipment_name"`
	OwnerID       *string    `json:"owner_id"`
	Quantity      int        `json:"quantity"`
	InstalledAt   *time.Time `json:"installation_date"`
	NextServiceAt *time.Time `json:"next_service_date"`
}

type UpdateOrderStatusRequest struct {
	OrderStatus string `json:"order_status"`
}

type CreateConsultationRequest struct {
	PatientID       int64      `json:"patient_id"`
	DoctorID        int64      `json:"doctor_id"`
	Status          string     `json:"status"`
	AppointmentType string     `json:"appointment_type"`
	BookedAt        *time.Time `json:"booked_date_time"`
	Reason          string     `json:"reason"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type RequestReportRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type FeedbackRequest struct {
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

type DiagnosisRequest struct {
	Diagnosis string `json:"diagnosis"`
}

type NotesRequest struct {
	Remark         *string `json:"remark"`
	AdditionalInfo *string `json:"additional_info"`
}

type BillRequest struct {
	BillID string `json:"bill_id"`
}

type PrescriptionLine struct {
	MedicineID int64  `json:"medicine_id"`
	Dosage     string `json:"dosage"`
	Frequency  string `json:"frequency"`
	Duration   string `json:"duration"`
	Quantity   int    `json:"quantity"`
}

type CreatePrescriptionRequest struct {
	ConsultationID *int64             `json:"consultation_id"`
	Entries        []PrescriptionLine `json:"entries"`
}

type DispenseRequest struct {
	DispensedQty int `json:"dispensed_qty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
