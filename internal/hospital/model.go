package hospital

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RolePathologist  Role = "pathologist"
	RolePharmacist   Role = "pharmacist"
	RoleReceptionist Role = "receptionist"
	RoleAdmin        Role = "admin"
	RolePatient      Role = "patient"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   int64
	Role Role
}

type ConsultationStatus string

const (
	ConsultationRequested ConsultationStatus = "requested"
	ConsultationScheduled ConsultationStatus = "scheduled"
	ConsultationOngoing   ConsultationStatus = "ongoing"
	ConsultationCompleted ConsultationStatus = "completed"
	ConsultationCancelled ConsultationStatus = "cancelled"
)

type AppointmentType string

const (
	AppointmentRegular      AppointmentType = "regular"
	AppointmentFollowUp     AppointmentType = "follow-up"
	AppointmentEmergency    AppointmentType = "emergency"
	AppointmentConsultation AppointmentType = "consultation"
)

type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportCompleted ReportStatus = "completed"
)

type PrescriptionStatus string

const (
	PrescriptionPending            PrescriptionStatus = "pending"
	PrescriptionDispensed          PrescriptionStatus = "dispensed"
	PrescriptionPartiallyDispensed PrescriptionStatus = "partially_dispensed"
	PrescriptionCancelled          PrescriptionStatus = "cancelled"
)

type EquipmentOrderStatus string

const (
	OrderRequested EquipmentOrderStatus = "requested"
	OrderOrdered   EquipmentOrderStatus = "ordered"
	OrderCancelled EquipmentOrderStatus = "cancelled"
)

type PatientInfo struct {
	Age        int    `json:"age"`
	BloodGroup string `json:"bloodGrp"`
}

type Patient struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Info        PatientInfo `json:"patient_info"`
	PhoneNumber string      `json:"phone_number"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Doctor only carries the reference to the employee holding the display name.
type Doctor struct {
	ID         int64
	EmployeeID int64
}

type Report struct {
	ID          uuid.UUID    `json:"id"`
	Status      ReportStatus `json:"status"`
	Title       string       `json:"title"`
	Type        string       `json:"type,omitempty"`
	Description string       `json:"description,omitempty"`
	ReportText  string       `json:"reportText,omitempty"`
	ReportFile  string       `json:"reportFile,omitempty"`
	FileKey     string       `json:"fileKey,omitempty"`
	CreatedBy   *int64       `json:"createdBy,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type Feedback struct {
	Rating    int       `json:"rating"`
	Comments  string    `json:"comments,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Consultation struct {
	ID              int64              `json:"id"`
	PatientID       int64              `json:"patient_id"`
	DoctorID        int64              `json:"doctor_id"`
	Status          ConsultationStatus `json:"status"`
	AppointmentType AppointmentType    `json:"appointment_type,omitempty"`
	BookedAt        *time.Time         `json:"booked_date_time,omitempty"`
	ActualStart     *time.Time         `json:"actual_start_datetime,omitempty"`
	Reason          string             `json:"reason,omitempty"`
	Remark          string             `json:"remark,omitempty"`
	AdditionalInfo  string             `json:"additional_info,omitempty"`
	Diagnosis       []string           `json:"diagnosis"`
	Prescriptions   []int64            `json:"prescription"`
	Reports         []Report           `json:"reports"`
	BillID          *string            `json:"bill_id,omitempty"`
	Feedback        *Feedback          `json:"feedback,omitempty"`
	CreatedBy       *int64             `json:"created_by,omitempty"`
	Version         int                `json:"-"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// ConsultationDetail is a consultation with its doctor's display name resolved.
type ConsultationDetail struct {
	Consultation
	DoctorName string `json:"doctorName"`
}

type PrescriptionEntry struct {
	ID         uuid.UUID `json:"id"`
	MedicineID int64     `json:"medicine_id"`
	Dosage     string    `json:"dosage,omitempty"`
	Frequency  string    `json:"frequency,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	Quantity   int       `json:"quantity"`
	Dispensed  int       `json:"dispensed_qty"`
}

type Prescription struct {
	ID             int64               `json:"id"`
	ConsultationID *int64              `json:"consultation_id,omitempty"`
	Date           time.Time           `json:"prescriptionDate"`
	Status         PrescriptionStatus  `json:"status"`
	Entries        []PrescriptionEntry `json:"entries"`
	Version        int                 `json:"-"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

type Equipment struct {
	ID            int64                `json:"id"`
	Name          string               `json:"equipment_name"`
	OwnerID       *string              `json:"owner_id,omitempty"`
	Quantity      int                  `json:"quantity"`
	OrderStatus   EquipmentOrderStatus `json:"order_status,omitempty"`
	InstalledAt   *time.Time           `json:"installation_date,omitempty"`
	LastServiceAt *time.Time           `json:"last_service_date,omitempty"`
	NextServiceAt *time.Time           `json:"next_service_date,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// Available reports whether any unit of the equipment is in stock.
func (e Equipment) Available() bool {
	return e.Quantity > 0
}

type EventLog struct {
	ID         int64
	EventType  string
	EntityKind string
	EntityID   string
	ActorID    *int64
	Payload    []byte
	CreatedAt  time.Time
}
