package hospital

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for local development and
// tests. Documents are copied on every read and write so callers never share
// state with the store, mirroring a real document database.
type MemoryRepository struct {
	mu sync.Mutex

	patients      map[int64]Patient
	employees     map[int64]string
	doctors       map[int64]Doctor
	consultations map[int64]Consultation
	prescriptions map[int64]Prescription
	equipment     map[int64]Equipment

	loginLogs     []LoginLog
	bedLogs       []BedLog
	inventoryLogs []MedicineInventoryLog
	financeLogs   []FinanceLog
	events        []EventLog

	nextPatient      int64
	nextConsultation int64
	nextPrescription int64
	nextEquipment    int64
	nextLog          int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:         make(map[int64]Patient),
		employees:        make(map[int64]string),
		doctors:          make(map[int64]Doctor),
		consultations:    make(map[int64]Consultation),
		prescriptions:    make(map[int64]Prescription),
		equipment:        make(map[int64]Equipment),
		nextPatient:      10000,
		nextConsultation: 1,
		nextPrescription: 10000,
		nextEquipment:    10000,
		nextLog:          1,
	}
}

// AddDoctor registers a doctor backed by an employee with the given display name.
// An empty name leaves the employee reference dangling.
func (m *MemoryRepository) AddDoctor(doctorID, employeeID int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name != "" {
		m.employees[employeeID] = name
	}
	m.doctors[doctorID] = Doctor{ID: doctorID, EmployeeID: employeeID}
}

// Events returns a copy of the recorded workflow events.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EventLog(nil), m.events...)
}

func cloneConsultation(c Consultation) Consultation {
	c.Diagnosis = append([]string{}, c.Diagnosis...)
	c.Prescriptions = append([]int64{}, c.Prescriptions...)
	c.Reports = append([]Report{}, c.Reports...)
	if c.Feedback != nil {
		f := *c.Feedback
		c.Feedback = &f
	}
	return c
}

func clonePrescription(p Prescription) Prescription {
	p.Entries = append([]PrescriptionEntry{}, p.Entries...)
	return p
}

func (m *MemoryRepository) CreatePatient(_ context.Context, p Patient) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.nextPatient
	m.nextPatient++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[p.ID] = p
	return &p, nil
}

func (m *MemoryRepository) GetPatientByID(_ context.Context, id int64) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetDoctorByID(_ context.Context, id int64) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemoryRepository) CreateConsultation(_ context.Context, c Consultation) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c = cloneConsultation(c)
	c.ID = m.nextConsultation
	m.nextConsultation++
	c.Version = 1
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.consultations[c.ID] = c

	out := cloneConsultation(c)
	return &out, nil
}

func (m *MemoryRepository) GetConsultationByID(_ context.Context, id int64) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.consultations[id]
	if !ok {
		return nil, ErrConsultationNotFound
	}
	out := cloneConsultation(c)
	return &out, nil
}

func (m *MemoryRepository) ListConsultationsByPatient(_ context.Context, patientID int64) ([]ConsultationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []ConsultationDetail
	for _, c := range m.consultations {
		if c.PatientID != patientID {
			continue
		}
		name := ""
		if d, ok := m.doctors[c.DoctorID]; ok {
			name = m.employees[d.EmployeeID]
		}
		result = append(result, ConsultationDetail{Consultation: cloneConsultation(c), DoctorName: name})
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].ActualStart, result[j].ActualStart
		switch {
		case a == nil && b == nil:
			return result[i].ID > result[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return result[i].ID > result[j].ID
		}
		return a.After(*b)
	})
	return result, nil
}

func (m *MemoryRepository) SaveConsultation(_ context.Context, c Consultation) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.consultations[c.ID]
	if !ok {
		return nil, ErrConsultationNotFound
	}
	if current.Version != c.Version {
		return nil, ErrVersionConflict
	}

	// patient, doctor and booking details are immutable once created
	c.PatientID = current.PatientID
	c.DoctorID = current.DoctorID
	c.AppointmentType = current.AppointmentType
	c.BookedAt = current.BookedAt
	c.Reason = current.Reason
	c.CreatedBy = current.CreatedBy
	c.CreatedAt = current.CreatedAt

	c = cloneConsultation(c)
	c.Version++
	c.UpdatedAt = time.Now()
	m.consultations[c.ID] = c

	out := cloneConsultation(c)
	return &out, nil
}

func (m *MemoryRepository) FindStaleRequested(_ context.Context, bookedBefore time.Time, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []Consultation
	for _, c := range m.consultations {
		if c.Status == ConsultationRequested && c.BookedAt != nil && c.BookedAt.Before(bookedBefore) {
			stale = append(stale, c)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if stale[i].BookedAt.Equal(*stale[j].BookedAt) {
			return stale[i].ID < stale[j].ID
		}
		return stale[i].BookedAt.Before(*stale[j].BookedAt)
	})

	ids := make([]int64, 0, len(stale))
	for _, c := range stale {
		if len(ids) == limit {
			break
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (m *MemoryRepository) CreatePrescription(_ context.Context, p Prescription) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clonePrescription(p)
	p.ID = m.nextPrescription
	m.nextPrescription++
	p.Version = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.prescriptions[p.ID] = p

	out := clonePrescription(p)
	return &out, nil
}

func (m *MemoryRepository) GetPrescriptionByID(_ context.Context, id int64) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prescriptions[id]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	out := clonePrescription(p)
	return &out, nil
}

func (m *MemoryRepository) SavePrescription(_ context.Context, p Prescription) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.prescriptions[p.ID]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	if current.Version != p.Version {
		return nil, ErrVersionConflict
	}

	p.ConsultationID = current.ConsultationID
	p.Date = current.Date
	p.CreatedAt = current.CreatedAt

	p = clonePrescription(p)
	p.Version++
	p.UpdatedAt = time.Now()
	m.prescriptions[p.ID] = p

	out := clonePrescription(p)
	return &out, nil
}

func (m *MemoryRepository) DeletePrescription(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prescriptions[id]; !ok {
		return ErrPrescriptionNotFound
	}
	delete(m.prescriptions, id)
	return nil
}

func (m *MemoryRepository) CreateEquipment(_ context.Context, e Equipment) (*Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.nextEquipment
	m.nextEquipment++
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	m.equipment[e.ID] = e
	return &e, nil
}

func (m *MemoryRepository) GetEquipmentByID(_ context.Context, id int64) (*Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.equipment[id]
	if !ok {
		return nil, ErrEquipmentNotFound
	}
	return &e, nil
}

func (m *MemoryRepository) SearchEquipment(_ context.Context, text string) ([]Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	needle := strings.ToLower(text)
	var result []Equipment
	for _, e := range m.equipment {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryRepository) UpdateEquipmentOrderStatus(_ context.Context, id int64, from, to EquipmentOrderStatus) (*Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.equipment[id]
	if !ok || e.OrderStatus != from {
		return nil, ErrEquipmentNotFound
	}
	e.OrderStatus = to
	e.UpdatedAt = time.Now()
	m.equipment[id] = e
	return &e, nil
}

func (m *MemoryRepository) logID() int64 {
	id := m.nextLog
	m.nextLog++
	return id
}

func (m *MemoryRepository) InsertLoginLog(_ context.Context, l LoginLog) (*LoginLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.logID()
	m.loginLogs = append(m.loginLogs, l)
	return &l, nil
}

func (m *MemoryRepository) InsertBedLog(_ context.Context, l BedLog) (*BedLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.logID()
	m.bedLogs = append(m.bedLogs, l)
	return &l, nil
}

func (m *MemoryRepository) InsertInventoryLog(_ context.Context, l MedicineInventoryLog) (*MedicineInventoryLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.logID()
	m.inventoryLogs = append(m.inventoryLogs, l)
	return &l, nil
}

func (m *MemoryRepository) InsertFinanceLog(_ context.Context, l FinanceLog) (*FinanceLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.logID()
	m.financeLogs = append(m.financeLogs, l)
	return &l, nil
}

// newestFirst walks logs backwards, keeping those accepted by match, up to limit.
func newestFirst[T any](logs []T, limit int, match func(T) bool) []T {
	result := []T{}
	for i := len(logs) - 1; i >= 0 && len(result) < limit; i-- {
		if match(logs[i]) {
			result = append(result, logs[i])
		}
	}
	return result
}

func (m *MemoryRepository) ListLoginLogs(_ context.Context, f LogFilter) ([]LoginLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.loginLogs, f.Limit, func(l LoginLog) bool {
		return f.SubjectID == nil || l.UserID == *f.SubjectID
	}), nil
}

func (m *MemoryRepository) ListBedLogs(_ context.Context, f LogFilter) ([]BedLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.bedLogs, f.Limit, func(l BedLog) bool {
		return f.SubjectID == nil || (l.PatientID != nil && *l.PatientID == *f.SubjectID)
	}), nil
}

func (m *MemoryRepository) ListInventoryLogs(_ context.Context, f LogFilter) ([]MedicineInventoryLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.inventoryLogs, f.Limit, func(l MedicineInventoryLog) bool {
		return f.SubjectID == nil || l.MedicineID == *f.SubjectID
	}), nil
}

func (m *MemoryRepository) ListFinanceLogs(_ context.Context, f LogFilter) ([]FinanceLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.financeLogs, f.Limit, func(l FinanceLog) bool {
		return f.SubjectID == nil || (l.UserID != nil && *l.UserID == *f.SubjectID)
	}), nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}
