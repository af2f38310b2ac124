package hospital

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const consultationColumns = `
	c.id, c.patient_id, c.doctor_id, c.status, c.appointment_type,
	c.booked_date_time, c.actual_start_datetime, c.reason, c.remark, c.additional_info,
	c.diagnosis, c.prescription, c.reports, c.bill_id, c.feedback, c.created_by,
	c.version, c.created_at, c.updated_at`

const prescriptionColumns = `id, consultation_id, prescription_date, status, entries, version, created_at, updated_at`

const equipmentColumns = `id, equipment_name, owner_id, quantity, order_status,
	installation_date, last_service_date, next_service_date, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Info.Age,
		&p.Info.BloodGroup,
		&p.PhoneNumber,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

// scanConsultation reads consultationColumns plus any extra destinations
// appended after them.
func scanConsultation(row pgx.Row, extra ...any) (*Consultation, error) {
	var c Consultation
	var diagnosis, prescriptions, reports, feedback []byte

	dest := []any{
		&c.ID,
		&c.PatientID,
		&c.DoctorID,
		&c.Status,
		&c.AppointmentType,
		&c.BookedAt,
		&c.ActualStart,
		&c.Reason,
		&c.Remark,
		&c.AdditionalInfo,
		&diagnosis,
		&prescriptions,
		&reports,
		&c.BillID,
		&feedback,
		&c.CreatedBy,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConsultationNotFound
		}
		return nil, err
	}

	if err := unmarshalDocument(diagnosis, &c.Diagnosis); err != nil {
		return nil, fmt.Errorf("decode diagnosis: %w", err)
	}
	if err := unmarshalDocument(prescriptions, &c.Prescriptions); err != nil {
		return nil, fmt.Errorf("decode prescription refs: %w", err)
	}
	if err := unmarshalDocument(reports, &c.Reports); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	if len(feedback) > 0 {
		c.Feedback = &Feedback{}
		if err := json.Unmarshal(feedback, c.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback: %w", err)
		}
	}

	if c.Diagnosis == nil {
		c.Diagnosis = []string{}
	}
	if c.Prescriptions == nil {
		c.Prescriptions = []int64{}
	}
	if c.Reports == nil {
		c.Reports = []Report{}
	}
	return &c, nil
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	var entries []byte

	err := row.Scan(
		&p.ID,
		&p.ConsultationID,
		&p.Date,
		&p.Status,
		&entries,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}

	if err := unmarshalDocument(entries, &p.Entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	if p.Entries == nil {
		p.Entries = []PrescriptionEntry{}
	}
	return &p, nil
}

func scanEquipment(row pgx.Row) (*Equipment, error) {
	var e Equipment

	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.OwnerID,
		&e.Quantity,
		&e.OrderStatus,
		&e.InstalledAt,
		&e.LastServiceAt,
		&e.NextServiceAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEquipmentNotFound
		}
		return nil, err
	}
	return &e, nil
}

func unmarshalDocument(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func marshalDocument(v any) ([]byte, error) {
	return json.Marshal(v)
}

func marshalOptional(v any, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (name, age, blood_group, phone_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, name, age, blood_group, phone_number, created_at, updated_at
	`, p.Name, p.Info.Age, p.Info.BloodGroup, p.PhoneNumber)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, age, blood_group, phone_number, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	var d Doctor
	var employeeID *int64

	err := r.pool.QueryRow(ctx, `
		SELECT id, employee_id
		FROM doctors
		WHERE id = $1
	`, id).Scan(&d.ID, &employeeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	if employeeID != nil {
		d.EmployeeID = *employeeID
	}
	return &d, nil
}

// Consultations

func (r *PgRepository) CreateConsultation(ctx context.Context, c Consultation) (*Consultation, error) {
	diagnosis, err := marshalDocument(c.Diagnosis)
	if err != nil {
		return nil, err
	}
	prescriptions, err := marshalDocument(c.Prescriptions)
	if err != nil {
		return nil, err
	}
	reports, err := marshalDocument(c.Reports)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO consultations AS c (
			patient_id, doctor_id, status, appointment_type, booked_date_time,
			actual_start_datetime, reason, remark, additional_info,
			diagnosis, prescription, reports, created_by, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, now(), now())
		RETURNING `+consultationColumns,
		c.PatientID, c.DoctorID, c.Status, c.AppointmentType, c.BookedAt,
		c.ActualStart, c.Reason, c.Remark, c.AdditionalInfo,
		diagnosis, prescriptions, reports, c.CreatedBy,
	)
	return scanConsultation(row)
}

func (r *PgRepository) GetConsultationByID(ctx context.Context, id int64) (*Consultation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations c
		WHERE c.id = $1
	`, id)
	return scanConsultation(row)
}

func (r *PgRepository) ListConsultationsByPatient(ctx context.Context, patientID int64) ([]ConsultationDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+consultationColumns+`, COALESCE(e.name, '')
		FROM consultations c
		LEFT JOIN doctors d ON d.id = c.doctor_id
		LEFT JOIN employees e ON e.id = d.employee_id
		WHERE c.patient_id = $1
		ORDER BY c.actual_start_datetime DESC NULLS LAST, c.id DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ConsultationDetail
	for rows.Next() {
		var doctorName string
		c, err := scanConsultation(rows, &doctorName)
		if err != nil {
			return nil, err
		}
		result = append(result, ConsultationDetail{Consultation: *c, DoctorName: doctorName})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) FindStaleRequested(ctx context.Context, bookedBefore time.Time, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id
		FROM consultations
		WHERE status = 'requested'
		  AND booked_date_time IS NOT NULL
		  AND booked_date_time < $1
		ORDER BY booked_date_time, id
		LIMIT $2
	`, bookedBefore, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// SaveConsultation overwrites the mutable part of the document in one
// statement, provided nobody bumped its version since it was read.
func (r *PgRepository) SaveConsultation(ctx context.Context, c Consultation) (*Consultation, error) {
	diagnosis, err := marshalDocument(c.Diagnosis)
	if err != nil {
		return nil, err
	}
	prescriptions, err := marshalDocument(c.Prescriptions)
	if err != nil {
		return nil, err
	}
	reports, err := marshalDocument(c.Reports)
	if err != nil {
		return nil, err
	}
	feedback, err := marshalOptional(c.Feedback, c.Feedback != nil)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE consultations AS c
		SET status = $2,
		    actual_start_datetime = $3,
		    remark = $4,
		    additional_info = $5,
		    diagnosis = $6,
		    prescription = $7,
		    reports = $8,
		    bill_id = $9,
		    feedback = $10,
		    version = c.version + 1,
		    updated_at = now()
		WHERE c.id = $1
		  AND c.version = $11
		RETURNING `+consultationColumns,
		c.ID, c.Status, c.ActualStart, c.Remark, c.AdditionalInfo,
		diagnosis, prescriptions, reports, c.BillID, feedback, c.Version,
	)

	saved, err := scanConsultation(row)
	if errors.Is(err, ErrConsultationNotFound) {
		return nil, r.missingOrStale(ctx, "consultations", c.ID, ErrConsultationNotFound)
	}
	return saved, err
}

// Prescriptions

func (r *PgRepository) CreatePrescription(ctx context.Context, p Prescription) (*Prescription, error) {
	entries, err := marshalDocument(p.Entries)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO prescriptions (consultation_id, prescription_date, status, entries, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, now(), now())
		RETURNING `+prescriptionColumns,
		p.ConsultationID, p.Date, p.Status, entries,
	)
	return scanPrescription(row)
}

func (r *PgRepository) GetPrescriptionByID(ctx context.Context, id int64) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE id = $1
	`, id)
	return scanPrescription(row)
}

func (r *PgRepository) SavePrescription(ctx context.Context, p Prescription) (*Prescription, error) {
	entries, err := marshalDocument(p.Entries)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE prescriptions
		SET status = $2,
		    entries = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $4
		RETURNING `+prescriptionColumns,
		p.ID, p.Status, entries, p.Version,
	)

	saved, err := scanPrescription(row)
	if errors.Is(err, ErrPrescriptionNotFound) {
		return nil, r.missingOrStale(ctx, "prescriptions", p.ID, ErrPrescriptionNotFound)
	}
	return saved, err
}

func (r *PgRepository) DeletePrescription(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prescription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

// missingOrStale tells a vanished document apart from a lost version race.
func (r *PgRepository) missingOrStale(ctx context.Context, table string, id int64, notFound error) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s existence: %w", table, err)
	}
	if exists {
		return ErrVersionConflict
	}
	return notFound
}

// Equipment

func (r *PgRepository) CreateEquipment(ctx context.Context, e Equipment) (*Equipment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO equipment (
			equipment_name, owner_id, quantity, order_status,
			installation_date, last_service_date, next_service_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+equipmentColumns,
		e.Name, e.OwnerID, e.Quantity, e.OrderStatus,
		e.InstalledAt, e.LastServiceAt, e.NextServiceAt,
	)
	return scanEquipment(row)
}

func (r *PgRepository) GetEquipmentByID(ctx context.Context, id int64) (*Equipment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+equipmentColumns+`
		FROM equipment
		WHERE id = $1
	`, id)
	return scanEquipment(row)
}

func (r *PgRepository) SearchEquipment(ctx context.Context, text string) ([]Equipment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+equipmentColumns+`
		FROM equipment
		WHERE equipment_name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY id
	`, escapeLike(text))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateEquipmentOrderStatus(ctx context.Context, id int64, from, to EquipmentOrderStatus) (*Equipment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE equipment
		SET order_status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND order_status = $3
		RETURNING `+equipmentColumns,
		id, to, from,
	)
	return scanEquipment(row)
}

// Logs

func (r *PgRepository) InsertLoginLog(ctx context.Context, l LoginLog) (*LoginLog, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO login_logs (user_id, access_time, task)
		VALUES ($1, $2, $3)
		RETURNING id
	`, l.UserID, l.AccessTime, l.Task).Scan(&l.ID)
	if err != nil {
		return nil, fmt.Errorf("insert login log: %w", err)
	}
	return &l, nil
}

func (r *PgRepository) InsertBedLog(ctx context.Context, l BedLog) (*BedLog, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bed_logs (bed_id, bed_type, status, time, patient_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, l.BedID, l.BedType, l.Status, l.Time, l.PatientID).Scan(&l.ID)
	if err != nil {
		return nil, fmt.Errorf("insert bed log: %w", err)
	}
	return &l, nil
}

func (r *PgRepository) InsertInventoryLog(ctx context.Context, l MedicineInventoryLog) (*MedicineInventoryLog, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO medicine_inventory_logs (med_id, quantity, total_cost, order_date, supplier, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, l.MedicineID, l.Quantity, l.TotalCost, l.OrderDate, l.Supplier, l.Status).Scan(&l.ID)
	if err != nil {
		return nil, fmt.Errorf("insert inventory log: %w", err)
	}
	return &l, nil
}

func (r *PgRepository) InsertFinanceLog(ctx context.Context, l FinanceLog) (*FinanceLog, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO finance_logs (
			user_id, transaction_type, amount, date, description,
			allowance, basic_salary, deduction, net_salary
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, l.UserID, l.TransactionType, l.Amount, l.Date, l.Description,
		l.Allowance, l.BasicSalary, l.Deduction, l.NetSalary).Scan(&l.ID)
	if err != nil {
		return nil, fmt.Errorf("insert finance log: %w", err)
	}
	return &l, nil
}

func (r *PgRepository) ListLoginLogs(ctx context.Context, f LogFilter) ([]LoginLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, access_time, task
		FROM login_logs
		WHERE ($1::bigint IS NULL OR user_id = $1)
		ORDER BY access_time DESC
		LIMIT $2
	`, f.SubjectID, f.Limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (LoginLog, error) {
		var l LoginLog
		err := row.Scan(&l.ID, &l.UserID, &l.AccessTime, &l.Task)
		return l, err
	})
}

func (r *PgRepository) ListBedLogs(ctx context.Context, f LogFilter) ([]BedLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bed_id, bed_type, status, time, patient_id
		FROM bed_logs
		WHERE ($1::bigint IS NULL OR patient_id = $1)
		ORDER BY time DESC
		LIMIT $2
	`, f.SubjectID, f.Limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BedLog, error) {
		var l BedLog
		err := row.Scan(&l.ID, &l.BedID, &l.BedType, &l.Status, &l.Time, &l.PatientID)
		return l, err
	})
}

func (r *PgRepository) ListInventoryLogs(ctx context.Context, f LogFilter) ([]MedicineInventoryLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, med_id, quantity, total_cost, order_date, supplier, status
		FROM medicine_inventory_logs
		WHERE ($1::bigint IS NULL OR med_id = $1)
		ORDER BY id DESC
		LIMIT $2
	`, f.SubjectID, f.Limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MedicineInventoryLog, error) {
		var l MedicineInventoryLog
		err := row.Scan(&l.ID, &l.MedicineID, &l.Quantity, &l.TotalCost, &l.OrderDate, &l.Supplier, &l.Status)
		return l, err
	})
}

func (r *PgRepository) ListFinanceLogs(ctx context.Context, f LogFilter) ([]FinanceLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, transaction_type, amount, date, description,
		       allowance, basic_salary, deduction, net_salary
		FROM finance_logs
		WHERE ($1::bigint IS NULL OR user_id = $1)
		ORDER BY date DESC
		LIMIT $2
	`, f.SubjectID, f.Limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (FinanceLog, error) {
		var l FinanceLog
		err := row.Scan(&l.ID, &l.UserID, &l.TransactionType, &l.Amount, &l.Date, &l.Description,
			&l.Allowance, &l.BasicSalary, &l.Deduction, &l.NetSalary)
		return l, err
	})
}

// Events

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_kind, entity_id, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`, ev.EventType, ev.EntityKind, ev.EntityID, ev.ActorID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
