package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-workflow/internal/config"
	"github.com/hackgods/hospital-workflow/internal/db"
	"github.com/hackgods/hospital-workflow/internal/hospital"
	"github.com/hackgods/hospital-workflow/internal/logging"
)

var equipmentNames = []string{
	"Infusion Pump",
	"Syringe Pump",
	"Enteral Feeding Pump",
	"ECG Monitor",
	"Ventilator",
	"Defibrillator",
	"Ultrasound Scanner",
	"X-Ray Machine",
	"Centrifuge",
	"Hematology Analyzer",
	"Autoclave",
	"Pulse Oximeter",
}

var testTitles = []string{
	"CBC",
	"Lipid Profile",
	"Liver Function Test",
	"Thyroid Panel",
	"HbA1c",
	"Urinalysis",
	"Chest X-Ray",
}

var bloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.Env, "info", "seed")
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	if cfg.StoreDriver != config.StorePostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("seed needs STORE_DRIVER=postgres")
	}

	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	faker := gofakeit.New(0)
	repo := hospital.NewPgRepository(pool)
	s := &seeder{faker: faker, pool: pool, repo: repo, log: logger}

	bg := context.Background()
	doctors, err := s.seedDoctors(bg, getInt("SEED_DOCTORS", 40))
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	patients, err := s.seedPatients(bg, getInt("SEED_PATIENTS", 2000))
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := s.seedEquipment(bg, getInt("SEED_EQUIPMENT", 60)); err != nil {
		logger.Fatal().Err(err).Msg("seed equipment")
	}
	if err := s.seedConsultations(bg, doctors, patients, getInt("SEED_CONSULTATIONS", 3000)); err != nil {
		logger.Fatal().Err(err).Msg("seed consultations")
	}

	logger.Info().Msg("seed complete")
}

type seeder struct {
	faker *gofakeit.Faker
	pool  *pgxpool.Pool
	repo  *hospital.PgRepository
	log   zerolog.Logger
}

// seedDoctors inserts one employee per doctor so names resolve through the
// doctor -> employee reference. Every tenth doctor is left without an
// employee to exercise the "Unknown Doctor" fallback.
func (s *seeder) seedDoctors(ctx context.Context, count int) ([]int64, error) {
	s.log.Info().Int("count", count).Msg("seeding doctors")

	specialties := []string{
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Pathology",
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		var employeeID *int64
		if i%10 != 9 {
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO employees (name, role) VALUES ($1, 'doctor') RETURNING id
			`, "Dr. "+s.faker.Name()).Scan(&id)
			if err != nil {
				return nil, err
			}
			employeeID = &id
		}

		var doctorID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO doctors (employee_id, specialization) VALUES ($1, $2) RETURNING id
		`, employeeID, specialties[s.faker.Number(0, len(specialties)-1)]).Scan(&doctorID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, doctorID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.Info().Int("count", len(ids)).Msg("doctors seeded")
	return ids, nil
}

func (s *seeder) seedPatients(ctx context.Context, count int) ([]int64, error) {
	s.log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500
	ids := make([]int64, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO patients (name, age, blood_group, phone_number)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, s.faker.Name(), s.faker.Number(1, 95), bloodGroups[s.faker.Number(0, len(bloodGroups)-1)], s.faker.Phone()).Scan(&id)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		s.log.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return ids, nil
}

func (s *seeder) seedEquipment(ctx context.Context, count int) error {
	s.log.Info().Int("count", count).Msg("seeding equipment")

	statuses := []hospital.EquipmentOrderStatus{hospital.OrderRequested, hospital.OrderOrdered, hospital.OrderCancelled}
	for i := 0; i < count; i++ {
		installed := s.faker.DateRange(time.Now().AddDate(-5, 0, 0), time.Now())
		next := installed.AddDate(1, 0, 0)
		owner := fmt.Sprintf("EMP-%04d", s.faker.Number(1, 9999))

		_, err := s.repo.CreateEquipment(ctx, hospital.Equipment{
			Name:          equipmentNames[i%len(equipmentNames)] + " " + s.faker.LetterN(3),
			OwnerID:       &owner,
			Quantity:      s.faker.Number(0, 20),
			OrderStatus:   statuses[s.faker.Number(0, len(statuses)-1)],
			InstalledAt:   &installed,
			NextServiceAt: &next,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// seedConsultations creates consultations across all lifecycle states.
// Completed ones get a lab report (pending or finished) and a prescription in
// a random dispensing state.
func (s *seeder) seedConsultations(ctx context.Context, doctors, patients []int64, count int) error {
	if len(doctors) == 0 || len(patients) == 0 {
		return fmt.Errorf("need doctors and patients before consultations")
	}
	s.log.Info().Int("count", count).Msg("seeding consultations")

	statuses := []hospital.ConsultationStatus{
		hospital.ConsultationRequested,
		hospital.ConsultationScheduled,
		hospital.ConsultationOngoing,
		hospital.ConsultationCompleted,
		hospital.ConsultationCompleted,
		hospital.ConsultationCancelled,
	}

	for i := 0; i < count; i++ {
		status := statuses[s.faker.Number(0, len(statuses)-1)]
		booked := s.faker.DateRange(time.Now().AddDate(-2, 0, 0), time.Now())

		c := hospital.Consultation{
			PatientID:       patients[s.faker.Number(0, len(patients)-1)],
			DoctorID:        doctors[s.faker.Number(0, len(doctors)-1)],
			Status:          status,
			AppointmentType: hospital.AppointmentRegular,
			BookedAt:        &booked,
			Reason:          s.faker.Phrase(),
		}
		if status == hospital.ConsultationOngoing || status == hospital.ConsultationCompleted {
			start := booked.Add(time.Duration(s.faker.Number(0, 120)) * time.Minute)
			c.ActualStart = &start
		}
		if status == hospital.ConsultationCompleted {
			c.Reports = []hospital.Report{s.fakeReport(c.PatientID, s.faker.Bool())}
		}

		created, err := s.repo.CreateConsultation(ctx, c)
		if err != nil {
			return err
		}
		if (i+1)%500 == 0 {
			s.log.Info().Int("done", i+1).Int("total", count).Msg("consultations seeded")
		}

		if status != hospital.ConsultationCompleted {
			continue
		}
		p, err := s.repo.CreatePrescription(ctx, s.fakePrescription(created.ID))
		if err != nil {
			return err
		}
		created.Prescriptions = append(created.Prescriptions, p.ID)
		if _, err := s.repo.SaveConsultation(ctx, *created); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) fakeReport(patientID int64, done bool) hospital.Report {
	now := time.Now()
	r := hospital.Report{
		ID:          uuid.New(),
		Status:      hospital.ReportPending,
		Title:       testTitles[s.faker.Number(0, len(testTitles)-1)],
		Type:        "lab",
		Description: s.faker.Phrase(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if done {
		r.Status = hospital.ReportCompleted
		r.FileKey = hospital.LegacyReportKey(patientID, r.ID) + ".pdf"
		r.ReportFile = "http://127.0.0.1:9000/hospital-reports/" + r.FileKey
		r.ReportText = r.Title + ".pdf"
	}
	return r
}

func (s *seeder) fakePrescription(consultationID int64) hospital.Prescription {
	entries := make([]hospital.PrescriptionEntry, s.faker.Number(1, 4))
	for i := range entries {
		qty := s.faker.Number(5, 60)
		entries[i] = hospital.PrescriptionEntry{
			ID:         uuid.New(),
			MedicineID: int64(s.faker.Number(1, 500)),
			Dosage:     fmt.Sprintf("%dmg", s.faker.RandomInt([]int{5, 10, 20, 250, 500})),
			Frequency:  s.faker.RandomString([]string{"once daily", "twice daily", "every 8 hours"}),
			Duration:   fmt.Sprintf("%d days", s.faker.Number(3, 30)),
			Quantity:   qty,
			Dispensed:  s.faker.RandomInt([]int{0, 0, qty / 2, qty}),
		}
	}

	return hospital.Prescription{
		ConsultationID: &consultationID,
		Date:           time.Now(),
		Status:         hospital.DeriveStatus(entries),
		Entries:        entries,
	}
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
