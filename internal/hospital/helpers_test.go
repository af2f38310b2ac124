package hospital

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/hospital-workflow/internal/redis"
)

const (
	testDoctorID   int64 = 1
	testEmployeeID int64 = 11
	testDoctorName       = "Dr. Meredith Grey"
)

var (
	doctorActor       = Actor{ID: 501, Role: RoleDoctor}
	pathologistActor  = Actor{ID: 601, Role: RolePathologist}
	pharmacistActor   = Actor{ID: 701, Role: RolePharmacist}
	receptionistActor = Actor{ID: 801, Role: RoleReceptionist}
	adminActor        = Actor{ID: 901, Role: RoleAdmin}
)

// recordingRemover records every delete and optionally fails them all.
type recordingRemover struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (r *recordingRemover) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return r.err
}

func (r *recordingRemover) removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

// busyLocker refuses every key with the given prefix as if another writer
// held it, and runs the rest under a local lock.
type busyLocker struct {
	prefix string
	next   redisclient.Locker
}

func (b busyLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.HasPrefix(key, b.prefix) {
		return redisclient.ErrLockNotAcquired
	}
	return b.next.WithLock(ctx, key, fn)
}

// countingRepo counts patient and consultation lookups made through it.
// A non-nil saveConsultationErr makes every consultation save fail.
type countingRepo struct {
	*MemoryRepository
	patientLookups      atomic.Int32
	consultationListing atomic.Int32
	saveConsultationErr error
}

func (c *countingRepo) SaveConsultation(ctx context.Context, doc Consultation) (*Consultation, error) {
	if c.saveConsultationErr != nil {
		return nil, c.saveConsultationErr
	}
	return c.MemoryRepository.SaveConsultation(ctx, doc)
}

func (c *countingRepo) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	c.patientLookups.Add(1)
	return c.MemoryRepository.GetPatientByID(ctx, id)
}

func (c *countingRepo) ListConsultationsByPatient(ctx context.Context, patientID int64) ([]ConsultationDetail, error) {
	c.consultationListing.Add(1)
	return c.MemoryRepository.ListConsultationsByPatient(ctx, patientID)
}

type fixture struct {
	svc     *Service
	repo    *MemoryRepository
	files   *recordingRemover
	clock   time.Time
	counted *countingRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	repo.AddDoctor(testDoctorID, testEmployeeID, testDoctorName)

	counted := &countingRepo{MemoryRepository: repo}
	files := &recordingRemover{}
	svc := NewService(counted, redisclient.NewLocalLocker(), files, zerolog.Nop())

	f := &fixture{
		svc:     svc,
		repo:    repo,
		files:   files,
		clock:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		counted: counted,
	}
	svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) patient(t *testing.T, name string) *Patient {
	t.Helper()
	p, err := f.svc.RegisterPatient(context.Background(), receptionistActor, Patient{
		Name: name,
		Info: PatientInfo{Age: 42, BloodGroup: "O+"},
	})
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	return p
}

func (f *fixture) consultation(t *testing.T, patientID int64) *Consultation {
	t.Helper()
	c, err := f.svc.CreateConsultation(context.Background(), receptionistActor, NewConsultation{
		PatientID: patientID,
		DoctorID:  testDoctorID,
		Reason:    "routine check",
	})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}
	return c
}

func (f *fixture) prescription(t *testing.T, quantities ...int) *Prescription {
	t.Helper()
	lines := make([]NewPrescriptionEntry, 0, len(quantities))
	for i, q := range quantities {
		lines = append(lines, NewPrescriptionEntry{
			MedicineID: int64(100 + i),
			Dosage:     "500mg",
			Frequency:  "twice daily",
			Duration:   "10 days",
			Quantity:   q,
		})
	}
	p, err := f.svc.CreatePrescription(context.Background(), doctorActor, nil, lines)
	if err != nil {
		t.Fatalf("CreatePrescription: %v", err)
	}
	return p
}
