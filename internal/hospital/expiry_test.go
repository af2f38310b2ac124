package hospital

import (
	"context"
	"testing"
	"time"
)

func TestExpireStaleConsultations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "John Backus")

	book := func(at time.Time, status ConsultationStatus) *Consultation {
		t.Helper()
		c, err := f.svc.CreateConsultation(ctx, receptionistActor, NewConsultation{
			PatientID: pt.ID,
			DoctorID:  testDoctorID,
			Status:    status,
			BookedAt:  &at,
		})
		if err != nil {
			t.Fatalf("CreateConsultation: %v", err)
		}
		return c
	}

	cutoff := f.clock.Add(-24 * time.Hour)
	stale := book(cutoff.Add(-2*time.Hour), ConsultationRequested)
	staleToo := book(cutoff.Add(-time.Hour), ConsultationRequested)
	fresh := book(cutoff.Add(time.Hour), ConsultationRequested)
	scheduled := book(cutoff.Add(-3*time.Hour), ConsultationScheduled)
	unbooked := f.consultation(t, pt.ID)

	n, err := f.svc.ExpireStaleConsultations(ctx, cutoff, 1)
	if err != nil {
		t.Fatalf("ExpireStaleConsultations: %v", err)
	}
	if n != 1 {
		t.Fatalf("first batch expired %d, want 1", n)
	}
	n, err = f.svc.ExpireStaleConsultations(ctx, cutoff, 0)
	if err != nil {
		t.Fatalf("ExpireStaleConsultations: %v", err)
	}
	if n != 1 {
		t.Fatalf("second batch expired %d, want 1", n)
	}

	want := map[int64]ConsultationStatus{
		stale.ID:     ConsultationCancelled,
		staleToo.ID:  ConsultationCancelled,
		fresh.ID:     ConsultationRequested,
		scheduled.ID: ConsultationScheduled,
		unbooked.ID:  ConsultationRequested,
	}
	for id, status := range want {
		c, _ := f.repo.GetConsultationByID(ctx, id)
		if c.Status != status {
			t.Errorf("consultation %d status = %s, want %s", id, c.Status, status)
		}
	}

	var expiredEvents int
	for _, ev := range f.repo.Events() {
		if ev.EventType == EventConsultationExpired {
			expiredEvents++
			if ev.ActorID != nil {
				t.Errorf("worker events should carry no actor, got %d", *ev.ActorID)
			}
		}
	}
	if expiredEvents != 2 {
		t.Errorf("expired events = %d, want 2", expiredEvents)
	}
}
