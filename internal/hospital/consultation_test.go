package hospital

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateConsultation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "Katherine Johnson")
	other := f.patient(t, "Dorothy Vaughan")
	self := Actor{ID: pt.ID, Role: RolePatient}

	c, err := f.svc.CreateConsultation(ctx, self, NewConsultation{PatientID: pt.ID, DoctorID: testDoctorID})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}
	if c.Status != ConsultationRequested {
		t.Errorf("status = %s, want requested", c.Status)
	}
	if c.Reports == nil || c.Prescriptions == nil || c.Diagnosis == nil {
		t.Errorf("embedded lists should start empty, got %+v", c)
	}
	if c.CreatedBy == nil || *c.CreatedBy != pt.ID {
		t.Errorf("createdBy = %v, want %d", c.CreatedBy, pt.ID)
	}

	tests := []struct {
		name  string
		actor Actor
		in    NewConsultation
		want  error
	}{
		{"booking for someone else", self, NewConsultation{PatientID: other.ID, DoctorID: testDoctorID}, ErrForbidden},
		{"unknown patient", receptionistActor, NewConsultation{PatientID: 1, DoctorID: testDoctorID}, ErrPatientNotFound},
		{"unknown doctor", receptionistActor, NewConsultation{PatientID: pt.ID, DoctorID: 77}, ErrDoctorNotFound},
		{"created ongoing", receptionistActor, NewConsultation{PatientID: pt.ID, DoctorID: testDoctorID, Status: ConsultationOngoing}, ErrValidation},
		{"bad appointment type", receptionistActor, NewConsultation{PatientID: pt.ID, DoctorID: testDoctorID, AppointmentType: "walk-in"}, ErrValidation},
		{"pharmacist cannot book", pharmacistActor, NewConsultation{PatientID: pt.ID, DoctorID: testDoctorID}, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateConsultation(ctx, tt.actor, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTransitionConsultation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "Hedy Lamarr")
	c := f.consultation(t, pt.ID)

	if _, err := f.svc.TransitionConsultation(ctx, doctorActor, c.ID, ConsultationScheduled); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	started, err := f.svc.TransitionConsultation(ctx, doctorActor, c.ID, ConsultationOngoing)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.ActualStart == nil || !started.ActualStart.Equal(f.clock) {
		t.Fatalf("actual start = %v, want %s", started.ActualStart, f.clock)
	}

	f.advance(30 * time.Minute)
	done, err := f.svc.TransitionConsultation(ctx, doctorActor, c.ID, ConsultationCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.ActualStart.Equal(*started.ActualStart) {
		t.Errorf("completion moved the start time to %s", done.ActualStart)
	}

	if _, err := f.svc.TransitionConsultation(ctx, doctorActor, c.ID, ConsultationCancelled); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Errorf("expected ErrInvalidStatusTransition, got %v", err)
	}
	if _, err := f.svc.TransitionConsultation(ctx, doctorActor, c.ID, "archived"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.TransitionConsultation(ctx, pathologistActor, c.ID, ConsultationCancelled); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.TransitionConsultation(ctx, doctorActor, 4242, ConsultationOngoing); !errors.Is(err, ErrConsultationNotFound) {
		t.Errorf("expected ErrConsultationNotFound, got %v", err)
	}

	var changes int
	for _, ev := range f.repo.Events() {
		if ev.EventType == EventConsultationStatus {
			changes++
		}
	}
	if changes != 3 {
		t.Errorf("status change events = %d, want 3", changes)
	}
}

func TestGetConsultation_PatientAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "Radia Perlman")
	other := f.patient(t, "Sophie Wilson")
	c := f.consultation(t, pt.ID)

	if _, err := f.svc.GetConsultation(ctx, Actor{ID: pt.ID, Role: RolePatient}, c.ID); err != nil {
		t.Errorf("owner should read their consultation: %v", err)
	}
	if _, err := f.svc.GetConsultation(ctx, Actor{ID: other.ID, Role: RolePatient}, c.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.GetConsultation(ctx, doctorActor, c.ID); err != nil {
		t.Errorf("staff should read any consultation: %v", err)
	}
}

func TestAddFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "Annie Easley")
	owner := Actor{ID: pt.ID, Role: RolePatient}
	c := f.consultation(t, pt.ID)

	if _, err := f.svc.AddFeedback(ctx, owner, c.ID, 5, "great"); !errors.Is(err, ErrFeedbackTooEarly) {
		t.Fatalf("expected ErrFeedbackTooEarly, got %v", err)
	}
	if _, err := f.svc.TransitionConsultation(ctx, doctorActor, c.ID, ConsultationCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	for _, rating := range []int{0, 6, -1} {
		if _, err := f.svc.AddFeedback(ctx, owner, c.ID, rating, ""); !errors.Is(err, ErrRatingOutOfRange) {
			t.Errorf("rating %d: expected ErrRatingOutOfRange, got %v", rating, err)
		}
	}
	if _, err := f.svc.AddFeedback(ctx, Actor{ID: pt.ID + 1, Role: RolePatient}, c.ID, 4, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another patient, got %v", err)
	}
	if _, err := f.svc.AddFeedback(ctx, doctorActor, c.ID, 4, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for staff, got %v", err)
	}

	got, err := f.svc.AddFeedback(ctx, owner, c.ID, 4, "thorough")
	if err != nil {
		t.Fatalf("AddFeedback: %v", err)
	}
	if got.Feedback == nil || got.Feedback.Rating != 4 || got.Feedback.Comments != "thorough" {
		t.Errorf("feedback = %+v", got.Feedback)
	}
}
