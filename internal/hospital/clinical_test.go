package hospital

import (
	"context"
	"errors"
	"testing"
)

func TestDiagnosis_AddAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "Leslie Lamport")
	c := f.consultation(t, pt.ID)

	if _, err := f.svc.AddDiagnosis(ctx, doctorActor, c.ID, " hypertension "); err != nil {
		t.Fatalf("AddDiagnosis: %v", err)
	}
	got, err := f.svc.AddDiagnosis(ctx, doctorActor, c.ID, "type 2 diabetes")
	if err != nil {
		t.Fatalf("AddDiagnosis: %v", err)
	}
	if len(got.Diagnosis) != 2 || got.Diagnosis[0] != "hypertension" || got.Diagnosis[1] != "type 2 diabetes" {
		t.Fatalf("diagnosis = %q", got.Diagnosis)
	}

	got, err = f.svc.UpdateDiagnosis(ctx, doctorActor, c.ID, 1, "prediabetes")
	if err != nil {
		t.Fatalf("UpdateDiagnosis: %v", err)
	}
	if got.Diagnosis[0] != "hypertension" || got.Diagnosis[1] != "prediabetes" {
		t.Errorf("diagnosis = %q", got.Diagnosis)
	}

	stored, _ := f.repo.GetConsultationByID(ctx, c.ID)
	if len(stored.Diagnosis) != 2 || stored.Diagnosis[1] != "prediabetes" {
		t.Errorf("stored diagnosis = %q", stored.Diagnosis)
	}

	var added, updated int
	for _, ev := range f.repo.Events() {
		switch ev.EventType {
		case EventDiagnosisAdded:
			added++
		case EventDiagnosisUpdated:
			updated++
		}
	}
	if added != 2 || updated != 1 {
		t.Errorf("events added=%d updated=%d, want 2 and 1", added, updated)
	}
}

func TestDiagnosis_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "Leslie Lamport")
	c := f.consultation(t, pt.ID)
	if _, err := f.svc.AddDiagnosis(ctx, doctorActor, c.ID, "migraine"); err != nil {
		t.Fatalf("AddDiagnosis: %v", err)
	}

	cancelled := f.consultation(t, pt.ID)
	if _, err := f.svc.TransitionConsultation(ctx, doctorActor, cancelled.ID, ConsultationCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"blank diagnosis", func() error {
			_, err := f.svc.AddDiagnosis(ctx, doctorActor, c.ID, "  ")
			return err
		}, ErrValidation},
		{"nurse cannot diagnose", func() error {
			_, err := f.svc.AddDiagnosis(ctx, Actor{ID: 3, Role: RoleNurse}, c.ID, "flu")
			return err
		}, ErrForbidden},
		{"index past end", func() error {
			_, err := f.svc.UpdateDiagnosis(ctx, doctorActor, c.ID, 1, "flu")
			return err
		}, ErrDiagnosisNotFound},
		{"negative index", func() error {
			_, err := f.svc.UpdateDiagnosis(ctx, doctorActor, c.ID, -1, "flu")
			return err
		}, ErrDiagnosisNotFound},
		{"cancelled consultation", func() error {
			_, err := f.svc.AddDiagnosis(ctx, doctorActor, cancelled.ID, "flu")
			return err
		}, ErrConsultationCancelled},
		{"unknown consultation", func() error {
			_, err := f.svc.AddDiagnosis(ctx, doctorActor, 999, "flu")
			return err
		}, ErrConsultationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	stored, _ := f.repo.GetConsultationByID(ctx, c.ID)
	if len(stored.Diagnosis) != 1 || stored.Diagnosis[0] != "migraine" {
		t.Errorf("rejected edits changed diagnosis: %q", stored.Diagnosis)
	}
}

func TestUpdateNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "Tony Hoare")
	c := f.consultation(t, pt.ID)

	remark := "follow up in two weeks"
	got, err := f.svc.UpdateNotes(ctx, doctorActor, c.ID, NotesUpdate{Remark: &remark})
	if err != nil {
		t.Fatalf("UpdateNotes: %v", err)
	}
	if got.Remark != remark || got.AdditionalInfo != "" {
		t.Fatalf("remark=%q info=%q", got.Remark, got.AdditionalInfo)
	}

	info := "allergic to penicillin"
	got, err = f.svc.UpdateNotes(ctx, doctorActor, c.ID, NotesUpdate{AdditionalInfo: &info})
	if err != nil {
		t.Fatalf("UpdateNotes: %v", err)
	}
	if got.Remark != remark || got.AdditionalInfo != info {
		t.Errorf("remark=%q info=%q, earlier remark must survive", got.Remark, got.AdditionalInfo)
	}

	if _, err := f.svc.UpdateNotes(ctx, doctorActor, c.ID, NotesUpdate{}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for an empty update, got %v", err)
	}
	if _, err := f.svc.UpdateNotes(ctx, pharmacistActor, c.ID, NotesUpdate{Remark: &remark}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestLinkBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "John Backus")
	c := f.consultation(t, pt.ID)

	got, err := f.svc.LinkBill(ctx, receptionistActor, c.ID, "BILL-2024-0042")
	if err != nil {
		t.Fatalf("LinkBill: %v", err)
	}
	if got.BillID == nil || *got.BillID != "BILL-2024-0042" {
		t.Fatalf("bill id = %v", got.BillID)
	}

	if _, err := f.svc.LinkBill(ctx, receptionistActor, c.ID, " "); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.LinkBill(ctx, doctorActor, c.ID, "BILL-1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestEditConsultation_BusyDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pt := f.patient(t, "John Backus")
	c := f.consultation(t, pt.ID)

	f.svc.locker = busyLocker{prefix: "consultation:", next: f.svc.locker}
	if _, err := f.svc.AddDiagnosis(ctx, doctorActor, c.ID, "asthma"); !errors.Is(err, ErrDocumentBusy) {
		t.Fatalf("expected ErrDocumentBusy, got %v", err)
	}
}
