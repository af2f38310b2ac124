package hospital

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordLogin_Defaults(t *testing.T) {
	f := newFixture(t)

	l, err := f.svc.RecordLogin(context.Background(), doctorActor, LoginLog{Task: TaskLogin})
	if err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if l.UserID != doctorActor.ID {
		t.Errorf("user id = %d, want %d", l.UserID, doctorActor.ID)
	}
	if !l.AccessTime.Equal(f.clock) {
		t.Errorf("access time = %s, want %s", l.AccessTime, f.clock)
	}

	if _, err := f.svc.RecordLogin(context.Background(), doctorActor, LoginLog{Task: "reboot"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestRecordLogin_UserID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  Actor
		userID int64
		want   int64
	}{
		{"own access", doctorActor, 0, doctorActor.ID},
		{"foreign user id replaced", doctorActor, 42, doctorActor.ID},
		{"patient cannot log for staff", Actor{ID: 10005, Role: RolePatient}, doctorActor.ID, 10005},
		{"admin records for another user", adminActor, 42, 42},
		{"admin defaults to self", adminActor, 0, adminActor.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := f.svc.RecordLogin(ctx, tt.actor, LoginLog{UserID: tt.userID, Task: TaskLogout})
			if err != nil {
				t.Fatalf("RecordLogin: %v", err)
			}
			if l.UserID != tt.want {
				t.Errorf("user id = %d, want %d", l.UserID, tt.want)
			}
		})
	}

	if _, err := f.svc.RecordLogin(ctx, Actor{ID: 1}, LoginLog{Task: TaskLogin}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for an actor without a role, got %v", err)
	}
}

func TestRecordLogs_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"bed without id", func() error {
			_, err := f.svc.RecordBed(ctx, adminActor, BedLog{BedType: "general", Status: "occupied"})
			return err
		}, ErrValidation},
		{"bed unknown type", func() error {
			_, err := f.svc.RecordBed(ctx, adminActor, BedLog{BedID: "B-1", BedType: "icu", Status: "occupied"})
			return err
		}, ErrValidation},
		{"bed by pharmacist", func() error {
			_, err := f.svc.RecordBed(ctx, pharmacistActor, BedLog{BedID: "B-1", BedType: "general", Status: "occupied"})
			return err
		}, ErrForbidden},
		{"inventory zero quantity", func() error {
			_, err := f.svc.RecordInventory(ctx, pharmacistActor, MedicineInventoryLog{MedicineID: 1, Status: "ordered"})
			return err
		}, ErrValidation},
		{"inventory unknown status", func() error {
			_, err := f.svc.RecordInventory(ctx, pharmacistActor, MedicineInventoryLog{MedicineID: 1, Quantity: 3, Status: "lost"})
			return err
		}, ErrValidation},
		{"finance by doctor", func() error {
			_, err := f.svc.RecordFinance(ctx, doctorActor, FinanceLog{TransactionType: "income", Amount: 10})
			return err
		}, ErrForbidden},
		{"finance unknown type", func() error {
			_, err := f.svc.RecordFinance(ctx, adminActor, FinanceLog{TransactionType: "refund", Amount: 10})
			return err
		}, ErrValidation},
		{"login listing by doctor", func() error {
			_, err := f.svc.LoginLogs(ctx, doctorActor, LogFilter{})
			return err
		}, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBedLogs_FilterAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := int64(10001), int64(10002)

	for i, pid := range []int64{a, b, a, a} {
		pid := pid
		f.advance(time.Minute)
		if _, err := f.svc.RecordBed(ctx, receptionistActor, BedLog{
			BedID:     "W1-" + itoa(int64(i)),
			BedType:   "general",
			Status:    "occupied",
			PatientID: &pid,
		}); err != nil {
			t.Fatalf("RecordBed: %v", err)
		}
	}

	got, err := f.svc.BedLogs(ctx, adminActor, LogFilter{SubjectID: &a, Limit: 2})
	if err != nil {
		t.Fatalf("BedLogs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d logs, want 2", len(got))
	}
	if got[0].BedID != "W1-3" || got[1].BedID != "W1-2" {
		t.Errorf("order = %s, %s; want W1-3, W1-2", got[0].BedID, got[1].BedID)
	}

	all, err := f.svc.BedLogs(ctx, adminActor, LogFilter{})
	if err != nil {
		t.Fatalf("BedLogs: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("unfiltered count = %d, want 4", len(all))
	}
}

func TestLogFilter_Normalized(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 50},
		{-3, 50},
		{20, 20},
		{10_000, 500},
	}
	for _, tt := range tests {
		if got := (LogFilter{Limit: tt.in}).normalized().Limit; got != tt.want {
			t.Errorf("limit %d normalized to %d, want %d", tt.in, got, tt.want)
		}
	}
}
