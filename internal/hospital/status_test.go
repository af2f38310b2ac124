package hospital

import "testing"

func entry(quantity, dispensed int) PrescriptionEntry {
	return PrescriptionEntry{Quantity: quantity, Dispensed: dispensed}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name    string
		entries []PrescriptionEntry
		want    PrescriptionStatus
	}{
		{"no entries", nil, PrescriptionPending},
		{"nothing dispensed", []PrescriptionEntry{entry(30, 0), entry(10, 0)}, PrescriptionPending},
		{"one line partially", []PrescriptionEntry{entry(30, 10)}, PrescriptionPartiallyDispensed},
		{"one line complete, other untouched", []PrescriptionEntry{entry(30, 30), entry(10, 0)}, PrescriptionPartiallyDispensed},
		{"all complete", []PrescriptionEntry{entry(30, 30), entry(10, 10)}, PrescriptionDispensed},
		{"single complete", []PrescriptionEntry{entry(1, 1)}, PrescriptionDispensed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.entries); got != tt.want {
				t.Errorf("DeriveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConsultationStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to ConsultationStatus
		want     bool
	}{
		{ConsultationRequested, ConsultationScheduled, true},
		{ConsultationRequested, ConsultationOngoing, true},
		{ConsultationRequested, ConsultationCompleted, true},
		{ConsultationScheduled, ConsultationOngoing, true},
		{ConsultationOngoing, ConsultationCompleted, true},
		{ConsultationOngoing, ConsultationCancelled, true},
		{ConsultationRequested, ConsultationCancelled, true},

		{ConsultationScheduled, ConsultationRequested, false},
		{ConsultationOngoing, ConsultationScheduled, false},
		{ConsultationScheduled, ConsultationScheduled, false},
		{ConsultationCompleted, ConsultationCancelled, false},
		{ConsultationCancelled, ConsultationScheduled, false},
		{ConsultationRequested, "closed", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEquipmentOrderStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to EquipmentOrderStatus
		want     bool
	}{
		{OrderRequested, OrderOrdered, true},
		{OrderRequested, OrderCancelled, true},
		{"", OrderOrdered, true},
		{OrderOrdered, OrderCancelled, true},
		{OrderOrdered, OrderRequested, false},
		{OrderCancelled, OrderOrdered, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%q -> %q: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
