package hospital

var consultationRank = map[ConsultationStatus]int{
	ConsultationRequested: 0,
	ConsultationScheduled: 1,
	ConsultationOngoing:   2,
	ConsultationCompleted: 3,
}

// Valid reports whether s is a known consultation status.
func (s ConsultationStatus) Valid() bool {
	if s == ConsultationCancelled {
		return true
	}
	_, ok := consultationRank[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s ConsultationStatus) Terminal() bool {
	return s == ConsultationCompleted || s == ConsultationCancelled
}

// CanTransition allows forward moves along
// requested -> scheduled -> ongoing -> completed (steps may be skipped)
// and cancellation from any non-terminal status.
func (s ConsultationStatus) CanTransition(to ConsultationStatus) bool {
	if s.Terminal() || !to.Valid() {
		return false
	}
	if to == ConsultationCancelled {
		return true
	}
	return consultationRank[to] > consultationRank[s]
}

// DeriveStatus computes a prescription's status from its entries.
// Every entry fully dispensed gives dispensed, nothing dispensed gives pending,
// anything in between gives partially_dispensed.
func DeriveStatus(entries []PrescriptionEntry) PrescriptionStatus {
	if len(entries) == 0 {
		return PrescriptionPending
	}

	complete, touched := 0, 0
	for _, e := range entries {
		if e.Dispensed > 0 {
			touched++
		}
		if e.Dispensed >= e.Quantity {
			complete++
		}
	}

	switch {
	case complete == len(entries):
		return PrescriptionDispensed
	case touched == 0:
		return PrescriptionPending
	default:
		return PrescriptionPartiallyDispensed
	}
}

func (s EquipmentOrderStatus) Valid() bool {
	switch s {
	case OrderRequested, OrderOrdered, OrderCancelled:
		return true
	}
	return false
}

// CanTransition: requested -> ordered | cancelled, ordered -> cancelled.
func (s EquipmentOrderStatus) CanTransition(to EquipmentOrderStatus) bool {
	switch s {
	case OrderRequested, "":
		return to == OrderOrdered || to == OrderCancelled
	case OrderOrdered:
		return to == OrderCancelled
	}
	return false
}
