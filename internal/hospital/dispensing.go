package hospital

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

var (
	ErrEntryNotFound         = errors.New("prescription entry not found")
	ErrInvalidQuantity       = fmt.Errorf("%w: dispensed quantity must be a positive integer", ErrValidation)
	ErrExceedsOrdered        = fmt.Errorf("%w: dispensed quantity exceeds ordered quantity", ErrValidation)
	ErrPrescriptionCancelled = errors.New("prescription is cancelled")
	ErrPrescriptionClosed    = errors.New("prescription can no longer be cancelled")
)

type NewPrescriptionEntry struct {
	MedicineID int64
	Dosage     string
	Frequency  string
	Duration   string
	Quantity   int
}

type DispenseResult struct {
	PrescriptionID int64              `json:"prescriptionId"`
	Status         PrescriptionStatus `json:"status"`
	Entry          PrescriptionEntry  `json:"entry"`
}

// CreatePrescription stores a new dispensing order. When consultationID is set
// the prescription id is also appended to that consultation's references.
func (s *Service) CreatePrescription(ctx context.Context, actor Actor, consultationID *int64, lines []NewPrescriptionEntry) (*Prescription, error) {
	if err := s.authorize(actor, RoleDoctor); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one entry is required", ErrValidation)
	}

	entries := make([]PrescriptionEntry, 0, len(lines))
	for i, l := range lines {
		if l.MedicineID <= 0 {
			return nil, fmt.Errorf("%w: entry %d: medicine_id is required", ErrValidation, i)
		}
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: entry %d: quantity must be positive", ErrValidation, i)
		}
		entries = append(entries, PrescriptionEntry{
			ID:         uuid.New(),
			MedicineID: l.MedicineID,
			Dosage:     l.Dosage,
			Frequency:  l.Frequency,
			Duration:   l.Duration,
			Quantity:   l.Quantity,
		})
	}

	draft := Prescription{
		ConsultationID: consultationID,
		Date:           s.now(),
		Status:         PrescriptionPending,
		Entries:        entries,
	}

	var p *Prescription
	if consultationID == nil {
		created, err := s.repo.CreatePrescription(ctx, draft)
		if err != nil {
			return nil, fmt.Errorf("create prescription: %w", err)
		}
		p = created
	} else {
		err := s.withDocumentLock(ctx, consultationLockKey(*consultationID), func(lockCtx context.Context) error {
			created, err := s.createLinkedPrescription(lockCtx, *consultationID, draft)
			p = created
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	s.logEvent(ctx, actor, "prescription", strconv.FormatInt(p.ID, 10), EventPrescriptionCreated, map[string]any{
		"entries": len(entries),
	})
	return p, nil
}

// createLinkedPrescription must run under the consultation lock. A prescription
// that cannot be linked is removed again.
func (s *Service) createLinkedPrescription(ctx context.Context, consultationID int64, draft Prescription) (*Prescription, error) {
	c, err := s.repo.GetConsultationByID(ctx, consultationID)
	if err != nil {
		return nil, fmt.Errorf("load consultation: %w", err)
	}
	if c.Status == ConsultationCancelled {
		return nil, ErrConsultationCancelled
	}

	p, err := s.repo.CreatePrescription(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}

	c.Prescriptions = append(c.Prescriptions, p.ID)
	if _, err := s.repo.SaveConsultation(ctx, *c); err != nil {
		if delErr := s.repo.DeletePrescription(ctx, p.ID); delErr != nil {
			s.log.Error().
				Err(delErr).
				Int64("prescription_id", p.ID).
				Int64("consultation_id", consultationID).
				Msg("failed to roll back unlinked prescription")
		}
		return nil, fmt.Errorf("link prescription: %w", err)
	}
	return p, nil
}

func (s *Service) GetPrescription(ctx context.Context, actor Actor, id int64) (*Prescription, error) {
	if err := s.authorize(actor, RolePharmacist, RoleDoctor, RoleNurse, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPrescriptionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load prescription: %w", err)
	}
	return p, nil
}

// Dispense hands out qty more units of one prescription line. The line's
// dispensed quantity never exceeds the ordered quantity and the prescription
// status is recomputed from all lines in the same write.
func (s *Service) Dispense(ctx context.Context, actor Actor, prescriptionID int64, entryID uuid.UUID, qty int) (*DispenseResult, error) {
	if err := s.authorize(actor, RolePharmacist); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	var result *DispenseResult
	err := s.withDocumentLock(ctx, prescriptionLockKey(prescriptionID), func(lockCtx context.Context) error {
		p, err := s.repo.GetPrescriptionByID(lockCtx, prescriptionID)
		if err != nil {
			return fmt.Errorf("load prescription: %w", err)
		}
		if p.Status == PrescriptionCancelled {
			return ErrPrescriptionCancelled
		}

		idx := findEntry(p.Entries, entryID)
		if idx == -1 {
			return ErrEntryNotFound
		}

		entry := p.Entries[idx]
		if entry.Dispensed+qty > entry.Quantity {
			return fmt.Errorf("%w: %d already dispensed of %d ordered, requested %d",
				ErrExceedsOrdered, entry.Dispensed, entry.Quantity, qty)
		}

		entry.Dispensed += qty
		p.Entries[idx] = entry
		p.Status = DeriveStatus(p.Entries)

		saved, err := s.repo.SavePrescription(lockCtx, *p)
		if err != nil {
			return fmt.Errorf("save prescription: %w", err)
		}

		result = &DispenseResult{
			PrescriptionID: saved.ID,
			Status:         saved.Status,
			Entry:          entry,
		}

		s.logEvent(lockCtx, actor, "prescription", strconv.FormatInt(saved.ID, 10), EventPrescriptionDispense, map[string]any{
			"entry_id":      entryID.String(),
			"medicine_id":   entry.MedicineID,
			"quantity":      qty,
			"dispensed_qty": entry.Dispensed,
			"status":        saved.Status,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelPrescription is only possible while nothing has been dispensed.
func (s *Service) CancelPrescription(ctx context.Context, actor Actor, id int64) (*Prescription, error) {
	if err := s.authorize(actor, RoleDoctor, RolePharmacist, RoleAdmin); err != nil {
		return nil, err
	}

	var updated *Prescription
	err := s.withDocumentLock(ctx, prescriptionLockKey(id), func(lockCtx context.Context) error {
		p, err := s.repo.GetPrescriptionByID(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load prescription: %w", err)
		}
		if p.Status == PrescriptionCancelled {
			updated = p
			return nil
		}
		if p.Status != PrescriptionPending {
			return fmt.Errorf("%w: status is %s", ErrPrescriptionClosed, p.Status)
		}

		p.Status = PrescriptionCancelled
		updated, err = s.repo.SavePrescription(lockCtx, *p)
		if err != nil {
			return fmt.Errorf("save prescription: %w", err)
		}

		s.logEvent(lockCtx, actor, "prescription", strconv.FormatInt(id, 10), EventPrescriptionCancel, map[string]any{})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
