package hospital

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrDiagnosisNotFound = errors.New("diagnosis not found")
	ErrEmptyDiagnosis    = fmt.Errorf("%w: diagnosis must not be empty", ErrValidation)
	ErrEmptyNotes        = fmt.Errorf("%w: remark or additional_info is required", ErrValidation)
	ErrEmptyBillID       = fmt.Errorf("%w: bill_id is required", ErrValidation)
)

// NotesUpdate changes the doctor's free-text notes. Nil fields are left as is.
type NotesUpdate struct {
	Remark         *string
	AdditionalInfo *string
}

// editConsultation runs mutate on a fresh copy of the consultation under its
// lock and saves the result. Cancelled consultations are read-only.
func (s *Service) editConsultation(ctx context.Context, actor Actor, id int64, eventType string, mutate func(c *Consultation) (map[string]any, error)) (*Consultation, error) {
	var updated *Consultation
	err := s.withDocumentLock(ctx, consultationLockKey(id), func(lockCtx context.Context) error {
		c, err := s.repo.GetConsultationByID(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load consultation: %w", err)
		}
		if c.Status == ConsultationCancelled {
			return ErrConsultationCancelled
		}

		payload, err := mutate(c)
		if err != nil {
			return err
		}

		updated, err = s.repo.SaveConsultation(lockCtx, *c)
		if err != nil {
			return fmt.Errorf("save consultation: %w", err)
		}

		s.logEvent(lockCtx, actor, "consultation", strconv.FormatInt(id, 10), eventType, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddDiagnosis appends one diagnosis to the consultation.
func (s *Service) AddDiagnosis(ctx context.Context, actor Actor, id int64, diagnosis string) (*Consultation, error) {
	if err := s.authorize(actor, RoleDoctor); err != nil {
		return nil, err
	}
	diagnosis = strings.TrimSpace(diagnosis)
	if diagnosis == "" {
		return nil, ErrEmptyDiagnosis
	}

	return s.editConsultation(ctx, actor, id, EventDiagnosisAdded, func(c *Consultation) (map[string]any, error) {
		c.Diagnosis = append(c.Diagnosis, diagnosis)
		return map[string]any{"index": len(c.Diagnosis) - 1}, nil
	})
}

// UpdateDiagnosis replaces the diagnosis at a zero-based position.
func (s *Service) UpdateDiagnosis(ctx context.Context, actor Actor, id int64, index int, diagnosis string) (*Consultation, error) {
	if err := s.authorize(actor, RoleDoctor); err != nil {
		return nil, err
	}
	diagnosis = strings.TrimSpace(diagnosis)
	if diagnosis == "" {
		return nil, ErrEmptyDiagnosis
	}

	return s.editConsultation(ctx, actor, id, EventDiagnosisUpdated, func(c *Consultation) (map[string]any, error) {
		if index < 0 || index >= len(c.Diagnosis) {
			return nil, fmt.Errorf("%w: index %d", ErrDiagnosisNotFound, index)
		}
		c.Diagnosis[index] = diagnosis
		return map[string]any{"index": index}, nil
	})
}

// UpdateNotes sets the remark and/or additional info of a consultation.
func (s *Service) UpdateNotes(ctx context.Context, actor Actor, id int64, in NotesUpdate) (*Consultation, error) {
	if err := s.authorize(actor, RoleDoctor); err != nil {
		return nil, err
	}
	if in.Remark == nil && in.AdditionalInfo == nil {
		return nil, ErrEmptyNotes
	}

	return s.editConsultation(ctx, actor, id, EventNotesUpdated, func(c *Consultation) (map[string]any, error) {
		changed := make([]string, 0, 2)
		if in.Remark != nil {
			c.Remark = strings.TrimSpace(*in.Remark)
			changed = append(changed, "remark")
		}
		if in.AdditionalInfo != nil {
			c.AdditionalInfo = strings.TrimSpace(*in.AdditionalInfo)
			changed = append(changed, "additional_info")
		}
		return map[string]any{"fields": changed}, nil
	})
}

// LinkBill records the billing document issued for a consultation.
func (s *Service) LinkBill(ctx context.Context, actor Actor, id int64, billID string) (*Consultation, error) {
	if err := s.authorize(actor, RoleReceptionist, RoleAdmin); err != nil {
		return nil, err
	}
	billID = strings.TrimSpace(billID)
	if billID == "" {
		return nil, ErrEmptyBillID
	}

	return s.editConsultation(ctx, actor, id, EventBillLinked, func(c *Consultation) (map[string]any, error) {
		c.BillID = &billID
		return map[string]any{"bill_id": billID}, nil
	})
}
