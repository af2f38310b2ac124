package hospital

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/hospital-workflow/internal/redis"
)

const (
	EventConsultationCreated  = "CONSULTATION_CREATED"
	EventConsultationStatus   = "CONSULTATION_STATUS_CHANGED"
	EventFeedbackAdded        = "CONSULTATION_FEEDBACK_ADDED"
	EventDiagnosisAdded       = "DIAGNOSIS_ADDED"
	EventDiagnosisUpdated     = "DIAGNOSIS_UPDATED"
	EventNotesUpdated         = "CONSULTATION_NOTES_UPDATED"
	EventBillLinked           = "CONSULTATION_BILL_LINKED"
	EventReportRequested      = "REPORT_REQUESTED"
	EventReportAttached       = "REPORT_ATTACHED"
	EventPrescriptionCreated  = "PRESCRIPTION_CREATED"
	EventPrescriptionDispense = "PRESCRIPTION_DISPENSED"
	EventPrescriptionCancel   = "PRESCRIPTION_CANCELLED"
	EventEquipmentOrder       = "EQUIPMENT_ORDER_CHANGED"
)

// ErrValidation is wrapped by every input validation failure.
var ErrValidation = errors.New("validation failed")

var (
	ErrForbidden               = errors.New("role not permitted for this operation")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrConsultationCancelled   = errors.New("consultation is cancelled")
	ErrDocumentBusy            = errors.New("document is being modified, please retry")

	ErrRatingOutOfRange = fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	ErrFeedbackTooEarly = errors.New("feedback is only accepted for completed consultations")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	files  FileRemover
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, files FileRemover, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		files:  files,
		log:    logger.With().Str("component", "hospital").Logger(),
		now:    time.Now,
	}
}

func (s *Service) authorize(actor Actor, roles ...Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrForbidden, actor.Role)
}

func consultationLockKey(id int64) string {
	return "consultation:" + strconv.FormatInt(id, 10)
}

func prescriptionLockKey(id int64) string {
	return "prescription:" + strconv.FormatInt(id, 10)
}

// withDocumentLock runs fn under the per-document lock, translating a lost
// lock race into ErrDocumentBusy.
func (s *Service) withDocumentLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, key, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrDocumentBusy
	}
	return err
}

type NewConsultation struct {
	PatientID       int64
	DoctorID        int64
	Status          ConsultationStatus
	AppointmentType AppointmentType
	BookedAt        *time.Time
	Reason          string
}

// CreateConsultation books a visit in requested (default) or scheduled state.
func (s *Service) CreateConsultation(ctx context.Context, actor Actor, in NewConsultation) (*Consultation, error) {
	if err := s.authorize(actor, RoleReceptionist, RoleDoctor, RolePatient, RoleAdmin); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = ConsultationRequested
	}
	if in.Status != ConsultationRequested && in.Status != ConsultationScheduled {
		return nil, fmt.Errorf("%w: new consultations must be requested or scheduled", ErrValidation)
	}
	switch in.AppointmentType {
	case "", AppointmentRegular, AppointmentFollowUp, AppointmentEmergency, AppointmentConsultation:
	default:
		return nil, fmt.Errorf("%w: unknown appointment_type %q", ErrValidation, in.AppointmentType)
	}
	if actor.Role == RolePatient && actor.ID != in.PatientID {
		return nil, fmt.Errorf("%w: patients may only book for themselves", ErrForbidden)
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetDoctorByID(ctx, in.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	createdBy := actor.ID
	c, err := s.repo.CreateConsultation(ctx, Consultation{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		Status:          in.Status,
		AppointmentType: in.AppointmentType,
		BookedAt:        in.BookedAt,
		Reason:          in.Reason,
		Diagnosis:       []string{},
		Prescriptions:   []int64{},
		Reports:         []Report{},
		CreatedBy:       &createdBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create consultation: %w", err)
	}

	s.logEvent(ctx, actor, "consultation", strconv.FormatInt(c.ID, 10), EventConsultationCreated, map[string]any{
		"patient_id": c.PatientID,
		"doctor_id":  c.DoctorID,
		"status":     c.Status,
	})
	return c, nil
}

func (s *Service) GetConsultation(ctx context.Context, actor Actor, id int64) (*Consultation, error) {
	c, err := s.repo.GetConsultationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load consultation: %w", err)
	}
	if actor.Role == RolePatient && actor.ID != c.PatientID {
		return nil, fmt.Errorf("%w: not your consultation", ErrForbidden)
	}
	return c, nil
}

// TransitionConsultation moves a consultation forward in its lifecycle.
// Entering ongoing stamps the actual start time when it is not set yet.
func (s *Service) TransitionConsultation(ctx context.Context, actor Actor, id int64, to ConsultationStatus) (*Consultation, error) {
	if err := s.authorize(actor, RoleDoctor, RoleReceptionist, RoleAdmin); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}

	var updated *Consultation
	err := s.withDocumentLock(ctx, consultationLockKey(id), func(lockCtx context.Context) error {
		c, err := s.repo.GetConsultationByID(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load consultation: %w", err)
		}
		if !c.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, c.Status, to)
		}

		from := c.Status
		c.Status = to
		if to == ConsultationOngoing && c.ActualStart == nil {
			now := s.now()
			c.ActualStart = &now
		}

		updated, err = s.repo.SaveConsultation(lockCtx, *c)
		if err != nil {
			return fmt.Errorf("save consultation: %w", err)
		}

		s.logEvent(lockCtx, actor, "consultation", strconv.FormatInt(id, 10), EventConsultationStatus, map[string]any{
			"from": from,
			"to":   to,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddFeedback stores the patient's rating of a completed consultation.
func (s *Service) AddFeedback(ctx context.Context, actor Actor, id int64, rating int, comments string) (*Consultation, error) {
	if err := s.authorize(actor, RolePatient); err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, ErrRatingOutOfRange
	}

	var updated *Consultation
	err := s.withDocumentLock(ctx, consultationLockKey(id), func(lockCtx context.Context) error {
		c, err := s.repo.GetConsultationByID(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load consultation: %w", err)
		}
		if c.PatientID != actor.ID {
			return fmt.Errorf("%w: not your consultation", ErrForbidden)
		}
		if c.Status != ConsultationCompleted {
			return ErrFeedbackTooEarly
		}

		c.Feedback = &Feedback{Rating: rating, Comments: comments, CreatedAt: s.now()}
		updated, err = s.repo.SaveConsultation(lockCtx, *c)
		if err != nil {
			return fmt.Errorf("save consultation: %w", err)
		}

		s.logEvent(lockCtx, actor, "consultation", strconv.FormatInt(id, 10), EventFeedbackAdded, map[string]any{
			"rating": rating,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) logEvent(ctx context.Context, actor Actor, kind, entityID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	var actorID *int64
	if actor.ID != 0 {
		id := actor.ID
		actorID = &id
	}

	ev := EventLog{
		EventType:  eventType,
		EntityKind: kind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    data,
		CreatedAt:  s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Str("entity", kind+"/"+entityID).
			Msg("failed to insert event log")
	}
}
