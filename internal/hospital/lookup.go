package hospital

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const UnknownDoctor = "Unknown Doctor"

var (
	ErrSearchQueryRequired = fmt.Errorf("%w: search query is required", ErrValidation)
	ErrInvalidPatientID    = fmt.Errorf("%w: invalid patient ID format", ErrValidation)
)

var bloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// PatientSummary is the demographic projection returned by lookups.
type PatientSummary struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Info        PatientInfo `json:"patient_info"`
	PhoneNumber string      `json:"phone_number"`
}

type PatientTests struct {
	Patient       PatientSummary       `json:"patient"`
	Consultations []ConsultationDetail `json:"consultations"`
}

func (s *Service) RegisterPatient(ctx context.Context, actor Actor, p Patient) (*Patient, error) {
	if err := s.authorize(actor, RoleReceptionist, RoleAdmin); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if p.Info.Age < 0 || p.Info.Age > 150 {
		return nil, fmt.Errorf("%w: age out of range", ErrValidation)
	}
	if p.Info.BloodGroup != "" && !bloodGroups[p.Info.BloodGroup] {
		return nil, fmt.Errorf("%w: unknown blood group %q", ErrValidation, p.Info.BloodGroup)
	}

	created, err := s.repo.CreatePatient(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return created, nil
}

// FindPatientTests looks a patient up by the raw numeric identifier typed into
// the search box and returns every consultation with its reports, newest
// first. Malformed identifiers are rejected before the store is queried.
func (s *Service) FindPatientTests(ctx context.Context, actor Actor, rawID string) (*PatientTests, error) {
	if err := s.authorize(actor, RolePathologist, RolePharmacist, RoleDoctor, RoleNurse, RoleAdmin); err != nil {
		return nil, err
	}

	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return nil, ErrSearchQueryRequired
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, ErrInvalidPatientID
	}

	p, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	consultations, err := s.repo.ListConsultationsByPatient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}

	for i := range consultations {
		if consultations[i].DoctorName == "" {
			consultations[i].DoctorName = UnknownDoctor
		}
		if consultations[i].Reports == nil {
			consultations[i].Reports = []Report{}
		}
	}
	if consultations == nil {
		consultations = []ConsultationDetail{}
	}

	return &PatientTests{
		Patient: PatientSummary{
			ID:          p.ID,
			Name:        p.Name,
			Info:        p.Info,
			PhoneNumber: p.PhoneNumber,
		},
		Consultations: consultations,
	}, nil
}

func (s *Service) SearchEquipment(ctx context.Context, actor Actor, text string) ([]Equipment, error) {
	if err := s.authorize(actor, RolePathologist, RolePharmacist, RoleNurse, RoleAdmin); err != nil {
		return nil, err
	}
	items, err := s.repo.SearchEquipment(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search equipment: %w", err)
	}
	if items == nil {
		items = []Equipment{}
	}
	return items, nil
}

type NewEquipment struct {
	Name          string
	OwnerID       *string
	Quantity      int
	InstalledAt   *time.Time
	NextServiceAt *time.Time
}

// AddEquipment registers equipment; new entries start as a pending order request.
func (s *Service) AddEquipment(ctx context.Context, actor Actor, in NewEquipment) (*Equipment, error) {
	if err := s.authorize(actor, RolePathologist, RoleAdmin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: equipment name is required", ErrValidation)
	}
	if in.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}

	e, err := s.repo.CreateEquipment(ctx, Equipment{
		Name:          name,
		OwnerID:       in.OwnerID,
		Quantity:      in.Quantity,
		OrderStatus:   OrderRequested,
		InstalledAt:   in.InstalledAt,
		NextServiceAt: in.NextServiceAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create equipment: %w", err)
	}
	return e, nil
}

// UpdateEquipmentOrder is the admin's decision on an equipment order request.
func (s *Service) UpdateEquipmentOrder(ctx context.Context, actor Actor, id int64, to EquipmentOrderStatus) (*Equipment, error) {
	if err := s.authorize(actor, RoleAdmin); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrValidation, to)
	}

	current, err := s.repo.GetEquipmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load equipment: %w", err)
	}
	if !current.OrderStatus.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.OrderStatus, to)
	}

	updated, err := s.repo.UpdateEquipmentOrderStatus(ctx, id, current.OrderStatus, to)
	if err != nil {
		if errors.Is(err, ErrEquipmentNotFound) {
			// status moved underneath us
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("update equipment order: %w", err)
	}

	s.logEvent(ctx, actor, "equipment", strconv.FormatInt(id, 10), EventEquipmentOrder, map[string]any{
		"from": current.OrderStatus,
		"to":   to,
	})
	return updated, nil
}
