package hospital

import (
	"context"
	"fmt"
	"time"
)

type LoginTask string

const (
	TaskLogin  LoginTask = "login"
	TaskLogout LoginTask = "logout"
)

type LoginLog struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	AccessTime time.Time `json:"access_time"`
	Task       LoginTask `json:"task"`
}

type BedLog struct {
	ID        int64     `json:"id"`
	BedID     string    `json:"bed_id"`
	BedType   string    `json:"bed_type"`
	Status    string    `json:"status"`
	Time      time.Time `json:"time"`
	PatientID *int64    `json:"patient_id,omitempty"`
}

type MedicineInventoryLog struct {
	ID         int64      `json:"id"`
	MedicineID int64      `json:"med_id"`
	Quantity   int        `json:"quantity"`
	TotalCost  float64    `json:"total_cost"`
	OrderDate  *time.Time `json:"order_date,omitempty"`
	Supplier   string     `json:"supplier,omitempty"`
	Status     string     `json:"status"`
}

type FinanceLog struct {
	ID              int64     `json:"id"`
	UserID          *int64    `json:"user_id,omitempty"`
	TransactionType string    `json:"transaction_type"`
	Amount          float64   `json:"amount"`
	Date            time.Time `json:"date"`
	Description     string    `json:"description,omitempty"`
	Allowance       float64   `json:"allowance,omitempty"`
	BasicSalary     float64   `json:"basic_salary,omitempty"`
	Deduction       float64   `json:"deduction,omitempty"`
	NetSalary       float64   `json:"net_salary,omitempty"`
}

// LogFilter narrows a log listing. SubjectID matches the user for login and
// finance logs, the patient for bed logs and the medicine for inventory logs.
type LogFilter struct {
	SubjectID *int64
	Limit     int
}

var (
	bedTypes         = map[string]bool{"private": true, "general": true, "semi_private": true}
	bedStatuses      = map[string]bool{"occupied": true, "vacated": true}
	inventoryStatus  = map[string]bool{"ordered": true, "received": true, "cancelled": true}
	transactionTypes = map[string]bool{"income": true, "expense": true}
)

func (f LogFilter) normalized() LogFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	return f
}

func (s *Service) RecordLogin(ctx context.Context, actor Actor, l LoginLog) (*LoginLog, error) {
	if err := s.authorize(actor, RoleDoctor, RoleNurse, RolePathologist, RolePharmacist, RoleReceptionist, RoleAdmin, RolePatient); err != nil {
		return nil, err
	}
	if l.Task != TaskLogin && l.Task != TaskLogout {
		return nil, fmt.Errorf("%w: task must be login or logout", ErrValidation)
	}
	// Only an admin may record an access on behalf of someone else.
	if actor.Role != RoleAdmin || l.UserID == 0 {
		l.UserID = actor.ID
	}
	if l.AccessTime.IsZero() {
		l.AccessTime = s.now()
	}
	out, err := s.repo.InsertLoginLog(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("insert login log: %w", err)
	}
	return out, nil
}

func (s *Service) RecordBed(ctx context.Context, actor Actor, l BedLog) (*BedLog, error) {
	if err := s.authorize(actor, RoleNurse, RoleReceptionist, RoleAdmin); err != nil {
		return nil, err
	}
	if l.BedID == "" {
		return nil, fmt.Errorf("%w: bed_id is required", ErrValidation)
	}
	if !bedTypes[l.BedType] {
		return nil, fmt.Errorf("%w: unknown bed_type %q", ErrValidation, l.BedType)
	}
	if !bedStatuses[l.Status] {
		return nil, fmt.Errorf("%w: unknown bed status %q", ErrValidation, l.Status)
	}
	if l.Time.IsZero() {
		l.Time = s.now()
	}
	out, err := s.repo.InsertBedLog(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("insert bed log: %w", err)
	}
	return out, nil
}

func (s *Service) RecordInventory(ctx context.Context, actor Actor, l MedicineInventoryLog) (*MedicineInventoryLog, error) {
	if err := s.authorize(actor, RolePharmacist, RoleAdmin); err != nil {
		return nil, err
	}
	if l.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if !inventoryStatus[l.Status] {
		return nil, fmt.Errorf("%w: unknown inventory status %q", ErrValidation, l.Status)
	}
	out, err := s.repo.InsertInventoryLog(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("insert inventory log: %w", err)
	}
	return out, nil
}

func (s *Service) RecordFinance(ctx context.Context, actor Actor, l FinanceLog) (*FinanceLog, error) {
	if err := s.authorize(actor, RoleAdmin); err != nil {
		return nil, err
	}
	if !transactionTypes[l.TransactionType] {
		return nil, fmt.Errorf("%w: transaction_type must be income or expense", ErrValidation)
	}
	if l.Date.IsZero() {
		l.Date = s.now()
	}
	out, err := s.repo.InsertFinanceLog(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("insert finance log: %w", err)
	}
	return out, nil
}

func (s *Service) LoginLogs(ctx context.Context, actor Actor, f LogFilter) ([]LoginLog, error) {
	if err := s.authorize(actor, RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListLoginLogs(ctx, f.normalized())
}

func (s *Service) BedLogs(ctx context.Context, actor Actor, f LogFilter) ([]BedLog, error) {
	if err := s.authorize(actor, RoleNurse, RoleReceptionist, RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListBedLogs(ctx, f.normalized())
}

func (s *Service) InventoryLogs(ctx context.Context, actor Actor, f LogFilter) ([]MedicineInventoryLog, error) {
	if err := s.authorize(actor, RolePharmacist, RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListInventoryLogs(ctx, f.normalized())
}

func (s *Service) FinanceLogs(ctx context.Context, actor Actor, f LogFilter) ([]FinanceLog, error) {
	if err := s.authorize(actor, RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListFinanceLogs(ctx, f.normalized())
}
