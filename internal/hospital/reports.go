package hospital

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ReportCategory is the object-storage folder holding report files.
const ReportCategory = "test_reports"

var (
	ErrReportNotFound    = errors.New("test not found in consultation")
	ErrReportNotUploaded = errors.New("report has no uploaded file yet")
	ErrMissingTitle      = fmt.Errorf("%w: report title is required", ErrValidation)
	ErrMissingReportType = fmt.Errorf("%w: report type is required", ErrValidation)
	ErrMissingFile       = fmt.Errorf("%w: report file is required", ErrValidation)
)

// FileRef points at an uploaded report file already persisted in object storage.
type FileRef struct {
	URL  string
	Name string
	Key  string
}

type AttachReportInput struct {
	PatientID      int64
	ConsultationID int64
	// TestID selects a previously requested report to fulfil; nil appends a new one.
	TestID      *uuid.UUID
	Title       string
	Type        string
	Description string
	File        FileRef
}

type AttachReportResult struct {
	ConsultationID int64  `json:"consultationId"`
	Report         Report `json:"report"`
}

// LegacyReportKey is the storage key convention for report files uploaded
// before keys were recorded on the report itself.
func LegacyReportKey(patientID int64, reportID uuid.UUID) string {
	return fmt.Sprintf("%s/%d-%s", ReportCategory, patientID, reportID)
}

// RequestReport appends a pending report placeholder authored by the doctor.
func (s *Service) RequestReport(ctx context.Context, actor Actor, consultationID int64, title, description string) (*Report, error) {
	if err := s.authorize(actor, RoleDoctor); err != nil {
		return nil, err
	}
	if title == "" {
		return nil, ErrMissingTitle
	}

	var created Report
	err := s.withDocumentLock(ctx, consultationLockKey(consultationID), func(lockCtx context.Context) error {
		c, err := s.repo.GetConsultationByID(lockCtx, consultationID)
		if err != nil {
			return fmt.Errorf("load consultation: %w", err)
		}
		if c.Status == ConsultationCancelled {
			return ErrConsultationCancelled
		}

		now := s.now()
		author := actor.ID
		created = Report{
			ID:          uuid.New(),
			Status:      ReportPending,
			Title:       title,
			Description: description,
			CreatedBy:   &author,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		c.Reports = append(c.Reports, created)

		if _, err := s.repo.SaveConsultation(lockCtx, *c); err != nil {
			return fmt.Errorf("save consultation: %w", err)
		}

		s.logEvent(lockCtx, actor, "consultation", strconv.FormatInt(consultationID, 10), EventReportRequested, map[string]any{
			"report_id": created.ID.String(),
			"title":     title,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// AttachReport records an uploaded result on a consultation, either as a new
// completed report or as the fulfilment of an existing one. Once the write
// succeeds, a file previously held by the fulfilled report is removed from
// storage on a best-effort basis.
// The consultation is committed with a single document write.
func (s *Service) AttachReport(ctx context.Context, actor Actor, in AttachReportInput) (*AttachReportResult, error) {
	if err := s.authorize(actor, RolePathologist, RoleDoctor, RoleAdmin); err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, ErrMissingTitle
	}
	if in.Type == "" {
		return nil, ErrMissingReportType
	}
	if in.File.URL == "" {
		return nil, ErrMissingFile
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var result *AttachReportResult
	err := s.withDocumentLock(ctx, consultationLockKey(in.ConsultationID), func(lockCtx context.Context) error {
		c, err := s.repo.GetConsultationByID(lockCtx, in.ConsultationID)
		if err != nil {
			return fmt.Errorf("load consultation: %w", err)
		}
		if c.PatientID != in.PatientID {
			return fmt.Errorf("%w: consultation %d does not belong to patient %d", ErrConsultationNotFound, c.ID, in.PatientID)
		}
		if c.Status == ConsultationCancelled {
			return ErrConsultationCancelled
		}

		now := s.now()
		var report Report
		var replaced *Report

		if in.TestID != nil {
			idx := findReport(c.Reports, *in.TestID)
			if idx == -1 {
				return ErrReportNotFound
			}

			prev := c.Reports[idx]
			if prev.ReportFile != "" {
				replaced = &prev
			}

			report = prev
			report.Status = ReportCompleted
			report.ReportFile = in.File.URL
			report.ReportText = in.File.Name
			report.FileKey = in.File.Key
			report.Title = in.Title
			report.Type = in.Type
			report.Description = in.Description
			report.CreatedAt = now
			report.UpdatedAt = now
			c.Reports[idx] = report
		} else {
			author := actor.ID
			report = Report{
				ID:          uuid.New(),
				Status:      ReportCompleted,
				Title:       in.Title,
				Type:        in.Type,
				Description: in.Description,
				ReportFile:  in.File.URL,
				ReportText:  in.File.Name,
				FileKey:     in.File.Key,
				CreatedBy:   &author,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			c.Reports = append(c.Reports, report)
		}

		saved, err := s.repo.SaveConsultation(lockCtx, *c)
		if err != nil {
			return fmt.Errorf("save consultation: %w", err)
		}
		if replaced != nil {
			s.removeStoredFile(lockCtx, in.PatientID, *replaced)
		}

		result = &AttachReportResult{ConsultationID: saved.ID, Report: report}

		s.logEvent(lockCtx, actor, "consultation", strconv.FormatInt(saved.ID, 10), EventReportAttached, map[string]any{
			"report_id": report.ID.String(),
			"fulfilled": in.TestID != nil,
			"file":      in.File.URL,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReportFile returns a report that has an uploaded file, for download.
func (s *Service) ReportFile(ctx context.Context, actor Actor, consultationID int64, reportID uuid.UUID) (*Report, error) {
	c, err := s.GetConsultation(ctx, actor, consultationID)
	if err != nil {
		return nil, err
	}
	idx := findReport(c.Reports, reportID)
	if idx == -1 {
		return nil, ErrReportNotFound
	}
	if c.Reports[idx].ReportFile == "" {
		return nil, ErrReportNotUploaded
	}
	r := c.Reports[idx]
	return &r, nil
}

// removeStoredFile never fails the caller; storage errors are only logged.
func (s *Service) removeStoredFile(ctx context.Context, patientID int64, r Report) {
	if s.files == nil {
		return
	}
	key := r.FileKey
	if key == "" {
		key = LegacyReportKey(patientID, r.ID)
	}
	if err := s.files.Remove(ctx, key); err != nil {
		s.log.Warn().Err(err).
			Str("key", key).
			Str("report_id", r.ID.String()).
			Msg("failed to delete previous report file")
	}
}
