package hospital

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const EventConsultationExpired = "CONSULTATION_EXPIRED"

// systemActor performs housekeeping transitions on behalf of the worker.
var systemActor = Actor{Role: RoleAdmin}

// ExpireStaleConsultations cancels consultations still in requested state
// whose booking time is older than cutoff. It returns how many were cancelled.
// Consultations that moved on while the batch ran are skipped.
func (s *Service) ExpireStaleConsultations(ctx context.Context, cutoff time.Time, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}

	ids, err := s.repo.FindStaleRequested(ctx, cutoff, batch)
	if err != nil {
		return 0, fmt.Errorf("find stale consultations: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		c, err := s.repo.GetConsultationByID(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Int64("consultation_id", id).Msg("stale consultation vanished")
			continue
		}
		if c.Status != ConsultationRequested {
			continue
		}

		_, err = s.TransitionConsultation(ctx, systemActor, id, ConsultationCancelled)
		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidStatusTransition), errors.Is(err, ErrDocumentBusy):
			continue
		default:
			s.log.Error().Err(err).Int64("consultation_id", id).Msg("failed to expire consultation")
			continue
		}

		expired++
		s.logEvent(ctx, systemActor, "consultation", strconv.FormatInt(id, 10), EventConsultationExpired, map[string]any{
			"reason":    "worker",
			"booked_at": c.BookedAt,
		})
	}
	return expired, nil
}
