package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wecare/booking-service/internal/config"
	redisclient "github.com/wecare/booking-service/internal/redis"
)

const (
	EventWindowPublished          = "WINDOW_PUBLISHED"
	EventAppointmentScheduled     = "APPOINTMENT_SCHEDULED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

var (
	ErrForbidden         = errors.New("actor may not modify this appointment")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSlotContended means the per-slot lock was held by another
	// reservation attempt. To the caller it is the same "pick another
	// time" outcome as ErrSlotUnavailable.
	ErrSlotContended = errors.New("slot is currently being booked, please retry")
)

// ValidationError marks malformed or missing input. Never retried.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cache  redisclient.Cache
	cfg    config.Config
	log    *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cache redisclient.Cache, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		locker: locker,
		cache:  cache,
		cfg:    cfg,
		log:    log,
	}
}

type PublishWindowInput struct {
	ProfessionalID  uuid.UUID
	Date            time.Time
	Start           string
	End             string
	IntervalMinutes int
	Price           float64
	Modality        Modality
	Location        *string
	Notes           *string
}

// PublishWindow expands a working-hours window into slots and persists
// them in one transaction. Returns how many slots were created.
func (s *Service) PublishWindow(ctx context.Context, in PublishWindowInput) (int, error) {
	if in.IntervalMinutes < s.cfg.MinSlotInterval {
		return 0, validationErrorf("interval must be at least %d minutes", s.cfg.MinSlotInterval)
	}
	if in.Price <= 0 {
		return 0, validationErrorf("price must be positive")
	}
	if in.Date.IsZero() {
		return 0, validationErrorf("date is required")
	}

	start, err := ParseTimeOfDay(in.Start)
	if err != nil {
		return 0, validationErrorf("invalid start time %q", in.Start)
	}
	end, err := ParseTimeOfDay(in.End)
	if err != nil {
		return 0, validationErrorf("invalid end time %q", in.End)
	}
	if start.Minutes() >= end.Minutes() {
		return 0, validationErrorf("start must be before end")
	}

	if _, err := s.repo.GetProfessionalByID(ctx, in.ProfessionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("load professional: %w", err)
	}

	times := ExpandWindow(start, end, in.IntervalMinutes)
	if len(times) == 0 {
		return 0, validationErrorf("window produced no slots")
	}

	slots := make([]Slot, 0, len(times))
	for _, st := range times {
		slots = append(slots, Slot{
			ID:             uuid.New(),
			ProfessionalID: in.ProfessionalID,
			Date:           in.Date,
			Start:          st.Start,
			End:            st.End,
			Price:          in.Price,
			Modality:       in.Modality,
			Location:       in.Location,
			Notes:          in.Notes,
			Status:         SlotOpen,
		})
	}

	if err := s.repo.PublishSlots(ctx, slots); err != nil {
		return 0, fmt.Errorf("publish slots: %w", err)
	}

	s.invalidateAvailability(ctx, in.ProfessionalID)
	s.logEvent(ctx, nil, EventWindowPublished, map[string]any{
		"professional_id": in.ProfessionalID.String(),
		"date":            in.Date.Format("2006-01-02"),
		"slots":           len(slots),
	})

	return len(slots), nil
}

// ListAvailability returns a professional's open slots from today forward,
// grouped by date (yyyy-mm-dd), each day ordered by start time. Served
// cache-aside: stale reads are fine because Reserve re-validates inside
// its transaction.
func (s *Service) ListAvailability(ctx context.Context, professionalID uuid.UUID) (map[string][]Slot, error) {
	key := availabilityKey(professionalID)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached map[string][]Slot
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	slots, err := s.repo.ListOpenSlots(ctx, professionalID, todayUTC())
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}

	grouped := make(map[string][]Slot, len(slots))
	for _, slot := range slots {
		day := slot.Date.Format("2006-01-02")
		grouped[day] = append(grouped[day], slot)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(grouped); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cfg.CacheTTL); err != nil {
				s.log.Warn("cache availability", zap.Error(err))
			}
		}
	}

	return grouped, nil
}

type ReserveInput struct {
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	Date           time.Time
	Time           string
	SlotID         *uuid.UUID
	Notes          *string
}

// Reserve converts an open slot into a scheduled appointment. The caller's
// view of availability may be arbitrarily stale; the repository re-checks
// the slot under a row lock inside one transaction, so of two concurrent
// reservations for the same slot exactly one wins and the other gets
// ErrSlotUnavailable.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (*Appointment, error) {
	if in.SlotID == nil {
		if in.Date.IsZero() || in.Time == "" {
			return nil, validationErrorf("slot_id or (date, time) is required")
		}
		if _, err := ParseTimeOfDay(in.Time); err != nil {
			return nil, validationErrorf("invalid time %q", in.Time)
		}
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	key := SlotKey{
		SlotID:         in.SlotID,
		ProfessionalID: in.ProfessionalID,
		Date:           in.Date,
		Start:          in.Time,
	}

	var created *Appointment
	reserve := func(ctx context.Context) error {
		appt, err := s.repo.Reserve(ctx, key, NewAppointment{
			PatientID: in.PatientID,
			Notes:     in.Notes,
		})
		if err != nil {
			return err
		}
		created = appt
		return nil
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, lockKey(key), reserve)
	} else {
		err = reserve(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	s.invalidateAvailability(ctx, created.ProfessionalID)
	s.logEvent(ctx, &created.ID, EventAppointmentScheduled, map[string]any{
		"slot_id":    created.SlotID.String(),
		"patient_id": created.PatientID.String(),
		"date":       created.Date.Format("2006-01-02"),
		"time":       created.Time,
	})

	return created, nil
}

// SetStatus moves an appointment along the status state machine. Only the
// appointment's professional or an admin may transition it. Cancelling
// reopens the originating slot when the service is configured to.
func (s *Service) SetStatus(ctx context.Context, actor Identity, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if !ValidStatus(to) {
		return nil, validationErrorf("unknown status %q", to)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	switch {
	case actor.Role == RoleAdmin:
	case actor.Role == RoleProfessional && actor.ID == appt.ProfessionalID:
	default:
		return nil, ErrForbidden
	}

	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	var updated *Appointment
	if to == StatusCancelled && s.cfg.ReopenSlotOnCancel {
		updated, err = s.repo.CancelAndReopenSlot(ctx, id, appt.Status)
	} else {
		updated, err = s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	}
	if err != nil {
		// A missing row here means the status moved underneath us after
		// the read above; the compare-and-set refused the stale edge.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	if to == StatusCancelled && s.cfg.ReopenSlotOnCancel {
		s.invalidateAvailability(ctx, updated.ProfessionalID)
	}

	s.logEvent(ctx, &updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})

	return updated, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]PatientAppointment, error) {
	result, err := s.repo.ListAppointmentsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return result, nil
}

func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]ProfessionalAppointment, error) {
	result, err := s.repo.ListAppointmentsByProfessional(ctx, professionalID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by professional: %w", err)
	}
	return result, nil
}

func (s *Service) GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error) {
	return s.repo.GetProfessionalByID(ctx, id)
}

func (s *Service) ListProfessionals(ctx context.Context, specialty string) ([]Professional, error) {
	result, err := s.repo.ListProfessionals(ctx, specialty)
	if err != nil {
		return nil, fmt.Errorf("list professionals: %w", err)
	}
	return result, nil
}

// SweepStaleSlots closes open slots dated before today. Run periodically
// by the sweep worker; listing already filters past dates, this keeps the
// table from accumulating dead open inventory.
func (s *Service) SweepStaleSlots(ctx context.Context) (int64, error) {
	n, err := s.repo.CloseStaleSlots(ctx, todayUTC())
	if err != nil {
		return 0, fmt.Errorf("sweep stale slots: %w", err)
	}
	if n > 0 {
		s.log.Info("closed stale slots", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("insert event log", zap.String("event", eventType), zap.Error(err))
	}
}

func (s *Service) invalidateAvailability(ctx context.Context, professionalID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, availabilityKey(professionalID)); err != nil {
		s.log.Warn("invalidate availability cache", zap.Error(err))
	}
}

func availabilityKey(professionalID uuid.UUID) string {
	return "availability:" + professionalID.String()
}

func lockKey(key SlotKey) string {
	if key.SlotID != nil {
		return key.SlotID.String()
	}
	return fmt.Sprintf("%s:%s:%s", key.ProfessionalID, key.Date.Format("2006-01-02"), key.Start)
}

func todayUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
