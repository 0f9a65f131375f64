package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrSlotNotFound         = errors.New("slot not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrSlotUnavailable is the expected outcome of losing a reservation
	// race, not a system fault.
	ErrSlotUnavailable = errors.New("slot unavailable")
)

// SlotKey identifies the slot a reservation targets. SlotID is the
// preferred key; when nil the (professional, date, start) tuple is used as
// a legacy compatibility path for old clients that never learned slot ids.
type SlotKey struct {
	SlotID         *uuid.UUID
	ProfessionalID uuid.UUID
	Date           time.Time
	Start          string
}

// NewAppointment is the write model Reserve persists. Price and modality
// are copied from the locked slot row, not from here.
type NewAppointment struct {
	PatientID uuid.UUID
	Notes     *string
}

// Repository contains all DB interactions needed by the service.
// Multi-row mutations (PublishSlots, Reserve, CancelAndReopenSlot) are
// each one transaction inside the implementation; partial writes are
// never observable.
type Repository interface {
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)
	ListProfessionals(ctx context.Context, specialty string) ([]Professional, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	PublishSlots(ctx context.Context, slots []Slot) error
	ListOpenSlots(ctx context.Context, professionalID uuid.UUID, from time.Time) ([]Slot, error)

	// Reserve re-checks the slot is open under a row lock, inserts the
	// appointment as scheduled and closes the slot, atomically. Returns
	// ErrSlotUnavailable when no matching open slot exists.
	Reserve(ctx context.Context, key SlotKey, appt NewAppointment) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus is a compare-and-set single-row update; it
	// returns ErrAppointmentNotFound when no row matches (id, from).
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	// CancelAndReopenSlot cancels the appointment and reopens its
	// originating slot in one transaction.
	CancelAndReopenSlot(ctx context.Context, id uuid.UUID, from AppointmentStatus) (*Appointment, error)

	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]PatientAppointment, error)
	ListAppointmentsByProfessional(ctx context.Context, professionalID uuid.UUID) ([]ProfessionalAppointment, error)

	// CloseStaleSlots closes open slots dated strictly before the given
	// day and returns how many it touched.
	CloseStaleSlots(ctx context.Context, before time.Time) (int64, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
