package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type SlotStatus string

const (
	SlotOpen   SlotStatus = "open"
	SlotClosed SlotStatus = "closed"
)

// Modality is the closed form of the legacy online flag, which arrived from
// clients as 0/1, booleans or strings depending on the screen.
type Modality string

const (
	ModalityOnline   Modality = "online"
	ModalityInPerson Modality = "in_person"
)

func ModalityFromOnline(online bool) Modality {
	if online {
		return ModalityOnline
	}
	return ModalityInPerson
}

func (m Modality) Online() bool {
	return m == ModalityOnline
}

type Role string

const (
	RolePatient      Role = "patient"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// Identity is the {id, role} pair supplied by the authentication
// collaborator. The core never reads ambient session state.
type Identity struct {
	ID   uuid.UUID
	Role Role
}

type Professional struct {
	ID           uuid.UUID
	Name         string
	Specialty    string
	CredentialID *string
	Bio          *string
	CreatedAt    time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     *string
	BirthDate *time.Time
	CreatedAt time.Time
}

// Slot is one bookable unit of a professional's time. Start and End are
// zero-padded HH:MM labels on the slot's Date.
type Slot struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	Date           time.Time
	Start          string
	End            string
	Price          float64
	Modality       Modality
	Location       *string
	Notes          *string
	Status         SlotStatus
	CreatedAt      time.Time
}

type Appointment struct {
	ID             uuid.UUID
	SlotID         uuid.UUID
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	Date           time.Time
	Time           string
	Price          float64
	Modality       Modality
	Notes          *string
	Status         AppointmentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PatientAppointment is the read-side row for a patient's agenda.
type PatientAppointment struct {
	Appointment
	ProfessionalName      string
	ProfessionalSpecialty string
}

// ProfessionalAppointment is the read-side row for a professional's agenda.
// PatientAge is derived from the patient's birth date at query time and is
// nil when no birth date is on file.
type ProfessionalAppointment struct {
	Appointment
	PatientName  string
	PatientPhone *string
	PatientAge   *int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
