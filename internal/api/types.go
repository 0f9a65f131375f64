package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/wecare/booking-service/internal/booking"
)

type PublishWindowRequest struct {
	ProfessionalID  string  `json:"professional_id"`
	Date            string  `json:"date"` // yyyy-mm-dd
	Start           string  `json:"start"`
	End             string  `json:"end"`
	IntervalMinutes int     `json:"interval_minutes"`
	Price           float64 `json:"price"`
	Online          bool    `json:"online"`
	Location        *string `json:"location,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type PublishWindowResponse struct {
	Created int `json:"created"`
}

type SlotResponse struct {
	ID       uuid.UUID `json:"id"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	Price    float64   `json:"price"`
	Online   bool      `json:"online"`
	Location *string   `json:"location,omitempty"`
	Notes    *string   `json:"notes,omitempty"`
}

func toSlotResponse(s booking.Slot) SlotResponse {
	return SlotResponse{
		ID:       s.ID,
		Start:    s.Start,
		End:      s.End,
		Price:    s.Price,
		Online:   s.Modality.Online(),
		Location: s.Location,
		Notes:    s.Notes,
	}
}

// ReserveRequest carries price and online for backward compatibility with
// old clients; the slot row is authoritative for both.
type ReserveRequest struct {
	PatientID      string  `json:"patient_id"`
	ProfessionalID string  `json:"professional_id"`
	Date           string  `json:"date,omitempty"`
	Time           string  `json:"time,omitempty"`
	SlotID         *string `json:"slot_id,omitempty"`
	Price          float64 `json:"price,omitempty"`
	Online         bool    `json:"online,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	SlotID         uuid.UUID `json:"slot_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Price          float64   `json:"price"`
	Online         bool      `json:"online"`
	Status         string    `json:"status"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		SlotID:         a.SlotID,
		PatientID:      a.PatientID,
		ProfessionalID: a.ProfessionalID,
		Date:           a.Date.Format("2006-01-02"),
		Time:           a.Time,
		Price:          a.Price,
		Online:         a.Modality.Online(),
		Status:         string(a.Status),
		Notes:          a.Notes,
		CreatedAt:      a.CreatedAt,
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type PatientAppointmentResponse struct {
	AppointmentResponse
	ProfessionalName      string `json:"professional_name"`
	ProfessionalSpecialty string `json:"professional_specialty"`
}

type ProfessionalAppointmentResponse struct {
	AppointmentResponse
	PatientName  string  `json:"patient_name"`
	PatientPhone *string `json:"patient_phone,omitempty"`
	PatientAge   *int    `json:"patient_age,omitempty"`
}

type ProfessionalResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Specialty    string    `json:"specialty"`
	CredentialID *string   `json:"credential_id,omitempty"`
	Bio          *string   `json:"bio,omitempty"`
}

func toProfessionalResponse(p booking.Professional) ProfessionalResponse {
	return ProfessionalResponse{
		ID:           p.ID,
		Name:         p.Name,
		Specialty:    p.Specialty,
		CredentialID: p.CredentialID,
		Bio:          p.Bio,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
