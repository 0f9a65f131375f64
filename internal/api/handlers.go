package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wecare/booking-service/internal/booking"
)

// BookingService is the slice of the booking service the handlers use.
type BookingService interface {
	PublishWindow(ctx context.Context, in booking.PublishWindowInput) (int, error)
	ListAvailability(ctx context.Context, professionalID uuid.UUID) (map[string][]booking.Slot, error)
	Reserve(ctx context.Context, in booking.ReserveInput) (*booking.Appointment, error)
	SetStatus(ctx context.Context, actor booking.Identity, id uuid.UUID, to booking.AppointmentStatus) (*booking.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]booking.PatientAppointment, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]booking.ProfessionalAppointment, error)
	GetProfessional(ctx context.Context, id uuid.UUID) (*booking.Professional, error)
	ListProfessionals(ctx context.Context, specialty string) ([]booking.Professional, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func publishWindowHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PublishWindowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		professionalID, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}

		identity, _ := IdentityFrom(r.Context())
		if identity.Role != booking.RoleAdmin {
			if identity.Role != booking.RoleProfessional || identity.ID != professionalID {
				writeError(w, http.StatusForbidden, "forbidden", "only the professional may publish their own availability")
				return
			}
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be yyyy-mm-dd")
			return
		}

		count, err := svc.PublishWindow(r.Context(), booking.PublishWindowInput{
			ProfessionalID:  professionalID,
			Date:            date,
			Start:           req.Start,
			End:             req.End,
			IntervalMinutes: req.IntervalMinutes,
			Price:           req.Price,
			Modality:        booking.ModalityFromOnline(req.Online),
			Location:        req.Location,
			Notes:           req.Notes,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, PublishWindowResponse{Created: count})
	}
}

func listAvailabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "id must be a valid UUID")
			return
		}

		grouped, err := svc.ListAvailability(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make(map[string][]SlotResponse, len(grouped))
		for day, slots := range grouped {
			views := make([]SlotResponse, 0, len(slots))
			for _, s := range slots {
				views = append(views, toSlotResponse(s))
			}
			resp[day] = views
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func reserveHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReserveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		professionalID, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}

		identity, _ := IdentityFrom(r.Context())
		if identity.Role != booking.RoleAdmin && identity.ID != patientID {
			writeError(w, http.StatusForbidden, "forbidden", "patients may only book for themselves")
			return
		}

		in := booking.ReserveInput{
			PatientID:      patientID,
			ProfessionalID: professionalID,
			Time:           req.Time,
			Notes:          req.Notes,
		}
		if req.SlotID != nil {
			slotID, err := uuid.Parse(*req.SlotID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
				return
			}
			in.SlotID = &slotID
		}
		if req.Date != "" {
			date, err := time.Parse("2006-01-02", req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be yyyy-mm-dd")
				return
			}
			in.Date = date
		}

		appt, err := svc.Reserve(r.Context(), in)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		identity, _ := IdentityFrom(r.Context())

		appt, err := svc.SetStatus(r.Context(), identity, id, booking.AppointmentStatus(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listByPatientHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		identity, _ := IdentityFrom(r.Context())
		if identity.Role != booking.RoleAdmin && identity.ID != id {
			writeError(w, http.StatusForbidden, "forbidden", "patients may only view their own appointments")
			return
		}

		appts, err := svc.ListByPatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]PatientAppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, PatientAppointmentResponse{
				AppointmentResponse:   toAppointmentResponse(&appts[i].Appointment),
				ProfessionalName:      appts[i].ProfessionalName,
				ProfessionalSpecialty: appts[i].ProfessionalSpecialty,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listByProfessionalHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "id must be a valid UUID")
			return
		}

		identity, _ := IdentityFrom(r.Context())
		if identity.Role != booking.RoleAdmin && identity.ID != id {
			writeError(w, http.StatusForbidden, "forbidden", "professionals may only view their own appointments")
			return
		}

		appts, err := svc.ListByProfessional(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]ProfessionalAppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, ProfessionalAppointmentResponse{
				AppointmentResponse: toAppointmentResponse(&appts[i].Appointment),
				PatientName:         appts[i].PatientName,
				PatientPhone:        appts[i].PatientPhone,
				PatientAge:          appts[i].PatientAge,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listProfessionalsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pros, err := svc.ListProfessionals(r.Context(), r.URL.Query().Get("area"))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]ProfessionalResponse, 0, len(pros))
		for _, p := range pros {
			resp = append(resp, toProfessionalResponse(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getProfessionalHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "id must be a valid UUID")
			return
		}

		pro, err := svc.GetProfessional(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProfessionalResponse(*pro))
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
	case errors.Is(err, booking.ErrSlotUnavailable), errors.Is(err, booking.ErrSlotContended):
		// The expected outcome of losing a booking race: the caller
		// should pick another time.
		writeError(w, http.StatusBadRequest, "slot unavailable", "the requested slot is no longer open")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid_transition", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "temporary failure, please retry")
	}
}
