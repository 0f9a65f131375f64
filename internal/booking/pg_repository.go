package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxDB is the slice of pgxpool.Pool the repository needs. pgxmock
// satisfies it too, which is how the transaction flows are tested.
type PgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db PgxDB
}

func NewPgRepository(db PgxDB) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.CredentialID, &p.Bio, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.BirthDate, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var online bool
	err := row.Scan(
		&s.ID,
		&s.ProfessionalID,
		&s.Date,
		&s.Start,
		&s.End,
		&s.Price,
		&online,
		&s.Location,
		&s.Notes,
		&s.Status,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	s.Modality = ModalityFromOnline(online)
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var online bool
	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&a.ProfessionalID,
		&a.Date,
		&a.Time,
		&a.Price,
		&online,
		&a.Notes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Modality = ModalityFromOnline(online)
	return &a, nil
}

const appointmentColumns = `id, slot_id, patient_id, professional_id, date, start_time, price, online, notes, status, created_at, updated_at`

const slotColumns = `id, professional_id, date, start_time, end_time, price, online, location, notes, status, created_at`

// Interface methods

func (r *PgRepository) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialty, credential_id, bio, created_at
		FROM professionals
		WHERE id = $1
	`, id)
	return scanProfessional(row)
}

func (r *PgRepository) ListProfessionals(ctx context.Context, specialty string) ([]Professional, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, specialty, credential_id, bio, created_at
		FROM professionals
		WHERE $1 = '' OR specialty = $1
		ORDER BY name
	`, specialty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, phone, birth_date, created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// PublishSlots inserts a whole generated window in one transaction so a
// failure never leaves a half-published day.
func (r *PgRepository) PublishSlots(ctx context.Context, slots []Slot) error {
	if len(slots) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_slots
				(id, professional_id, date, start_time, end_time, price, online, location, notes, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'open', now())
		`, s.ID, s.ProfessionalID, s.Date, s.Start, s.End, s.Price, s.Modality.Online(), s.Location, s.Notes)
		if err != nil {
			return fmt.Errorf("insert slot %s %s: %w", s.Date.Format("2006-01-02"), s.Start, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	return nil
}

func (r *PgRepository) ListOpenSlots(ctx context.Context, professionalID uuid.UUID, from time.Time) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE professional_id = $1
		  AND status = 'open'
		  AND date >= $2
		ORDER BY date, start_time
	`, professionalID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// Reserve converts an open slot into a scheduled appointment. The slot row
// is re-read under FOR UPDATE inside the transaction, so two concurrent
// calls for the same slot serialize and exactly one sees it open. The
// appointment insert and the slot close commit together or not at all.
func (r *PgRepository) Reserve(ctx context.Context, key SlotKey, appt NewAppointment) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	var slotRow pgx.Row
	if key.SlotID != nil {
		slotRow = tx.QueryRow(ctx, `
			SELECT `+slotColumns+`
			FROM availability_slots
			WHERE id = $1 AND status = 'open'
			FOR UPDATE
		`, *key.SlotID)
	} else {
		// Legacy tuple lookup. ORDER BY id pins the match when duplicate
		// time entries exist.
		slotRow = tx.QueryRow(ctx, `
			SELECT `+slotColumns+`
			FROM availability_slots
			WHERE professional_id = $1 AND date = $2 AND start_time = $3 AND status = 'open'
			ORDER BY id
			LIMIT 1
			FOR UPDATE
		`, key.ProfessionalID, key.Date, key.Start)
	}

	slot, err := scanSlot(slotRow)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}

	id := uuid.New()
	apptRow := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, slot_id, patient_id, professional_id, date, start_time, price, online, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'scheduled', now(), now())
		RETURNING `+appointmentColumns+`
	`, id, slot.ID, appt.PatientID, slot.ProfessionalID, slot.Date, slot.Start, slot.Price, slot.Modality.Online(), appt.Notes)

	created, err := scanAppointment(apptRow)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE availability_slots
		SET status = 'closed'
		WHERE id = $1 AND status = 'open'
	`, slot.ID)
	if err != nil {
		return nil, fmt.Errorf("close slot: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, ErrSlotUnavailable
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) CancelAndReopenSlot(ctx context.Context, id uuid.UUID, from AppointmentStatus) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns+`
	`, id, from)

	cancelled, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE availability_slots
		SET status = 'open'
		WHERE id = $1 AND status = 'closed'
	`, cancelled.SlotID)
	if err != nil {
		return nil, fmt.Errorf("reopen slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	return cancelled, nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]PatientAppointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.slot_id, a.patient_id, a.professional_id, a.date, a.start_time,
		       a.price, a.online, a.notes, a.status, a.created_at, a.updated_at,
		       p.name, p.specialty
		FROM appointments a
		JOIN professionals p ON p.id = a.professional_id
		WHERE a.patient_id = $1
		ORDER BY a.date, a.start_time
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PatientAppointment
	for rows.Next() {
		var pa PatientAppointment
		var online bool
		err := rows.Scan(
			&pa.ID, &pa.SlotID, &pa.PatientID, &pa.ProfessionalID, &pa.Date, &pa.Time,
			&pa.Price, &online, &pa.Notes, &pa.Status, &pa.CreatedAt, &pa.UpdatedAt,
			&pa.ProfessionalName, &pa.ProfessionalSpecialty,
		)
		if err != nil {
			return nil, err
		}
		pa.Modality = ModalityFromOnline(online)
		result = append(result, pa)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListAppointmentsByProfessional(ctx context.Context, professionalID uuid.UUID) ([]ProfessionalAppointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.slot_id, a.patient_id, a.professional_id, a.date, a.start_time,
		       a.price, a.online, a.notes, a.status, a.created_at, a.updated_at,
		       p.name, p.phone, p.birth_date
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.professional_id = $1
		ORDER BY a.date, a.start_time
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()

	var result []ProfessionalAppointment
	for rows.Next() {
		var pa ProfessionalAppointment
		var online bool
		var birthDate *time.Time
		err := rows.Scan(
			&pa.ID, &pa.SlotID, &pa.PatientID, &pa.ProfessionalID, &pa.Date, &pa.Time,
			&pa.Price, &online, &pa.Notes, &pa.Status, &pa.CreatedAt, &pa.UpdatedAt,
			&pa.PatientName, &pa.PatientPhone, &birthDate,
		)
		if err != nil {
			return nil, err
		}
		pa.Modality = ModalityFromOnline(online)
		if birthDate != nil {
			age := AgeAt(*birthDate, now)
			pa.PatientAge = &age
		}
		result = append(result, pa)
	}
	return result, rows.Err()
}

func (r *PgRepository) CloseStaleSlots(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE availability_slots
		SET status = 'closed'
		WHERE status = 'open' AND date < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("close stale slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
