package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func slotRows(t *testing.T, s Slot) *pgxmock.Rows {
	t.Helper()
	return pgxmock.NewRows([]string{
		"id", "professional_id", "date", "start_time", "end_time",
		"price", "online", "location", "notes", "status", "created_at",
	}).AddRow(
		s.ID, s.ProfessionalID, s.Date, s.Start, s.End,
		s.Price, s.Modality.Online(), s.Location, s.Notes, s.Status, s.CreatedAt,
	)
}

func appointmentRows(t *testing.T, a Appointment) *pgxmock.Rows {
	t.Helper()
	return pgxmock.NewRows([]string{
		"id", "slot_id", "patient_id", "professional_id", "date", "start_time",
		"price", "online", "notes", "status", "created_at", "updated_at",
	}).AddRow(
		a.ID, a.SlotID, a.PatientID, a.ProfessionalID, a.Date, a.Time,
		a.Price, a.Modality.Online(), a.Notes, a.Status, a.CreatedAt, a.UpdatedAt,
	)
}

func testSlot(profID uuid.UUID) Slot {
	return Slot{
		ID:             uuid.New(),
		ProfessionalID: profID,
		Date:           time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Start:          "08:00",
		End:            "08:30",
		Price:          180,
		Modality:       ModalityOnline,
		Status:         SlotOpen,
		CreatedAt:      time.Now(),
	}
}

func TestReserveBySlotID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)

	profID := uuid.New()
	patientID := uuid.New()
	slot := testSlot(profID)

	appt := Appointment{
		ID:             uuid.New(),
		SlotID:         slot.ID,
		PatientID:      patientID,
		ProfessionalID: profID,
		Date:           slot.Date,
		Time:           slot.Start,
		Price:          slot.Price,
		Modality:       slot.Modality,
		Status:         StatusScheduled,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM availability_slots\s+WHERE id = \$1 AND status = 'open'\s+FOR UPDATE`).
		WithArgs(slot.ID).
		WillReturnRows(slotRows(t, slot))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(pgxmock.AnyArg(), slot.ID, patientID, profID, slot.Date, slot.Start, slot.Price, true, (*string)(nil)).
		WillReturnRows(appointmentRows(t, appt))
	mock.ExpectExec(`UPDATE availability_slots\s+SET status = 'closed'`).
		WithArgs(slot.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	created, err := repo.Reserve(context.Background(), SlotKey{SlotID: &slot.ID}, NewAppointment{PatientID: patientID})
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if created.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", created.Status)
	}
	if created.Modality != ModalityOnline {
		t.Errorf("modality = %s, want online", created.Modality)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReserveSlotAlreadyClosed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)
	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM availability_slots\s+WHERE id = \$1 AND status = 'open'`).
		WithArgs(slotID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err = repo.Reserve(context.Background(), SlotKey{SlotID: &slotID}, NewAppointment{PatientID: uuid.New()})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("error = %v, want ErrSlotUnavailable", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// The appointment insert succeeds but the slot close touches no row. The
// whole transaction must roll back: no appointment without a closed slot.
func TestReserveRollsBackWhenSlotCloseLosesRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)

	profID := uuid.New()
	patientID := uuid.New()
	slot := testSlot(profID)
	appt := Appointment{
		ID: uuid.New(), SlotID: slot.ID, PatientID: patientID, ProfessionalID: profID,
		Date: slot.Date, Time: slot.Start, Price: slot.Price, Modality: slot.Modality,
		Status: StatusScheduled, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM availability_slots`).
		WithArgs(slot.ID).
		WillReturnRows(slotRows(t, slot))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(pgxmock.AnyArg(), slot.ID, patientID, profID, slot.Date, slot.Start, slot.Price, true, (*string)(nil)).
		WillReturnRows(appointmentRows(t, appt))
	mock.ExpectExec(`UPDATE availability_slots\s+SET status = 'closed'`).
		WithArgs(slot.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err = repo.Reserve(context.Background(), SlotKey{SlotID: &slot.ID}, NewAppointment{PatientID: patientID})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("error = %v, want ErrSlotUnavailable", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReserveByLegacyTuple(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)

	profID := uuid.New()
	patientID := uuid.New()
	slot := testSlot(profID)
	appt := Appointment{
		ID: uuid.New(), SlotID: slot.ID, PatientID: patientID, ProfessionalID: profID,
		Date: slot.Date, Time: slot.Start, Price: slot.Price, Modality: slot.Modality,
		Status: StatusScheduled, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM availability_slots\s+WHERE professional_id = \$1 AND date = \$2 AND start_time = \$3`).
		WithArgs(profID, slot.Date, slot.Start).
		WillReturnRows(slotRows(t, slot))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(pgxmock.AnyArg(), slot.ID, patientID, profID, slot.Date, slot.Start, slot.Price, true, (*string)(nil)).
		WillReturnRows(appointmentRows(t, appt))
	mock.ExpectExec(`UPDATE availability_slots\s+SET status = 'closed'`).
		WithArgs(slot.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	created, err := repo.Reserve(context.Background(), SlotKey{
		ProfessionalID: profID,
		Date:           slot.Date,
		Start:          slot.Start,
	}, NewAppointment{PatientID: patientID})
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if created.SlotID != slot.ID {
		t.Errorf("slot id = %s, want %s", created.SlotID, slot.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPublishSlotsIsOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)

	profID := uuid.New()
	slots := []Slot{testSlot(profID), testSlot(profID)}
	slots[1].Start, slots[1].End = "08:30", "09:00"

	mock.ExpectBegin()
	for _, s := range slots {
		mock.ExpectExec(`INSERT INTO availability_slots`).
			WithArgs(s.ID, s.ProfessionalID, s.Date, s.Start, s.End, s.Price, true, (*string)(nil), (*string)(nil)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	if err := repo.PublishSlots(context.Background(), slots); err != nil {
		t.Fatalf("PublishSlots error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPublishSlotsRollsBackOnInsertFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)

	profID := uuid.New()
	slots := []Slot{testSlot(profID), testSlot(profID)}
	slots[1].Start, slots[1].End = "08:30", "09:00"

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO availability_slots`).
		WithArgs(slots[0].ID, profID, slots[0].Date, slots[0].Start, slots[0].End, slots[0].Price, true, (*string)(nil), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO availability_slots`).
		WithArgs(slots[1].ID, profID, slots[1].Date, slots[1].Start, slots[1].End, slots[1].Price, true, (*string)(nil), (*string)(nil)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if err := repo.PublishSlots(context.Background(), slots); err == nil {
		t.Fatal("expected publish failure")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateAppointmentStatusIsCompareAndSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE appointments\s+SET status = \$2`).
		WithArgs(id, StatusConfirmed, StatusScheduled).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.UpdateAppointmentStatus(context.Background(), id, StatusScheduled, StatusConfirmed)
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("error = %v, want ErrAppointmentNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListAppointmentsByPatientProjection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)
	patientID := uuid.New()

	day1 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "slot_id", "patient_id", "professional_id", "date", "start_time",
		"price", "online", "notes", "status", "created_at", "updated_at",
		"name", "specialty",
	}).AddRow(
		uuid.New(), uuid.New(), patientID, uuid.New(), day1, "08:00",
		180.0, true, nil, StatusScheduled, now, now,
		"Dra. Souza", "Cardiology",
	).AddRow(
		uuid.New(), uuid.New(), patientID, uuid.New(), day2, "14:30",
		220.0, false, nil, StatusConfirmed, now, now,
		"Dr. Lima", "Dermatology",
	)

	mock.ExpectQuery(`FROM appointments a\s+JOIN professionals p ON p\.id = a\.professional_id\s+WHERE a\.patient_id = \$1\s+ORDER BY a\.date, a\.start_time`).
		WithArgs(patientID).
		WillReturnRows(rows)

	got, err := repo.ListAppointmentsByPatient(context.Background(), patientID)
	if err != nil {
		t.Fatalf("ListAppointmentsByPatient error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	first := got[0]
	if first.ProfessionalName != "Dra. Souza" || first.ProfessionalSpecialty != "Cardiology" {
		t.Errorf("joined professional = %q/%q, want Dra. Souza/Cardiology",
			first.ProfessionalName, first.ProfessionalSpecialty)
	}
	if !first.Date.Equal(day1) || first.Time != "08:00" {
		t.Errorf("first row = %s %s, want %s 08:00", first.Date, first.Time, day1)
	}
	if first.Modality != ModalityOnline {
		t.Errorf("first modality = %s, want online", first.Modality)
	}
	if got[1].Modality != ModalityInPerson || got[1].Status != StatusConfirmed {
		t.Errorf("second row = %s/%s, want in_person/confirmed", got[1].Modality, got[1].Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// The professional agenda derives the patient's age from birth_date at
// query time; rows without a birth date carry no age.
func TestListAppointmentsByProfessionalProjection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)
	profID := uuid.New()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	birth := time.Date(2000, 6, 15, 0, 0, 0, 0, time.UTC)
	phone := "11 91234-5678"

	rows := pgxmock.NewRows([]string{
		"id", "slot_id", "patient_id", "professional_id", "date", "start_time",
		"price", "online", "notes", "status", "created_at", "updated_at",
		"name", "phone", "birth_date",
	}).AddRow(
		uuid.New(), uuid.New(), uuid.New(), profID, day, "08:00",
		180.0, false, nil, StatusScheduled, now, now,
		"Ana Prado", &phone, &birth,
	).AddRow(
		uuid.New(), uuid.New(), uuid.New(), profID, day, "08:30",
		180.0, true, nil, StatusScheduled, now, now,
		"Bruno Reis", nil, nil,
	)

	mock.ExpectQuery(`FROM appointments a\s+JOIN patients p ON p\.id = a\.patient_id\s+WHERE a\.professional_id = \$1\s+ORDER BY a\.date, a\.start_time`).
		WithArgs(profID).
		WillReturnRows(rows)

	got, err := repo.ListAppointmentsByProfessional(context.Background(), profID)
	if err != nil {
		t.Fatalf("ListAppointmentsByProfessional error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}

	withBirth := got[0]
	if withBirth.PatientName != "Ana Prado" {
		t.Errorf("patient name = %q, want Ana Prado", withBirth.PatientName)
	}
	if withBirth.PatientPhone == nil || *withBirth.PatientPhone != phone {
		t.Errorf("patient phone = %v, want %q", withBirth.PatientPhone, phone)
	}
	if withBirth.PatientAge == nil {
		t.Fatal("patient age = nil, want derived from birth date")
	}
	if want := AgeAt(birth, time.Now()); *withBirth.PatientAge != want {
		t.Errorf("patient age = %d, want %d", *withBirth.PatientAge, want)
	}

	if got[1].PatientAge != nil {
		t.Errorf("age without birth date = %d, want nil", *got[1].PatientAge)
	}
	if got[1].PatientPhone != nil {
		t.Errorf("phone without record = %v, want nil", got[1].PatientPhone)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCloseStaleSlots(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPgRepository(mock)
	before := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE availability_slots\s+SET status = 'closed'\s+WHERE status = 'open' AND date < \$1`).
		WithArgs(before).
		WillReturnResult(pgxmock.NewResult("UPDATE", 7))

	n, err := repo.CloseStaleSlots(context.Background(), before)
	if err != nil {
		t.Fatalf("CloseStaleSlots error: %v", err)
	}
	if n != 7 {
		t.Fatalf("closed = %d, want 7", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
