package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wecare/booking-service/internal/booking"
	"github.com/wecare/booking-service/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	professionals, err := seedProfessionals(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed professionals: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAvailability(context.Background(), pool, professionals, 7); err != nil {
		log.Fatalf("seed availability: %v", err)
	}

	log.Println("seed complete")
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d professionals", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		credential := gofakeit.Numerify("CRM-######")
		bio := gofakeit.Sentence(12)

		_, err := tx.Exec(ctx, `
			INSERT INTO professionals (id, name, specialty, credential_id, bio, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, id, name, spec, credential, bio)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("professionals seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			phone := gofakeit.Phone()
			birthDate := gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC),
			)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, birth_date, created_at)
				VALUES ($1, $2, $3, $4, now())
			`, id, name, phone, birthDate)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedAvailability publishes a standard working day for every professional
// over the next few days, one transaction per professional per day.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, professionals []uuid.UUID, days int) error {
	log.Printf("seeding availability for %d professionals over %d days", len(professionals), days)

	start := booking.TimeOfDay{Hour: 8}
	end := booking.TimeOfDay{Hour: 17}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	total := 0
	for _, profID := range professionals {
		interval := []int{30, 45, 60}[gofakeit.Number(0, 2)]
		price := float64(gofakeit.Number(80, 400))
		online := gofakeit.Bool()
		times := booking.ExpandWindow(start, end, interval)

		for d := 1; d <= days; d++ {
			date := today.AddDate(0, 0, d)

			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}

			for _, st := range times {
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_slots
						(id, professional_id, date, start_time, end_time, price, online, location, notes, status, created_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, 'open', now())
				`, uuid.New(), profID, date, st.Start, st.End, price, online)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
				total++
			}

			if err := tx.Commit(ctx); err != nil {
				return err
			}
		}
	}

	log.Printf("availability seeded: %d slots", total)
	return nil
}
