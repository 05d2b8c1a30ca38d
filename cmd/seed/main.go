package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logger"
	"github.com/hackgods/clinic-booking/internal/wallet"
)

// Every seeded patient wallet is activated with this PIN.
const seedPIN = "1234"

type seeder struct {
	pool   *pgxpool.Pool
	ledger *wallet.Ledger
	log    *zap.Logger
	loc    *time.Location
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewZapLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	gofakeit.Seed(time.Now().UnixNano())

	s := &seeder{pool: pool, ledger: wallet.NewLedger(log), log: log, loc: cfg.Location}

	clinics, err := s.seedClinics(ctx, 5)
	if err != nil {
		log.Fatal("seed clinics", zap.Error(err))
	}
	doctors, err := s.seedDoctors(ctx, clinics, 20)
	if err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	if err := s.seedSlots(ctx, doctors, 14); err != nil {
		log.Fatal("seed slots", zap.Error(err))
	}
	if err := s.seedPatients(ctx, 2000); err != nil {
		log.Fatal("seed patients", zap.Error(err))
	}

	log.Info("seed complete", zap.String("wallet_pin", seedPIN))
}

func (s *seeder) seedClinics(ctx context.Context, count int) ([]uuid.UUID, error) {
	s.log.Info("seeding clinics", zap.Int("count", count))

	ids := make([]uuid.UUID, 0, count)
	err := db.WithTx(ctx, s.pool, 0, func(tx pgx.Tx) error {
		repo := wallet.NewPgRepository(tx)
		for i := 0; i < count; i++ {
			id := uuid.New()
			if _, err := tx.Exec(ctx, `
				INSERT INTO clinics (id, name, created_at)
				VALUES ($1, $2, now())
			`, id, gofakeit.Company()+" Medical Center"); err != nil {
				return err
			}
			// Float so the first refunds succeed, recorded as a deposit so the ledger audit balances.
			opening := wallet.Money(gofakeit.Number(500, 2000) * 100)
			if _, err := s.ledger.Deposit(ctx, repo, wallet.ClinicAccount(id), opening, "SEED-"+id.String(), "opening float"); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

type seededDoctor struct {
	id       uuid.UUID
	clinicID uuid.UUID
}

func (s *seeder) seedDoctors(ctx context.Context, clinics []uuid.UUID, count int) ([]seededDoctor, error) {
	s.log.Info("seeding doctors", zap.Int("count", count))

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

	doctors := make([]seededDoctor, 0, count)
	err := db.WithTx(ctx, s.pool, 0, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			d := seededDoctor{id: uuid.New(), clinicID: clinics[i%len(clinics)]}
			spec := specialties[gofakeit.Number(0, len(specialties)-1)]
			fee := int64(gofakeit.Number(5, 30)) * 500
			// A few doctors are inactive so the doctor_inactive path can be exercised.
			active := gofakeit.Number(1, 10) > 1

			if _, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, clinic_id, name, specialty, consultation_fee_cents, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			`, d.id, d.clinicID, "Dr. "+gofakeit.Name(), spec, fee, active); err != nil {
				return err
			}
			doctors = append(doctors, d)
		}
		return nil
	})
	return doctors, err
}

// seedSlots creates half-hour slots from 09:00 to 17:00 for the next days.
func (s *seeder) seedSlots(ctx context.Context, doctors []seededDoctor, days int) error {
	s.log.Info("seeding slots", zap.Int("doctors", len(doctors)), zap.Int("days", days))

	today := time.Now().In(s.loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	batch := &pgx.Batch{}
	for _, d := range doctors {
		for day := 1; day <= days; day++ {
			date := start.AddDate(0, 0, day)
			for minutes := 9 * 60; minutes < 17*60; minutes += 30 {
				batch.Queue(`
					INSERT INTO time_slots (id, doctor_id, date, start_time, end_time, is_booked)
					VALUES ($1, $2, $3, $4, $5, FALSE)
				`, uuid.New(), d.id, date, clock(minutes), clock(minutes+30))
			}
		}
	}

	return db.WithTx(ctx, s.pool, 0, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	s.log.Info("seeding patients", zap.Int("count", count))

	hash, err := appointment.HashPIN(seedPIN, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		err := db.WithTx(ctx, s.pool, 0, func(tx pgx.Tx) error {
			repo := wallet.NewPgRepository(tx)
			for i := offset; i < end; i++ {
				id := uuid.New()
				// One in ten wallets stays inactive.
				activated := i%10 != 0

				var pinHash, activatedAt any
				if activated {
					pinHash, activatedAt = hash, time.Now()
				}
				if _, err := tx.Exec(ctx, `
					INSERT INTO patients (id, name, email, wallet_balance_cents, wallet_pin_hash, wallet_activated_at, created_at, updated_at)
					VALUES ($1, $2, $3, 0, $4, $5, now(), now())
				`, id, gofakeit.Name(), gofakeit.Email(), pinHash, activatedAt); err != nil {
					return err
				}

				if !activated {
					continue
				}
				opening := wallet.Money(gofakeit.Number(0, 300) * 100)
				if opening == 0 {
					continue
				}
				if _, err := s.ledger.Deposit(ctx, repo, wallet.PatientAccount(id), opening, "SEED-"+id.String(), "opening balance"); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.log.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}
	return nil
}
