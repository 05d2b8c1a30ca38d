package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/wallet"
)

// PgDirectory answers doctor and patient lookups straight from the pool.
type PgDirectory struct {
	db db.DBTX
}

func NewPgDirectory(q db.DBTX) *PgDirectory {
	return &PgDirectory{db: q}
}

var (
	_ DoctorDirectory  = (*PgDirectory)(nil)
	_ PatientDirectory = (*PgDirectory)(nil)
)

// GetActiveDoctor returns tombstoned doctors too, with Deleted set, so the
// caller can tell "gone" from "never existed".
func (d *PgDirectory) GetActiveDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var doc Doctor
	var fee int64
	var deletedAt *time.Time

	err := d.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, consultation_fee_cents, is_active, deleted_at
		FROM doctors
		WHERE id = $1
	`, id).Scan(&doc.ID, &doc.ClinicID, &doc.Name, &fee, &doc.IsActive, &deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	doc.ConsultationFee = wallet.Money(fee)
	doc.Deleted = deletedAt != nil
	return &doc, nil
}

func (d *PgDirectory) GetWalletCredentials(ctx context.Context, patientID uuid.UUID) (*WalletCredentials, error) {
	var c WalletCredentials
	var hash *string
	var activatedAt *time.Time
	var balance int64

	err := d.db.QueryRow(ctx, `
		SELECT id, wallet_pin_hash, wallet_activated_at, wallet_balance_cents
		FROM patients
		WHERE id = $1
	`, patientID).Scan(&c.PatientID, &hash, &activatedAt, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	if hash != nil {
		c.PinHash = *hash
	}
	c.Activated = activatedAt != nil && c.PinHash != ""
	c.Balance = wallet.Money(balance)
	return &c, nil
}
