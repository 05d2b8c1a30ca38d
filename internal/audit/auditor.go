package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/wallet"
)

// SlotDrift is a slot whose is_booked flag disagrees with its appointments.
type SlotDrift struct {
	SlotID         uuid.UUID
	IsBooked       bool
	ActiveBookings int
}

// UnbalancedReference is a payment or refund whose two ledger rows do not mirror each other.
type UnbalancedReference struct {
	Reference string
	Type      wallet.TxType
	Rows      int
	NetDelta  wallet.Money
}

// BalanceDrift is a wallet whose stored balance differs from the sum of its ledger rows.
type BalanceDrift struct {
	Account   wallet.Account
	Stored    wallet.Money
	LedgerSum wallet.Money
}

type Report struct {
	CheckedAt    time.Time
	Slots        []SlotDrift
	Unbalanced   []UnbalancedReference
	BalanceDrift []BalanceDrift
}

func (r Report) Clean() bool {
	return len(r.Slots) == 0 && len(r.Unbalanced) == 0 && len(r.BalanceDrift) == 0
}

// Log writes one line per finding, or a single info line when clean.
func (r Report) Log(log *zap.Logger) {
	if r.Clean() {
		log.Info("ledger audit clean", zap.Time("checked_at", r.CheckedAt))
		return
	}
	for _, s := range r.Slots {
		log.Error("slot flag drift",
			zap.String("slot_id", s.SlotID.String()),
			zap.Bool("is_booked", s.IsBooked),
			zap.Int("active_bookings", s.ActiveBookings),
		)
	}
	for _, u := range r.Unbalanced {
		log.Error("unbalanced ledger reference",
			zap.String("reference", u.Reference),
			zap.String("type", string(u.Type)),
			zap.Int("rows", u.Rows),
			zap.Int64("net_delta_cents", int64(u.NetDelta)),
		)
	}
	for _, b := range r.BalanceDrift {
		log.Error("wallet balance drift",
			zap.String("account", b.Account.String()),
			zap.Int64("stored_cents", int64(b.Stored)),
			zap.Int64("ledger_sum_cents", int64(b.LedgerSum)),
		)
	}
}

// Auditor checks the booking and ledger invariants with read-only queries.
type Auditor struct {
	db  db.DBTX
	now func() time.Time
}

func NewAuditor(q db.DBTX) *Auditor {
	return &Auditor{db: q, now: time.Now}
}

func (a *Auditor) Run(ctx context.Context) (Report, error) {
	r := Report{CheckedAt: a.now()}
	var err error

	if r.Slots, err = a.SlotDrift(ctx); err != nil {
		return r, err
	}
	if r.Unbalanced, err = a.UnbalancedReferences(ctx); err != nil {
		return r, err
	}
	if r.BalanceDrift, err = a.BalanceDrift(ctx); err != nil {
		return r, err
	}
	return r, nil
}

func (a *Auditor) SlotDrift(ctx context.Context) ([]SlotDrift, error) {
	rows, err := a.db.Query(ctx, `
		SELECT s.id, s.is_booked, count(ap.id)::int
		FROM time_slots s
		LEFT JOIN appointments ap
		  ON ap.time_slot_id = s.id AND ap.status IN ('confirmed', 'completed')
		GROUP BY s.id, s.is_booked
		HAVING (s.is_booked AND count(ap.id) <> 1)
		    OR (NOT s.is_booked AND count(ap.id) > 0)
	`)
	if err != nil {
		return nil, fmt.Errorf("query slot drift: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SlotDrift, error) {
		var d SlotDrift
		err := row.Scan(&d.SlotID, &d.IsBooked, &d.ActiveBookings)
		return d, err
	})
}

func (a *Auditor) UnbalancedReferences(ctx context.Context) ([]UnbalancedReference, error) {
	rows, err := a.db.Query(ctx, `
		SELECT reference, type, count(*)::int,
		       COALESCE(sum(balance_after_cents - balance_before_cents), 0)::bigint
		FROM wallet_transactions
		WHERE type IN ('payment', 'refund')
		GROUP BY reference, type
		HAVING count(*) <> 2
		    OR sum(balance_after_cents - balance_before_cents) <> 0
		    OR min(amount_cents) <> max(amount_cents)
	`)
	if err != nil {
		return nil, fmt.Errorf("query unbalanced references: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (UnbalancedReference, error) {
		var u UnbalancedReference
		var typ string
		var net int64
		err := row.Scan(&u.Reference, &typ, &u.Rows, &net)
		u.Type = wallet.TxType(typ)
		u.NetDelta = wallet.Money(net)
		return u, err
	})
}

func (a *Auditor) BalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := a.db.Query(ctx, `
		WITH sums AS (
			SELECT owner_kind, owner_id, sum(balance_after_cents - balance_before_cents)::bigint AS total
			FROM wallet_transactions
			GROUP BY owner_kind, owner_id
		)
		SELECT 'patient', p.id, p.wallet_balance_cents, COALESCE(s.total, 0)
		FROM patients p
		LEFT JOIN sums s ON s.owner_kind = 'patient' AND s.owner_id = p.id
		WHERE p.wallet_balance_cents <> COALESCE(s.total, 0)
		UNION ALL
		SELECT 'clinic', c.clinic_id, c.balance_cents, COALESCE(s.total, 0)
		FROM clinic_wallets c
		LEFT JOIN sums s ON s.owner_kind = 'clinic' AND s.owner_id = c.clinic_id
		WHERE c.balance_cents <> COALESCE(s.total, 0)
	`)
	if err != nil {
		return nil, fmt.Errorf("query balance drift: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BalanceDrift, error) {
		var d BalanceDrift
		var kind string
		var stored, sum int64
		err := row.Scan(&kind, &d.Account.ID, &stored, &sum)
		d.Account.Kind = wallet.OwnerKind(kind)
		d.Stored = wallet.Money(stored)
		d.LedgerSum = wallet.Money(sum)
		return d, err
	})
}
