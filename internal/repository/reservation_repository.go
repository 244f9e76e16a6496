package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/table-reservations/internal/availability"
	"github.com/iliyamo/table-reservations/internal/model"
)

// ReservationRepo is the MySQL-backed reservation store. It serves the
// capacity ledger's read contract (FindActiveBySlot, FindActiveByDate)
// as well as the CRUD operations used by the reservation service. All
// timestamps are stored in UTC.
type ReservationRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo {
	return &ReservationRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ListFilter narrows List results. Empty fields do not filter.
type ListFilter struct {
	Date             string
	Status           model.Status
	IncludeCancelled bool
}

// reservationColumns formats the DATE column as YYYY-MM-DD so it scans
// straight into model.Reservation.Date.
const reservationColumns = `id, customer_name, number_of_people,
       DATE_FORMAT(reservation_date, '%Y-%m-%d') AS reservation_date, slot_time,
       phone, email, special_requests, status, created_at, updated_at`

// Ping verifies the database is reachable.
func (r *ReservationRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FindActiveBySlot returns party sizes of non-cancelled reservations at
// date and slot.
func (r *ReservationRepo) FindActiveBySlot(ctx context.Context, date, slot string) ([]availability.Commitment, error) {
	const q = `SELECT slot_time, number_of_people
               FROM reservations
               WHERE reservation_date = ? AND slot_time = ? AND status <> 'cancelled'
               ORDER BY created_at`
	out := make([]availability.Commitment, 0)
	if err := r.db.SelectContext(ctx, &out, q, date, slot); err != nil {
		return nil, fmt.Errorf("find active reservations for %s %s: %w", date, slot, err)
	}
	return out, nil
}

// FindActiveByDate returns slot and party size of every non-cancelled
// reservation on date.
func (r *ReservationRepo) FindActiveByDate(ctx context.Context, date string) ([]availability.Commitment, error) {
	const q = `SELECT slot_time, number_of_people
               FROM reservations
               WHERE reservation_date = ? AND status <> 'cancelled'
               ORDER BY slot_time, created_at`
	out := make([]availability.Commitment, 0)
	if err := r.db.SelectContext(ctx, &out, q, date); err != nil {
		return nil, fmt.Errorf("find active reservations for %s: %w", date, err)
	}
	return out, nil
}

// GetByID loads one reservation. It returns ErrNotFound when the ID is unknown.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.GetContext(ctx, &res, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	return &res, nil
}

// List returns reservations ordered by date, time and creation. Cancelled
// reservations are skipped unless the filter asks for them or filters on
// the cancelled status explicitly.
func (r *ReservationRepo) List(ctx context.Context, f ListFilter) ([]model.Reservation, error) {
	where := []string{}
	args := []any{}
	if f.Date != "" {
		where = append(where, "reservation_date = ?")
		args = append(args, f.Date)
	}
	switch {
	case f.Status != "":
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	case !f.IncludeCancelled:
		where = append(where, "status <> 'cancelled'")
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	q := `SELECT ` + reservationColumns + `
          FROM reservations
          WHERE ` + cond + `
          ORDER BY reservation_date, slot_time, created_at`
	out := make([]model.Reservation, 0)
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

// Create inserts res. When seatLimit is positive and res is active, the
// slot's active rows are locked and the insert fails with ErrSlotFull if
// the slot would exceed seatLimit.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation, seatLimit int) error {
	const q = `INSERT INTO reservations
               (id, customer_name, number_of_people, reservation_date, slot_time,
                phone, email, special_requests, status, created_at, updated_at)
               VALUES (:id, :customer_name, :number_of_people, :reservation_date, :slot_time,
                :phone, :email, :special_requests, :status, :created_at, :updated_at)`
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if seatLimit > 0 && res.Active() {
			if err := ensureSeatsTx(ctx, tx, res.Date, res.Time, "", res.NumberOfPeople, seatLimit); err != nil {
				return err
			}
		}
		if _, err := tx.NamedExecContext(ctx, q, res); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	})
}

// Update replaces every editable field of res (all but id and created_at).
// res.CreatedAt is refreshed from the stored row. It returns ErrNotFound
// for an unknown ID and ErrSlotFull when the capacity guard trips.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation, seatLimit int) error {
	const q = `UPDATE reservations
               SET customer_name = :customer_name, number_of_people = :number_of_people,
                   reservation_date = :reservation_date, slot_time = :slot_time,
                   phone = :phone, email = :email, special_requests = :special_requests,
                   status = :status, updated_at = :updated_at
               WHERE id = :id`
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := lockByIDTx(ctx, tx, res.ID)
		if err != nil {
			return err
		}
		if seatLimit > 0 && res.Active() {
			if err := ensureSeatsTx(ctx, tx, res.Date, res.Time, res.ID, res.NumberOfPeople, seatLimit); err != nil {
				return err
			}
		}
		if _, err := tx.NamedExecContext(ctx, q, res); err != nil {
			return fmt.Errorf("update reservation %s: %w", res.ID, err)
		}
		res.CreatedAt = cur.CreatedAt
		return nil
	})
}

// SetStatus moves a reservation to status and returns the updated row.
// Reactivating a cancelled reservation goes through the capacity guard.
func (r *ReservationRepo) SetStatus(ctx context.Context, id string, status model.Status, seatLimit int) (*model.Reservation, error) {
	var out *model.Reservation
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := lockByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if seatLimit > 0 && !cur.Active() && status.Active() {
			if err := ensureSeatsTx(ctx, tx, cur.Date, cur.Time, id, cur.NumberOfPeople, seatLimit); err != nil {
				return err
			}
		}
		now := r.now()
		const q = `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, q, string(status), now, id); err != nil {
			return fmt.Errorf("set status of reservation %s: %w", id, err)
		}
		cur.Status = status
		cur.UpdatedAt = now
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a reservation. It returns ErrNotFound when nothing was deleted.
func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reservation %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// withTx runs fn in a transaction, rolling back unless fn succeeds and the
// commit goes through.
func (r *ReservationRepo) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func lockByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*model.Reservation, error) {
	var cur model.Reservation
	err := tx.GetContext(ctx, &cur, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock reservation %s: %w", id, err)
	}
	return &cur, nil
}

// ensureSeatsTx locks the active rows of a slot and checks that adding
// party seats stays within limit. excludeID skips the reservation being
// edited.
func ensureSeatsTx(ctx context.Context, tx *sqlx.Tx, date, slot, excludeID string, party, limit int) error {
	const q = `SELECT COALESCE(SUM(number_of_people), 0)
               FROM reservations
               WHERE reservation_date = ? AND slot_time = ? AND status <> 'cancelled' AND id <> ?
               FOR UPDATE`
	var committed int
	if err := tx.GetContext(ctx, &committed, q, date, slot, excludeID); err != nil {
		return fmt.Errorf("count seats for %s %s: %w", date, slot, err)
	}
	if committed+party > limit {
		return ErrSlotFull
	}
	return nil
}
