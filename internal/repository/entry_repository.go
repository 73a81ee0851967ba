package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/model"
)

const entryColumns = `id, society, kind, visitor_name, visitor_phone, visitor_company, visitor_vehicle,
	guard_id, guard_status, notification_id, has_exited, entry_time, exit_time, created_at, updated_at`

// EntryRepo provides data access to the entries table.  The guard-gate
// and exit transitions are conditional updates so that each transition
// can happen at most once regardless of request interleaving; the
// lifecycle layer turns a false result into the appropriate domain
// error.
type EntryRepo struct {
	db *sql.DB
}

// NewEntryRepo returns a new EntryRepo bound to the provided database.
func NewEntryRepo(db *sql.DB) *EntryRepo { return &EntryRepo{db: db} }

// CreateTx inserts an entry within the provided transaction and returns
// its ID.  Approval rows for the target apartments are inserted
// separately by ApprovalRepo.CreateBulkTx inside the same transaction.
func (r *EntryRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Entry) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (society, kind, visitor_name, visitor_phone, visitor_company, visitor_vehicle,
		 guard_id, guard_status, notification_id)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		e.Society, e.Kind, e.Visitor.Name, e.Visitor.Phone, e.Visitor.Company, e.Visitor.Vehicle,
		e.GuardID, model.StatusPending, e.NotificationID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches an entry by id.
func (r *EntryRepo) GetByID(ctx context.Context, id uint64) (model.Entry, error) {
	var e model.Entry
	err := r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id=? LIMIT 1", id).
		Scan(&e.ID, &e.Society, &e.Kind, &e.Visitor.Name, &e.Visitor.Phone, &e.Visitor.Company, &e.Visitor.Vehicle,
			&e.GuardID, &e.GuardStatus, &e.NotificationID, &e.HasExited, &e.EntryTime, &e.ExitTime, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, gate.ErrNotFound
	}
	return e, err
}

// EntryFilter narrows List results.  Zero values mean "any".
type EntryFilter struct {
	Kind        string     // entry kind, e.g. DELIVERY
	GuardStatus string     // gate decision status
	From        *time.Time // created_at lower bound (inclusive)
	To          *time.Time // created_at upper bound (exclusive)
	Limit       int        // page size, defaults to 50
	Offset      int
}

// List returns the society's entries, newest first.
func (r *EntryRepo) List(ctx context.Context, society string, f EntryFilter) ([]model.Entry, error) {
	query := "SELECT " + entryColumns + " FROM entries WHERE society=?"
	args := []interface{}{society}
	if f.Kind != "" {
		query += " AND kind=?"
		args = append(args, f.Kind)
	}
	if f.GuardStatus != "" {
		query += " AND guard_status=?"
		args = append(args, f.GuardStatus)
	}
	if f.From != nil {
		query += " AND created_at >= ?"
		args = append(args, f.From.UTC().Format("2006-01-02 15:04:05"))
	}
	if f.To != nil {
		query += " AND created_at < ?"
		args = append(args, f.To.UTC().Format("2006-01-02 15:04:05"))
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Entry
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.Society, &e.Kind, &e.Visitor.Name, &e.Visitor.Phone, &e.Visitor.Company, &e.Visitor.Vehicle,
			&e.GuardID, &e.GuardStatus, &e.NotificationID, &e.HasExited, &e.EntryTime, &e.ExitTime, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GuardResolve records the gate decision, stamping entry_time on an
// admit and closing the record on a reject (a rejected visitor never
// exits a gate they never passed).  Reports whether the row
// transitioned out of PENDING.
func (r *EntryRepo) GuardResolve(ctx context.Context, id, guardID uint64, status string) (bool, error) {
	var res sql.Result
	var err error
	if status == model.StatusApproved {
		res, err = r.db.ExecContext(ctx,
			`UPDATE entries SET guard_status=?, guard_id=?, entry_time=UTC_TIMESTAMP()
			 WHERE id=? AND guard_status=?`,
			status, guardID, id, model.StatusPending)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE entries SET guard_status=?, guard_id=?, has_exited=1
			 WHERE id=? AND guard_status=?`,
			status, guardID, id, model.StatusPending)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkExited stamps the exit of an admitted visitor.  Reports whether
// the row transitioned; false means the visitor was never admitted or
// already exited.
func (r *EntryRepo) MarkExited(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE entries SET has_exited=1, exit_time=UTC_TIMESTAMP()
		 WHERE id=? AND guard_status=? AND has_exited=0`,
		id, model.StatusApproved)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
