package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/model"
)

const preApprovedColumns = `id, code_id, society, kind, visitor_name, visitor_phone, visitor_company, visitor_vehicle,
	guard_id, guard_status, notification_id, has_exited, entry_time, exit_time, created_at, updated_at`

// PreApprovedRepo provides data access to the preapproved table, the
// realized visit records produced by redeeming a check-in code.  The
// lifecycle transitions mirror EntryRepo's conditional updates.
type PreApprovedRepo struct {
	db *sql.DB
}

// NewPreApprovedRepo returns a new PreApprovedRepo bound to the provided database.
func NewPreApprovedRepo(db *sql.DB) *PreApprovedRepo { return &PreApprovedRepo{db: db} }

// CreateTx inserts a pre-approved record within the provided transaction
// and returns its ID.  Redemption runs code consumption, this insert and
// the approval-row copy in one transaction.
func (r *PreApprovedRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.PreApproved) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO preapproved (code_id, society, kind, visitor_name, visitor_phone, visitor_company, visitor_vehicle,
		 guard_id, guard_status, notification_id)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.CodeID, p.Society, p.Kind, p.Visitor.Name, p.Visitor.Phone, p.Visitor.Company, p.Visitor.Vehicle,
		p.GuardID, p.GuardStatus, p.NotificationID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a pre-approved record by id.
func (r *PreApprovedRepo) GetByID(ctx context.Context, id uint64) (model.PreApproved, error) {
	var p model.PreApproved
	err := r.db.QueryRowContext(ctx,
		"SELECT "+preApprovedColumns+" FROM preapproved WHERE id=? LIMIT 1", id).
		Scan(&p.ID, &p.CodeID, &p.Society, &p.Kind, &p.Visitor.Name, &p.Visitor.Phone, &p.Visitor.Company, &p.Visitor.Vehicle,
			&p.GuardID, &p.GuardStatus, &p.NotificationID, &p.HasExited, &p.EntryTime, &p.ExitTime, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, gate.ErrNotFound
	}
	return p, err
}

// GuardResolve records the gate decision for a pre-approved visit, with
// the same stamping rules as entries.
func (r *PreApprovedRepo) GuardResolve(ctx context.Context, id, guardID uint64, status string) (bool, error) {
	var res sql.Result
	var err error
	if status == model.StatusApproved {
		res, err = r.db.ExecContext(ctx,
			`UPDATE preapproved SET guard_status=?, guard_id=?, entry_time=UTC_TIMESTAMP()
			 WHERE id=? AND guard_status=?`,
			status, guardID, id, model.StatusPending)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE preapproved SET guard_status=?, guard_id=?, has_exited=1
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

// MarkExited stamps the exit of an admitted pre-approved visitor.
func (r *PreApprovedRepo) MarkExited(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE preapproved SET has_exited=1, exit_time=UTC_TIMESTAMP()
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
