package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/model"
)

// ApprovalRepo provides data access to the approvals table, the
// normalized child records holding one row per target apartment of an
// entry, check-in code or pre-approved record.  The pair
// (parent_kind, parent_id) addresses the owning record.  It implements
// the approval store contract used by the ledger: ResolvePending is a
// single conditional UPDATE, so concurrent responses for the same
// apartment can never both win.
type ApprovalRepo struct {
	db *sql.DB
}

// NewApprovalRepo returns a new ApprovalRepo bound to the provided database.
func NewApprovalRepo(db *sql.DB) *ApprovalRepo { return &ApprovalRepo{db: db} }

// CreateBulkTx inserts one PENDING approval row per target apartment
// within the provided transaction.  The caller is responsible for
// committing or rolling back.  Passing an empty slice has no effect.
func (r *ApprovalRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, parentKind string, parentID uint64, apts []model.ApartmentRef) error {
	if len(apts) == 0 {
		return nil
	}
	query := `INSERT INTO approvals (parent_kind, parent_id, block, apartment, status) VALUES `
	args := make([]interface{}, 0, len(apts)*5)
	for i, a := range apts {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, parentKind, parentID, a.Block, a.Apartment, model.StatusPending)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ResolvePending flips one apartment's row from PENDING to the given
// status, recording the responding resident and the response time.  It
// reports whether a row transitioned; false means the row does not
// exist or was already resolved, which the ledger disambiguates.
func (r *ApprovalRepo) ResolvePending(ctx context.Context, parentKind string, parentID uint64, apt model.ApartmentRef, residentID uint64, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE approvals SET status = ?, responded_by = ?, responded_at = UTC_TIMESTAMP()
		 WHERE parent_kind = ? AND parent_id = ? AND block = ? AND apartment = ? AND status = ?`,
		status, residentID, parentKind, parentID, apt.Block, apt.Apartment, model.StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// StatusFor returns the current status of one apartment's approval row.
func (r *ApprovalRepo) StatusFor(ctx context.Context, parentKind string, parentID uint64, apt model.ApartmentRef) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM approvals
		 WHERE parent_kind = ? AND parent_id = ? AND block = ? AND apartment = ? LIMIT 1`,
		parentKind, parentID, apt.Block, apt.Apartment).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", gate.ErrNotFound
	}
	return status, err
}

// States lists every approval row of one parent record.
func (r *ApprovalRepo) States(ctx context.Context, parentKind string, parentID uint64) ([]model.ApprovalState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, parent_kind, parent_id, block, apartment, status, responded_by, responded_at, created_at
		 FROM approvals WHERE parent_kind = ? AND parent_id = ? ORDER BY block, apartment`,
		parentKind, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ApprovalState
	for rows.Next() {
		var s model.ApprovalState
		if err := rows.Scan(&s.ID, &s.ParentKind, &s.ParentID, &s.Apartment.Block, &s.Apartment.Apartment,
			&s.Status, &s.RespondedBy, &s.RespondedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CopyForRedemptionTx duplicates the approval rows of a check-in code
// onto the pre-approved record created when the code is redeemed,
// preserving each apartment's status and responder.  Runs within the
// caller's transaction.
func (r *ApprovalRepo) CopyForRedemptionTx(ctx context.Context, tx *sql.Tx, codeID, preApprovedID uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO approvals (parent_kind, parent_id, block, apartment, status, responded_by, responded_at)
		 SELECT ?, ?, block, apartment, status, responded_by, responded_at
		 FROM approvals WHERE parent_kind = ? AND parent_id = ?`,
		model.ParentPreApproved, preApprovedID, model.ParentCode, codeID)
	return err
}

// CreateResolvedTx inserts a single already-APPROVED approval row,
// attributed to the given resident.  Redeeming a single-apartment code
// materializes the issuer's standing approval this way.
func (r *ApprovalRepo) CreateResolvedTx(ctx context.Context, tx *sql.Tx, parentKind string, parentID uint64, apt model.ApartmentRef, residentID uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO approvals (parent_kind, parent_id, block, apartment, status, responded_by, responded_at)
		 VALUES (?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`,
		parentKind, parentID, apt.Block, apt.Apartment, model.StatusApproved, residentID)
	return err
}

// RecipientsByStatus lists the active residents of every apartment
// whose approval row for the parent currently has the given status.
// The society scopes the apartment join, since approval rows carry
// only (block, apartment).
func (r *ApprovalRepo) RecipientsByStatus(ctx context.Context, society, parentKind string, parentID uint64, status string) ([]gate.Recipient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.device_token
		 FROM approvals a
		 JOIN users u ON u.society = ? AND u.block = a.block AND u.apartment = a.apartment
		 WHERE a.parent_kind = ? AND a.parent_id = ? AND a.status = ?
		   AND u.role = ? AND u.is_active = 1`,
		society, parentKind, parentID, status, model.RoleResident)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gate.Recipient
	for rows.Next() {
		var rec gate.Recipient
		if err := rows.Scan(&rec.UserID, &rec.DeviceToken); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
