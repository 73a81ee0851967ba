package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/society-gate-access/internal/gate"
    "github.com/iliyamo/society-gate-access/internal/model"
)

const codeColumns = `id, society, kind, visitor_name, visitor_phone, visitor_company, visitor_vehicle,
    code, issued_by, block, apartment, valid_from, valid_until, consumed, guard_status,
    resolve_deadline, notification_id, created_at, updated_at`

// CheckInCodeRepo provides data access to the checkin_codes table.  A code
// is "live" while it is unconsumed and its valid_until is either NULL or in
// the future; the six digit value is unique within the society's live set.
// Codes of kind SERVICE are gate passes and additionally carry a guard gate
// plus a persisted resolve_deadline that the scheduler re-arms after a
// restart.  All timestamps are stored and compared in UTC.
type CheckInCodeRepo struct {
    db *sql.DB
}

// NewCheckInCodeRepo returns a new CheckInCodeRepo bound to the provided database.
func NewCheckInCodeRepo(db *sql.DB) *CheckInCodeRepo { return &CheckInCodeRepo{db: db} }

// fmtNullTime renders a nullable timestamp for a datetime column.  The
// driver accepts nil for NULL; non-nil values are normalized to UTC.
func fmtNullTime(t *time.Time) interface{} {
    if t == nil {
        return nil
    }
    return t.UTC().Format("2006-01-02 15:04:05")
}

// CreateTx inserts a check-in code within the provided transaction and
// returns its ID.  The caller must have drawn the code value through the
// generator beforehand so it does not collide with the live set, and is
// responsible for committing or rolling back the transaction.
func (r *CheckInCodeRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.CheckInCode) (uint64, error) {
    res, err := tx.ExecContext(ctx,
        `INSERT INTO checkin_codes (society, kind, visitor_name, visitor_phone, visitor_company, visitor_vehicle,
         code, issued_by, block, apartment, valid_from, valid_until, guard_status, resolve_deadline, notification_id)
         VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
        c.Society, c.Kind, c.Visitor.Name, c.Visitor.Phone, c.Visitor.Company, c.Visitor.Vehicle,
        c.Code, c.IssuedBy, c.Block, c.Apartment,
        fmtNullTime(c.ValidFrom), fmtNullTime(c.ValidUntil),
        c.GuardStatus, fmtNullTime(c.ResolveDeadline), c.NotificationID)
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// GetByID fetches a code by id.
func (r *CheckInCodeRepo) GetByID(ctx context.Context, id uint64) (model.CheckInCode, error) {
    return r.scanOne(r.db.QueryRowContext(ctx,
        "SELECT "+codeColumns+" FROM checkin_codes WHERE id=? LIMIT 1", id))
}

// GetUnconsumedByCode fetches the unconsumed code with the given value in
// the society.  Validity windows are not filtered here: an expired code
// must still be found so redemption can report the window denial instead
// of a generic not-found.
func (r *CheckInCodeRepo) GetUnconsumedByCode(ctx context.Context, society, code string) (model.CheckInCode, error) {
    return r.scanOne(r.db.QueryRowContext(ctx,
        "SELECT "+codeColumns+" FROM checkin_codes WHERE society=? AND code=? AND consumed=0 LIMIT 1",
        society, code))
}

// ListByIssuer returns the codes a user issued, newest first.
func (r *CheckInCodeRepo) ListByIssuer(ctx context.Context, issuedBy uint64) ([]model.CheckInCode, error) {
    rows, err := r.db.QueryContext(ctx,
        "SELECT "+codeColumns+" FROM checkin_codes WHERE issued_by=? ORDER BY created_at DESC, id DESC LIMIT 100",
        issuedBy)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.CheckInCode
    for rows.Next() {
        c, err := r.scanRow(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    return out, rows.Err()
}

// LiveCodes returns the code values currently live in the society.  The
// generator rejects draws against this set, so a value can only recur
// after its earlier issue was consumed or expired.
func (r *CheckInCodeRepo) LiveCodes(ctx context.Context, society string) ([]string, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT code FROM checkin_codes
         WHERE society=? AND consumed=0 AND (valid_until IS NULL OR valid_until > UTC_TIMESTAMP())`,
        society)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var codes []string
    for rows.Next() {
        var c string
        if err := rows.Scan(&c); err != nil {
            return nil, err
        }
        codes = append(codes, c)
    }
    return codes, rows.Err()
}

// ConsumeTx marks the code consumed within the provided transaction.  It
// reports whether this call performed the consumption; false means another
// gate redeemed the code first.
func (r *CheckInCodeRepo) ConsumeTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
    res, err := tx.ExecContext(ctx,
        `UPDATE checkin_codes SET consumed=1 WHERE id=? AND consumed=0`, id)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// GuardAutoResolve resolves the guard gate of a gate pass whose approval
// deadline elapsed.  The status=PENDING condition makes a duplicate
// deadline fire, or a race with any other resolution path, a no-op.
func (r *CheckInCodeRepo) GuardAutoResolve(ctx context.Context, passID uint64, status string) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE checkin_codes SET guard_status=?, resolve_deadline=NULL
         WHERE id=? AND kind=? AND guard_status=?`,
        status, passID, model.KindService, model.StatusPending)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// PendingDeadlines lists the gate passes whose guard gate is still PENDING
// and whose resolve_deadline is set.  The scheduler sweeps this at startup
// so pending resolutions survive a process restart.
func (r *CheckInCodeRepo) PendingDeadlines(ctx context.Context) ([]gate.PassDeadline, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, resolve_deadline FROM checkin_codes
         WHERE kind=? AND guard_status=? AND resolve_deadline IS NOT NULL`,
        model.KindService, model.StatusPending)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []gate.PassDeadline
    for rows.Next() {
        var d gate.PassDeadline
        if err := rows.Scan(&d.PassID, &d.Deadline); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

// MembersByStatus partitions the active residents of the pass's target
// apartments by their apartment's current approval status.
func (r *CheckInCodeRepo) MembersByStatus(ctx context.Context, passID uint64) (approved, rejected, pending []gate.Recipient, err error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT a.status, u.id, u.device_token
         FROM approvals a
         JOIN checkin_codes c ON c.id = a.parent_id
         JOIN users u ON u.society = c.society AND u.block = a.block AND u.apartment = a.apartment
         WHERE a.parent_kind = ? AND a.parent_id = ? AND u.role = ? AND u.is_active = 1`,
        model.ParentCode, passID, model.RoleResident)
    if err != nil {
        return nil, nil, nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var status string
        var rec gate.Recipient
        if err := rows.Scan(&status, &rec.UserID, &rec.DeviceToken); err != nil {
            return nil, nil, nil, err
        }
        switch status {
        case model.StatusApproved:
            approved = append(approved, rec)
        case model.StatusRejected:
            rejected = append(rejected, rec)
        default:
            pending = append(pending, rec)
        }
    }
    return approved, rejected, pending, rows.Err()
}

// Issuer identifies the user who requested the pass.
func (r *CheckInCodeRepo) Issuer(ctx context.Context, passID uint64) (gate.Recipient, error) {
    var rec gate.Recipient
    err := r.db.QueryRowContext(ctx,
        `SELECT u.id, u.device_token FROM checkin_codes c JOIN users u ON u.id = c.issued_by WHERE c.id=?`,
        passID).Scan(&rec.UserID, &rec.DeviceToken)
    if errors.Is(err, sql.ErrNoRows) {
        return rec, gate.ErrNotFound
    }
    return rec, err
}

type codeScanner interface {
    Scan(dest ...interface{}) error
}

func (r *CheckInCodeRepo) scanOne(row *sql.Row) (model.CheckInCode, error) {
    c, err := r.scanRow(row)
    if errors.Is(err, sql.ErrNoRows) {
        return c, gate.ErrNotFound
    }
    return c, err
}

func (r *CheckInCodeRepo) scanRow(s codeScanner) (model.CheckInCode, error) {
    var c model.CheckInCode
    err := s.Scan(&c.ID, &c.Society, &c.Kind, &c.Visitor.Name, &c.Visitor.Phone, &c.Visitor.Company, &c.Visitor.Vehicle,
        &c.Code, &c.IssuedBy, &c.Block, &c.Apartment, &c.ValidFrom, &c.ValidUntil, &c.Consumed, &c.GuardStatus,
        &c.ResolveDeadline, &c.NotificationID, &c.CreatedAt, &c.UpdatedAt)
    return c, err
}
