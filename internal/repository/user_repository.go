package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/model"
	"github.com/iliyamo/society-gate-access/internal/utils"
)

const userColumns = "id,name,phone,password_hash,role,society,block,apartment,gate,device_token,is_active,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrPhoneExists = errors.New("phone already registered")

// Create inserts a user and returns its ID. The phone number is the
// login identifier and must be unique.
func (r *UserRepo) Create(ctx context.Context, u model.User, password string, cost int) (uint64, error) {
	phone := strings.TrimSpace(u.Phone)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, phone, password_hash, role, society, block, apartment, gate, device_token) VALUES (?,?,?,?,?,?,?,?,?)",
		u.Name, phone, hash, u.Role, u.Society, u.Block, u.Apartment, u.Gate, u.DeviceToken)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrPhoneExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByPhone fetches a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone=? LIMIT 1",
		strings.TrimSpace(phone)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdateDeviceToken stores the push token of the user's current device.
func (r *UserRepo) UpdateDeviceToken(ctx context.Context, id uint64, token string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET device_token=? WHERE id=?", token, id)
	return err
}

// ResidentsOfApartments lists the active residents of the given
// apartments within one society, for notification fan-out. Residents
// without a registered device are included with an empty token; the
// dispatcher skips those.
func (r *UserRepo) ResidentsOfApartments(ctx context.Context, society string, apts []model.ApartmentRef) ([]gate.Recipient, error) {
	if len(apts) == 0 {
		return nil, nil
	}
	query := "SELECT id, device_token FROM users WHERE role=? AND is_active=1 AND society=? AND ("
	args := []interface{}{model.RoleResident, society}
	for i, a := range apts {
		if i > 0 {
			query += " OR "
		}
		query += "(block=? AND apartment=?)"
		args = append(args, a.Block, a.Apartment)
	}
	query += ")"
	rows, err := r.DB.QueryContext(ctx, query, args...)
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

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.PasswordHash, &u.Role, &u.Society,
		&u.Block, &u.Apartment, &u.Gate, &u.DeviceToken, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
