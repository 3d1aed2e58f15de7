package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/healthcare-coordination/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

const dateLayout = "2006-01-02"

const userColumns = "id,email,password_hash,role,is_active,is_verified,full_name,phone_number,date_of_birth,gender,preferred_language,created_at,updated_at"

// UserRepo is the credential store. It owns the users table and the
// role-specific patients, doctors and ngos tables.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail lower-cases and trims an address. It is applied to every
// email before it is written or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailExists reports whether a user with the normalized email exists.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE email=? LIMIT 1", NormalizeEmail(email)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateWithProfile inserts the user row and, when profile is non-nil, the
// matching role-specific row in a single transaction. Either both rows are
// committed or neither is. A unique key violation on email is reported as
// ErrEmailExists.
func (r *UserRepo) CreateWithProfile(ctx context.Context, u model.User, profile model.RoleProfile) (uint64, error) {
	if profile != nil && profile.Role() != u.Role {
		return 0, fmt.Errorf("profile for role %q given to %q user", profile.Role(), u.Role)
	}
	var id uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (email, password_hash, role, is_active, is_verified, full_name, phone_number, date_of_birth, gender, preferred_language)
			 VALUES (?,?,?,?,?,?,?,?,?,?)`,
			NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), u.IsActive, u.IsVerified,
			u.FullName, u.PhoneNumber, nullableDate(u.DateOfBirth), u.Gender, u.PreferredLanguage)
		if err != nil {
			if isDuplicate(err) {
				return ErrEmailExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		id = uint64(lastID)
		if profile == nil {
			return nil
		}
		if err := insertProfile(ctx, tx, id, profile); err != nil {
			return fmt.Errorf("insert %s profile: %w", profile.Role(), err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertProfile(ctx context.Context, tx *sql.Tx, userID uint64, profile model.RoleProfile) error {
	var err error
	switch p := profile.(type) {
	case model.PatientProfile:
		_, err = tx.ExecContext(ctx, "INSERT INTO patients (user_id) VALUES (?)", userID)
	case model.DoctorProfile:
		_, err = tx.ExecContext(ctx,
			"INSERT INTO doctors (user_id, specialization, license_number) VALUES (?,?,?)",
			userID, p.Specialization, p.LicenseNumber)
	case model.NGOProfile:
		_, err = tx.ExecContext(ctx,
			"INSERT INTO ngos (user_id, organization_name) VALUES (?,?)",
			userID, p.OrganizationName)
	default:
		err = fmt.Errorf("unsupported profile type %T", profile)
	}
	return err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// List returns users ordered by id. An empty role lists every role.
func (r *UserRepo) List(ctx context.Context, role model.Role, limit, offset int) ([]model.User, error) {
	query := "SELECT " + userColumns + " FROM users"
	args := []interface{}{}
	if role != "" {
		query += " WHERE role=?"
		args = append(args, string(role))
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateProfile overwrites the editable profile columns of a user. Email,
// role and password are not touched.
func (r *UserRepo) UpdateProfile(ctx context.Context, u model.User) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET full_name=?, phone_number=?, date_of_birth=?, gender=?, preferred_language=?, updated_at=UTC_TIMESTAMP()
		 WHERE id=?`,
		u.FullName, u.PhoneNumber, nullableDate(u.DateOfBirth), u.Gender, u.PreferredLanguage, u.ID)
	return err
}

// SetActive toggles users.is_active.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=?, updated_at=UTC_TIMESTAMP() WHERE id=?", active, id)
	return err
}

// Delete removes a user. Role-specific rows go with it through ON DELETE
// CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(s rowScanner) (model.User, error) {
	var (
		u    model.User
		role string
		dob  sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.IsActive, &u.IsVerified,
		&u.FullName, &u.PhoneNumber, &dob, &u.Gender, &u.PreferredLanguage, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if dob.Valid {
		u.DateOfBirth = dob.Time.Format(dateLayout)
	}
	return u, nil
}

func nullableDate(s string) interface{} {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout)
	}
	return nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
