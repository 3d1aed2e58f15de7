package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/healthcare-coordination/internal/model"
)

var userCols = []string{"id", "email", "password_hash", "role", "is_active", "is_verified",
	"full_name", "phone_number", "date_of_birth", "gender", "preferred_language", "created_at", "updated_at"}

func newMock(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepo(db), mock
}

func janeUser() model.User {
	return model.User{
		Email:             " Jane@Example.com ",
		PasswordHash:      "$2a$10$hash",
		Role:              model.RolePatient,
		IsActive:          true,
		FullName:          "Jane Doe",
		PreferredLanguage: "en",
	}
}

func TestCreateWithProfile_PatientCommitsBothRows(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("jane@example.com", "$2a$10$hash", "patient", true, false, "Jane Doe", "", nil, "", "en").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO patients (user_id) VALUES (?)")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	id, err := repo.CreateWithProfile(context.Background(), janeUser(), model.PatientProfile{})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithProfile_DoctorRow(t *testing.T) {
	repo, mock := newMock(t)
	u := janeUser()
	u.Role = model.RoleDoctor
	u.DateOfBirth = "1980-02-03"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("jane@example.com", sqlmock.AnyArg(), "doctor", true, false, "Jane Doe", "", "1980-02-03", "", "en").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO doctors (user_id, specialization, license_number) VALUES (?,?,?)")).
		WithArgs(uint64(9), "cardiology", "LIC-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	id, err := repo.CreateWithProfile(context.Background(), u,
		model.DoctorProfile{Specialization: "cardiology", LicenseNumber: "LIC-1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithProfile_NoProfileForDonor(t *testing.T) {
	repo, mock := newMock(t)
	u := janeUser()
	u.Role = model.RoleDonor

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	id, err := repo.CreateWithProfile(context.Background(), u, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithProfile_ProfileFailureRollsBack(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO patients")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.CreateWithProfile(context.Background(), janeUser(), model.PatientProfile{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithProfile_DuplicateEmail(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'jane@example.com' for key 'users.email'"})
	mock.ExpectRollback()

	_, err := repo.CreateWithProfile(context.Background(), janeUser(), model.PatientProfile{})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithProfile_CommitFailure(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO patients")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection lost"))

	_, err := repo.CreateWithProfile(context.Background(), janeUser(), model.PatientProfile{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithProfile_MismatchedProfile(t *testing.T) {
	repo, mock := newMock(t)

	_, err := repo.CreateWithProfile(context.Background(), janeUser(), model.NGOProfile{OrganizationName: "x"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailExists(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE email=?")).
		WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE email=?")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.EmailExists(context.Background(), "JANE@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.EmailExists(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	dob := time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(7), "jane@example.com", "$2a$10$hash", "patient", true, false,
				"Jane Doe", "555-0100", dob, "female", "en", now, now))

	u, err := repo.GetByEmail(context.Background(), "Jane@Example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), u.ID)
	assert.Equal(t, model.RolePatient, u.Role)
	assert.Equal(t, "1990-01-15", u.DateOfBirth)
	assert.Equal(t, "555-0100", u.PhoneNumber)
	assert.True(t, u.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_FiltersByRole(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role=? ORDER BY id LIMIT ? OFFSET ?")).
		WithArgs("doctor", 10, 0).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(1), "a@example.com", "h", "doctor", true, true, "A", "", nil, "", "en", now, now).
			AddRow(int64(2), "b@example.com", "h", "doctor", false, false, "B", "", nil, "", "en", now, now))

	users, err := repo.List(context.Background(), model.RoleDoctor, 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "", users[0].DateOfBirth)
	assert.False(t, users[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActiveAndUpdateProfile(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active=?")).
		WithArgs(false, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET full_name=?")).
		WithArgs("Jane D", "555", "1990-01-15", "female", "fr", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetActive(context.Background(), 7, false))
	require.NoError(t, repo.UpdateProfile(context.Background(), model.User{
		ID: 7, FullName: "Jane D", PhoneNumber: "555", DateOfBirth: "1990-01-15", Gender: "female", PreferredLanguage: "fr",
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id=?")).
		WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), 7))
	assert.ErrorIs(t, repo.Delete(context.Background(), 8), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
