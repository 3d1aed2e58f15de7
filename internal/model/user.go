package model

import "time"

// Role is the fixed category a user belongs to.  It is stored verbatim in
// users.role and embedded in every issued token.
type Role string

const (
    RolePatient  Role = "patient"
    RoleDoctor   Role = "doctor"
    RoleDonor    Role = "donor"
    RoleNGO      Role = "ngo"
    RolePharmacy Role = "pharmacy"
    RoleAdmin    Role = "admin"
)

// Roles lists every valid role.
var Roles = []Role{RolePatient, RoleDoctor, RoleDonor, RoleNGO, RolePharmacy, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
    for _, known := range Roles {
        if r == known {
            return true
        }
    }
    return false
}

// User represents a row of the `users` table.
//
// Fields:
//  ID                – primary key identifier of the user.
//  Email             – unique email address, stored lower-cased.
//  PasswordHash      – bcrypt hashed password.  Never serialized.
//  Role              – one of Roles; immutable after registration.
//  IsActive          – inactive accounts cannot log in or refresh.
//  IsVerified        – set by out-of-band verification, false at registration.
//  DateOfBirth       – YYYY-MM-DD or empty.
type User struct {
    ID                uint64    // users.id
    Email             string    // users.email
    PasswordHash      string    // users.password_hash
    Role              Role      // users.role
    IsActive          bool      // users.is_active
    IsVerified        bool      // users.is_verified
    FullName          string    // users.full_name
    PhoneNumber       string    // users.phone_number
    DateOfBirth       string    // users.date_of_birth
    Gender            string    // users.gender
    PreferredLanguage string    // users.preferred_language
    CreatedAt         time.Time // users.created_at
    UpdatedAt         time.Time // users.updated_at
}

// PublicUser is the JSON view of a user returned to clients.  It never
// carries the password hash.
type PublicUser struct {
    ID                uint64    `json:"id"`
    Email             string    `json:"email"`
    Role              Role      `json:"role"`
    FullName          string    `json:"full_name"`
    PhoneNumber       string    `json:"phone_number,omitempty"`
    DateOfBirth       string    `json:"date_of_birth,omitempty"`
    Gender            string    `json:"gender,omitempty"`
    PreferredLanguage string    `json:"preferred_language,omitempty"`
    IsActive          bool      `json:"is_active"`
    IsVerified        bool      `json:"is_verified"`
    CreatedAt         time.Time `json:"created_at"`
}

// Public strips private fields from u.
func (u User) Public() PublicUser {
    return PublicUser{
        ID:                u.ID,
        Email:             u.Email,
        Role:              u.Role,
        FullName:          u.FullName,
        PhoneNumber:       u.PhoneNumber,
        DateOfBirth:       u.DateOfBirth,
        Gender:            u.Gender,
        PreferredLanguage: u.PreferredLanguage,
        IsActive:          u.IsActive,
        IsVerified:        u.IsVerified,
        CreatedAt:         u.CreatedAt,
    }
}
