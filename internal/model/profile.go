package model

// RoleProfile is the role-specific row written next to a users row at
// registration.  Exactly one implementation exists per role that owns an
// extra table; donor, pharmacy and admin have none.
type RoleProfile interface {
    // Role returns the role this profile belongs to.
    Role() Role
    // Table returns the table the profile row lives in.
    Table() string
}

// PatientProfile maps to the `patients` table.  It has no required columns.
type PatientProfile struct{}

func (PatientProfile) Role() Role     { return RolePatient }
func (PatientProfile) Table() string { return "patients" }

// DoctorProfile maps to the `doctors` table.
type DoctorProfile struct {
    Specialization string // doctors.specialization (required)
    LicenseNumber  string // doctors.license_number
}

func (DoctorProfile) Role() Role     { return RoleDoctor }
func (DoctorProfile) Table() string { return "doctors" }

// NGOProfile maps to the `ngos` table.
type NGOProfile struct {
    OrganizationName string // ngos.organization_name (required)
}

func (NGOProfile) Role() Role     { return RoleNGO }
func (NGOProfile) Table() string { return "ngos" }
