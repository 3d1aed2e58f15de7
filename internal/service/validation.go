package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"

	"github.com/iliyamo/healthcare-coordination/internal/model"
	"github.com/iliyamo/healthcare-coordination/internal/repository"
)

const (
	minPasswordLen = 6
	// bcrypt rejects longer input; the limit is in bytes, not characters
	maxPasswordBytes = 72
	dateLayout      = "2006-01-02"
	defaultLanguage = "en"
	// numbers written without a country code are read as this region
	defaultPhoneRegion = "US"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterInput is the registration request.  Role-specific fields are only
// read for the role that owns them.
type RegisterInput struct {
	FullName          string `json:"full_name"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	Role              string `json:"role"`
	PhoneNumber       string `json:"phone_number"`
	DateOfBirth       string `json:"date_of_birth"`
	Gender            string `json:"gender"`
	PreferredLanguage string `json:"preferred_language"`
	Specialization    string `json:"specialization"`
	LicenseNumber     string `json:"license_number"`
	OrganizationName  string `json:"organization_name"`
}

// normalize trims every field except the password and lower-cases email and role.
func (in RegisterInput) normalize() RegisterInput {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = repository.NormalizeEmail(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.Gender = strings.TrimSpace(in.Gender)
	in.PreferredLanguage = strings.TrimSpace(in.PreferredLanguage)
	if in.PreferredLanguage == "" {
		in.PreferredLanguage = defaultLanguage
	}
	in.Specialization = strings.TrimSpace(in.Specialization)
	in.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
	in.OrganizationName = strings.TrimSpace(in.OrganizationName)
	return in
}

// roleVariant builds the role-specific profile for a registration and
// reports the role-only field errors.  A nil profile means the role has no
// extra table.
type roleVariant func(in RegisterInput) (model.RoleProfile, validation.Errors)

// roleVariants has one entry per model.Roles value.
var roleVariants = map[model.Role]roleVariant{
	model.RolePatient: func(RegisterInput) (model.RoleProfile, validation.Errors) {
		return model.PatientProfile{}, nil
	},
	model.RoleDoctor: func(in RegisterInput) (model.RoleProfile, validation.Errors) {
		return model.DoctorProfile{Specialization: in.Specialization, LicenseNumber: in.LicenseNumber},
			validation.Errors{
				"specialization": validation.Validate(in.Specialization,
					validation.Required.Error("is required for doctors"), validation.RuneLength(1, 255)),
				"license_number": validation.Validate(in.LicenseNumber, validation.RuneLength(0, 64)),
			}
	},
	model.RoleNGO: func(in RegisterInput) (model.RoleProfile, validation.Errors) {
		return model.NGOProfile{OrganizationName: in.OrganizationName},
			validation.Errors{
				"organization_name": validation.Validate(in.OrganizationName,
					validation.Required.Error("is required for NGOs"), validation.RuneLength(1, 255)),
			}
	},
	model.RoleDonor:    noProfile,
	model.RolePharmacy: noProfile,
	model.RoleAdmin:    noProfile,
}

func noProfile(RegisterInput) (model.RoleProfile, validation.Errors) { return nil, nil }

// validate checks the normalized input and returns the role profile to
// insert.  All field errors are reported together.
func (in RegisterInput) validate() (model.RoleProfile, error) {
	errs := validation.Errors{}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.FullName, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&in.Email, validation.Required, validation.RuneLength(3, 255),
			validation.Match(emailPattern).Error("must be a valid email address")),
		validation.Field(&in.Password, validation.Required,
			validation.RuneLength(minPasswordLen, 0).Error("must be at least 6 characters"), passwordBytesRule),
		validation.Field(&in.Role, validation.Required, validation.In(roleNames()...).Error("must be one of "+roleList())),
		validation.Field(&in.PhoneNumber, validation.RuneLength(0, 32), phoneRule),
		validation.Field(&in.DateOfBirth, validation.Date(dateLayout).Error("must be a date formatted as YYYY-MM-DD")),
		validation.Field(&in.Gender, validation.RuneLength(0, 16)),
		validation.Field(&in.PreferredLanguage, validation.RuneLength(2, 10)),
	)
	if err != nil {
		fieldErrs, ok := err.(validation.Errors)
		if !ok {
			return nil, err
		}
		for k, v := range fieldErrs {
			errs[k] = v
		}
	}

	var profile model.RoleProfile
	if variant, ok := roleVariants[model.Role(in.Role)]; ok {
		p, variantErrs := variant(in)
		profile = p
		for k, v := range variantErrs {
			if v != nil {
				errs[k] = v
			}
		}
	}

	if err := errs.Filter(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	return profile, nil
}

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	FullName          *string `json:"full_name"`
	PhoneNumber       *string `json:"phone_number"`
	DateOfBirth       *string `json:"date_of_birth"`
	Gender            *string `json:"gender"`
	PreferredLanguage *string `json:"preferred_language"`
}

// normalize trims every set field so validation sees what will be stored.
func (in ProfileInput) normalize() ProfileInput {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	return ProfileInput{
		FullName:          trim(in.FullName),
		PhoneNumber:       trim(in.PhoneNumber),
		DateOfBirth:       trim(in.DateOfBirth),
		Gender:            trim(in.Gender),
		PreferredLanguage: trim(in.PreferredLanguage),
	}
}

// validate expects normalized input.
func (in ProfileInput) validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.FullName, validation.NilOrNotEmpty, validation.RuneLength(1, 255)),
		validation.Field(&in.PhoneNumber, validation.RuneLength(0, 32), phoneRule),
		validation.Field(&in.DateOfBirth, validation.Date(dateLayout).Error("must be a date formatted as YYYY-MM-DD")),
		validation.Field(&in.Gender, validation.RuneLength(0, 16)),
		validation.Field(&in.PreferredLanguage, validation.NilOrNotEmpty, validation.RuneLength(2, 10)),
	)
	if err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	return nil
}

// apply copies the set fields of normalized input onto u.
func (in ProfileInput) apply(u *model.User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.FullName, in.FullName)
	set(&u.PhoneNumber, in.PhoneNumber)
	u.PhoneNumber = normalizePhone(u.PhoneNumber)
	set(&u.DateOfBirth, in.DateOfBirth)
	set(&u.Gender, in.Gender)
	set(&u.PreferredLanguage, in.PreferredLanguage)
}

var errInvalidPhone = errors.New("must be a valid phone number")

var passwordBytesRule = validation.By(func(value interface{}) error {
	if s, _ := value.(string); len(s) > maxPasswordBytes {
		return fmt.Errorf("must not exceed %d bytes when encoded as UTF-8", maxPasswordBytes)
	}
	return nil
})

var phoneRule = validation.By(func(value interface{}) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	raw, _ := v.(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	num, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return errInvalidPhone
	}
	return nil
})

// normalizePhone rewrites a valid number in E.164.  Anything else,
// including the empty string, is returned unchanged.
func normalizePhone(raw string) string {
	if raw == "" {
		return raw
	}
	num, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func roleNames() []interface{} {
	out := make([]interface{}, len(model.Roles))
	for i, r := range model.Roles {
		out[i] = string(r)
	}
	return out
}

func roleList() string {
	names := make([]string, len(model.Roles))
	for i, r := range model.Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
