package models

import (
	"strings"
	"time"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/email"
	"lifeflow/pkg/validation"
)

type RegisterRequest struct {
	FirstName       string `json:"firstName" validate:"min=2" msg:"First name must be at least 2 characters"`
	LastName        string `json:"lastName" validate:"min=2" msg:"Last name must be at least 2 characters"`
	Email           string `json:"email" validate:"required,email" msg:"Valid email is required"`
	Password        string `json:"password" validate:"min=6" msg:"Password must be at least 6 characters"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,min=7,max=20" msg:"Valid phone number is required"`
	BloodType       string `json:"bloodType,omitempty" validate:"omitempty,bloodtype" msg:"Valid blood type is required"`
}

func (r *RegisterRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = email.Normalize(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.BloodType = strings.ToUpper(strings.TrimSpace(r.BloodType))
}

func (r *RegisterRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.ConfirmPassword != r.Password {
		return dErrors.New(dErrors.CodeValidation, "Passwords do not match")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" msg:"Valid email is required"`
	Password string `json:"password" validate:"required" msg:"Password is required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
}

func (r *LoginRequest) Validate() error {
	return validation.Struct(r)
}

// ProfilePatch carries the self-service editable fields. Nil fields are
// left unchanged.
type ProfilePatch struct {
	FirstName        *string           `json:"firstName,omitempty" validate:"omitnil,min=2" msg:"First name must be at least 2 characters"`
	LastName         *string           `json:"lastName,omitempty" validate:"omitnil,min=2" msg:"Last name must be at least 2 characters"`
	Phone            *string           `json:"phone,omitempty" validate:"omitnil,min=7,max=20" msg:"Valid phone number is required"`
	BloodType        *string           `json:"bloodType,omitempty" validate:"omitnil,bloodtype" msg:"Valid blood type is required"`
	DateOfBirth      *id.Date          `json:"dateOfBirth,omitempty"`
	Address          *Address          `json:"address,omitempty"`
	EmergencyContact *EmergencyContact `json:"emergencyContact,omitempty"`
	MedicalHistory   *MedicalHistory   `json:"medicalHistory,omitempty"`
	Preferences      *Preferences      `json:"preferences,omitempty"`
}

func (p *ProfilePatch) Normalize() {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(p.FirstName)
	trim(p.LastName)
	trim(p.Phone)
	if p.BloodType != nil {
		*p.BloodType = strings.ToUpper(strings.TrimSpace(*p.BloodType))
	}
}

// TouchesDonor reports whether the patch changes a field mirrored on the
// linked donor record.
func (p *ProfilePatch) TouchesDonor() bool {
	return p.FirstName != nil || p.LastName != nil || p.Phone != nil || p.BloodType != nil
}

func (p *ProfilePatch) Validate() error {
	return validation.Struct(p)
}

func (p *ProfilePatch) ApplyTo(u *User, now time.Time) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.BloodType != nil {
		u.BloodType = id.BloodType(*p.BloodType)
	}
	if p.DateOfBirth != nil {
		u.DateOfBirth = p.DateOfBirth.Ptr()
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.EmergencyContact != nil {
		u.EmergencyContact = *p.EmergencyContact
	}
	if p.MedicalHistory != nil {
		u.MedicalHistory = *p.MedicalHistory
	}
	if p.Preferences != nil {
		u.Preferences = *p.Preferences
	}
	u.UpdatedAt = now
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required" msg:"Current password is required"`
	NewPassword     string `json:"newPassword" validate:"min=6" msg:"New password must be at least 6 characters"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r *ChangePasswordRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.ConfirmPassword != "" && r.ConfirmPassword != r.NewPassword {
		return dErrors.New(dErrors.CodeValidation, "Passwords do not match")
	}
	return nil
}

// AdminUserPatch is the admin-editable field set.
type AdminUserPatch struct {
	ProfilePatch
	Email    *string `json:"email,omitempty" validate:"omitnil,email" msg:"Valid email is required"`
	Role     *string `json:"role,omitempty" validate:"omitnil,oneof=admin staff donor" msg:"Valid role is required"`
	IsActive *bool   `json:"isActive,omitempty"`
}

func (p *AdminUserPatch) Normalize() {
	p.ProfilePatch.Normalize()
	if p.Email != nil {
		*p.Email = email.Normalize(*p.Email)
	}
}

func (p *AdminUserPatch) Validate() error {
	return validation.Struct(p)
}

func (p *AdminUserPatch) ApplyTo(u *User, now time.Time) {
	p.ProfilePatch.ApplyTo(u, now)
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = Role(*p.Role)
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"oneof=admin staff donor" msg:"Valid role is required"`
}

func (r *UpdateRoleRequest) Validate() error {
	return validation.Struct(r)
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role   Role
	Search string
}
