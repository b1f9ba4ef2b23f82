package users

import (
	"strings"

	"manageease/internal/apperr"
	"manageease/internal/validate"
)

// maxPasswordBytes is bcrypt's input limit. The max=72 tags count runes.
const maxPasswordBytes = 72

func checkPasswordBytes(field, password string) error {
	if len(password) > maxPasswordBytes {
		return apperr.Validation(map[string]string{field: "password must be at most 72 bytes"})
	}
	return nil
}

// RegisterInput carries a sign-up request.
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

func (in *RegisterInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

// LoginInput carries a sign-in request.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (in *LoginInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

// ProfileInput is a partial profile update.
type ProfileInput struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

func (in *ProfileInput) normalize() {
	trim := func(p *string, lower bool) *string {
		if p == nil {
			return nil
		}
		s := strings.TrimSpace(*p)
		if lower {
			s = strings.ToLower(s)
		}
		return &s
	}
	in.FirstName = trim(in.FirstName, false)
	in.LastName = trim(in.LastName, false)
	in.Email = trim(in.Email, true)
}

func (in ProfileInput) check() error {
	fields := validate.Fields{}
	if in.FirstName != nil {
		fields.Check("firstName", *in.FirstName, "required,max=50")
	}
	if in.LastName != nil {
		fields.Check("lastName", *in.LastName, "required,max=50")
	}
	if in.Email != nil {
		fields.Check("email", *in.Email, "required,email,max=254")
	}
	return fields.Err()
}

// PasswordInput carries a password change.
type PasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}
