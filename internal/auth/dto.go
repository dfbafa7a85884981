package auth

import (
	"strings"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d *LoginDTO) Validate() error {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))

	v := validation.NewValidator()
	v.Field("email", d.Email).Required().MaxLength(255)
	v.Field("password", d.Password).Required().MaxLength(72)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func (d RefreshTokenDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("refresh_token", d.RefreshToken).Required()
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
