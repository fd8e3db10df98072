package session

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Validate checks the password-grant payload before it goes on the wire.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&c.Password, validation.Required, validation.Length(8, 128)),
	)
}

// Validate checks the signup payload before it goes on the wire.
func (s SignupData) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&s.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&s.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&s.LastName, validation.Required, validation.Length(1, 200)),
	)
}
