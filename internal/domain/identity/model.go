package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidAccount  = errors.New("invalid account")
)

// Account maps to the account table. Doctors and patients are accounts with
// the respective role.
type Account struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Role        string    `db:"role" json:"role" validate:"required,oneof=doctor patient"`
	Email       string    `db:"email" json:"email" validate:"required,email"`
	DisplayName string    `db:"display_name" json:"display_name" validate:"required"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func (a *Account) IsDoctor() bool  { return a.Role == RoleDoctor }
func (a *Account) IsPatient() bool { return a.Role == RolePatient }

var validate = validator.New()

// Validate normalises the email and display name, then checks the struct tags.
func (a *Account) Validate() error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.DisplayName = strings.TrimSpace(a.DisplayName)
	err := validate.Struct(a)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "oneof":
		return fmt.Errorf("%w: role must be doctor or patient, got %q", ErrInvalidAccount, a.Role)
	case "email":
		return fmt.Errorf("%w: invalid email %q", ErrInvalidAccount, a.Email)
	default:
		return fmt.Errorf("%w: %s is required", ErrInvalidAccount, strings.ToLower(fe.Field()))
	}
}
