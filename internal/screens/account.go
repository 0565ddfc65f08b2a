package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/validation"
)

type LoginInput struct {
	Email    string `json:"email" validate:"required,loose_email"`
	Password string `json:"password" validate:"required"`
}

type RegisterInput struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,loose_email"`
	Password string `json:"password" validate:"required"`
}

type ResetRequestInput struct {
	Email string `json:"email" validate:"required,loose_email"`
}

type ResetConfirmInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AccountData is rendered by the login, register and reset password screens.
type AccountData struct {
	User      *entities.UserProfile `json:"user,omitempty"`
	ResetSent bool                  `json:"reset_sent,omitempty"`
	ResetDone bool                  `json:"reset_done,omitempty"`
}

// Account backs the screens of the auth flow.
type Account struct {
	*view[AccountData]

	deps Deps
}

func NewAccount(deps Deps) *Account {
	a := &Account{view: newView(AccountData{}), deps: deps.withDefaults()}
	a.update(func(s *State[AccountData]) { s.Phase = PhaseReady })
	return a
}

// Login signs in with email and password.
func (a *Account) Login(ctx context.Context, in LoginInput) (*entities.User, error) {
	if err := a.check(in, in.Password); err != nil {
		return nil, err
	}
	user, err := a.deps.Accounts.Authenticate(ctx, strings.TrimSpace(in.Email), in.Password)
	return a.signedIn(user, err)
}

// Register creates an account and signs in.
func (a *Account) Register(ctx context.Context, in RegisterInput) (*entities.User, error) {
	if err := a.check(in, in.Password); err != nil {
		return nil, err
	}
	user, err := a.deps.Accounts.Register(ctx, strings.TrimSpace(in.Name), strings.TrimSpace(in.Email), in.Password)
	return a.signedIn(user, err)
}

// RequestReset sends a password reset email. Unknown emails succeed too.
func (a *Account) RequestReset(ctx context.Context, in ResetRequestInput) error {
	if err := a.check(in, ""); err != nil {
		return err
	}
	if err := a.deps.Accounts.RequestPasswordReset(ctx, strings.TrimSpace(in.Email)); err != nil {
		a.alert(alertFor(err))
		return err
	}
	a.ready(AccountData{ResetSent: true})
	return nil
}

// ConfirmReset sets a new password using the emailed token.
func (a *Account) ConfirmReset(ctx context.Context, in ResetConfirmInput) error {
	if err := a.check(in, in.Password); err != nil {
		return err
	}
	if err := a.deps.Accounts.ConfirmPasswordReset(ctx, in.Token, in.Password); err != nil {
		a.alert(alertFor(err))
		return err
	}
	a.ready(AccountData{ResetDone: true})
	return nil
}

// check validates the input struct plus the password length, and shows the
// combined problems as one alert.
func (a *Account) check(in any, password string) error {
	fields := map[string]string{}
	if err := a.deps.Validator.Struct(in); err != nil {
		verr, ok := err.(*validation.Error)
		if !ok {
			return err
		}
		for k, v := range verr.Fields {
			fields[k] = v
		}
	}
	if password != "" {
		tag := fmt.Sprintf("min=%d", a.deps.MinPasswordLength)
		if err := a.deps.Validator.Var("password", password, tag); err != nil {
			if verr, ok := err.(*validation.Error); ok {
				for k, v := range verr.Fields {
					fields[k] = v
				}
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}

	err := &validation.Error{Fields: fields}
	a.alert(alertFor(err))
	return err
}

func (a *Account) signedIn(user *entities.User, err error) (*entities.User, error) {
	if err != nil {
		a.alert(alertFor(err))
		return nil, err
	}
	a.ready(AccountData{User: user.Profile()})
	return user, nil
}
