package screens

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/validation"
)

const genericMessage = "Something went wrong. Please try again."

// knownAlerts maps backend sentinels to the alerts shown for them.
var knownAlerts = []struct {
	err   error
	alert Alert
}{
	{books.ErrNotFound, Alert{Title: "Book not found", Message: "This book no longer exists.", NavigateBack: true}},
	{auth.ErrUserNotFound, Alert{Title: "User not found", Message: "No account exists for this email."}},
	{auth.ErrInvalidPassword, Alert{Title: "Incorrect password", Message: "The password you entered is incorrect."}},
	{auth.ErrAccountLocked, Alert{Title: "Account locked", Message: "Too many failed attempts. Try again later."}},
	{auth.ErrUserExists, Alert{Title: "Email already registered", Message: "An account already exists for this email."}},
	{auth.ErrResetInvalid, Alert{Title: "Invalid link", Message: "This reset link is invalid or has expired."}},
	{auth.ErrResetThrottled, Alert{Title: "Too many requests", Message: "Too many reset emails were requested. Try again later."}},
	{ErrNoSession, Alert{Title: "Signed out", Message: "Sign in to continue."}},
}

// alertFor classifies err into the alert a screen shows.
func alertFor(err error) *Alert {
	if err == nil {
		return nil
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return &Alert{Title: "Missing information", Message: validationMessage(verr)}
	}
	if errors.Is(err, auth.ErrPasswordTooShort) || errors.Is(err, auth.ErrPasswordTooLong) ||
		errors.Is(err, auth.ErrPasswordRequired) {
		return &Alert{Title: "Invalid password", Message: err.Error()}
	}
	for _, k := range knownAlerts {
		if errors.Is(err, k.err) {
			a := k.alert
			return &a
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Alert{Title: "Error", Message: "The request timed out. Please try again."}
	}
	return &Alert{Title: "Error", Message: genericMessage}
}

func validationMessage(verr *validation.Error) string {
	names := make([]string, 0, len(verr.Fields))
	for name := range verr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		label := strings.ReplaceAll(name, "_", " ")
		parts = append(parts, strings.ToUpper(label[:1])+label[1:]+" "+verr.Fields[name])
	}
	return strings.Join(parts, ". ") + "."
}
