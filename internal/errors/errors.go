package errors

import (
	"errors"
	"fmt"
)

// Common error kinds for the add-in core
var (
	// Token errors
	ErrNoValidToken        = errors.New("no valid token")
	ErrNoAccount           = errors.New("no signed-in account")
	ErrInteractionRequired = errors.New("interaction required")
	ErrInteractiveDisabled = errors.New("interactive sign-in not allowed for this call")
	ErrInvalidToken        = errors.New("invalid token")

	// Dialog errors
	ErrNonInteractiveContext = errors.New("interactive sign-in cannot run in a non-interactive context")
	ErrDialogClosedEarly     = errors.New("dialog was closed before sign-in finished")
	ErrDialogUnsupported     = errors.New("dialog API not supported by this host")
	ErrDomainNotTrusted      = errors.New("dialog domain is not trusted")
	ErrHTTPSRequired         = errors.New("dialog URL must use HTTPS")
	ErrDialogBlocked         = errors.New("dialog blocked by host")
	ErrDialogAlreadyOpen     = errors.New("a dialog is already open")
	ErrAuthDialog            = errors.New("sign-in dialog reported an error")

	// Host errors
	ErrHostCall              = errors.New("host call failed")
	ErrPropertiesUnavailable = errors.New("custom properties unavailable")
	ErrNoItemID              = errors.New("item has no stable identifier")

	// Request errors
	ErrNoOptionSelected = errors.New("no option selected")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
