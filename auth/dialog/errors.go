package dialog

import (
	"fmt"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/mailbox"
)

// hostError maps a failed DisplayDialogAsync to one of the dialog error kinds.
// The host error stays in the chain.
func hostError(err error) error {
	var he *mailbox.HostError
	if !interrors.As(err, &he) {
		return err
	}
	switch he.Code {
	case mailbox.CodeDomainNotTrusted:
		return fmt.Errorf("%w: %w", interrors.ErrDomainNotTrusted, err)
	case mailbox.CodeHTTPSRequired:
		return fmt.Errorf("%w: %w", interrors.ErrHTTPSRequired, err)
	case mailbox.CodeDialogAlreadyOpen:
		return fmt.Errorf("%w: %w", interrors.ErrDialogAlreadyOpen, err)
	case mailbox.CodeDialogIgnored, mailbox.CodeDialogPopupBlocked:
		return fmt.Errorf("%w: %w", interrors.ErrDialogBlocked, err)
	default:
		return fmt.Errorf("%w: %w", interrors.ErrAuthDialog, err)
	}
}

func hostCode(err error) int {
	var he *mailbox.HostError
	if interrors.As(err, &he) {
		return he.Code
	}
	return 0
}

// eventError maps a dialog event received before any message.
func eventError(code int) error {
	switch code {
	case mailbox.CodeDialogClosed:
		return interrors.ErrDialogClosedEarly
	case mailbox.CodeDialogPageNotFound, mailbox.CodeDialogHTTPNavigated:
		return fmt.Errorf("%w: dialog event %d", interrors.ErrAuthDialog, code)
	default:
		return fmt.Errorf("%w: dialog event %d", interrors.ErrDialogClosedEarly, code)
	}
}

// UserMessage returns actionable text for an interactive sign-in failure, or
// "" when err is not one of the dialog kinds.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case interrors.Is(err, interrors.ErrNonInteractiveContext):
		return "Please open ML-Redact and sign in before sending."
	case interrors.Is(err, interrors.ErrDialogUnsupported):
		return "This version of Outlook cannot open the sign-in window. Please update Outlook or use Outlook on the web."
	case interrors.Is(err, interrors.ErrDomainNotTrusted):
		return "The sign-in page is not on a trusted domain. Ask your administrator to add it to the add-in's AppDomains."
	case interrors.Is(err, interrors.ErrHTTPSRequired):
		return "The sign-in page must be served over HTTPS."
	case interrors.Is(err, interrors.ErrDialogBlocked):
		return "The sign-in window was blocked. Allow pop-ups for Outlook and try again."
	case interrors.Is(err, interrors.ErrDialogAlreadyOpen):
		return "A sign-in window is already open. Finish signing in there."
	case interrors.Is(err, interrors.ErrDialogClosedEarly):
		return "Dialog was closed before sign-in finished."
	case interrors.Is(err, interrors.ErrAuthDialog):
		return "Sign-in failed. Please try again."
	default:
		return ""
	}
}
