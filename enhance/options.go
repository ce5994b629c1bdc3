package enhance

import (
	"fmt"
	"strings"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/redaction"
)

// MaxPrompts is how many custom prompts a request can carry.
const MaxPrompts = 5

// Options are the task-pane selections for one manual run.
type Options struct {
	Proofread bool
	Redact    bool
	Method    redaction.Method
	Prompts   Prompts
}

// Validate reports ErrNoOptionSelected when neither action is chosen.
func (o Options) Validate() error {
	if !o.Proofread && !o.Redact {
		return interrors.ErrNoOptionSelected
	}
	if !o.Method.Valid() {
		return fmt.Errorf("enhance: redaction method %q: %w", o.Method, interrors.ErrInvalidConfig)
	}
	return nil
}

// Actions lists the requested actions in the order the service expects.
func (o Options) Actions() []redaction.Action {
	actions := []redaction.Action{}
	if o.Proofread {
		actions = append(actions, redaction.ActionProofread)
	}
	if o.Redact {
		actions = append(actions, redaction.ActionRedact)
	}
	return actions
}

// RedactionMethod is Blackout unless another method was picked; it is empty
// when redaction was not requested.
func (o Options) RedactionMethod() redaction.Method {
	if !o.Redact {
		return redaction.MethodNone
	}
	if o.Method == redaction.MethodNone {
		return redaction.MethodBlackout
	}
	return o.Method
}

// Prompts are the user's custom instructions, unique and in entry order.
type Prompts []string

// Add appends text unless it is blank, already present or the list is full.
// It reports whether the prompt was added.
func (p *Prompts) Add(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(*p) >= MaxPrompts {
		return false
	}
	for _, existing := range *p {
		if existing == text {
			return false
		}
	}
	*p = append(*p, text)
	return true
}

// Remove drops the prompt at index i.
func (p *Prompts) Remove(i int) {
	if i < 0 || i >= len(*p) {
		return
	}
	*p = append((*p)[:i], (*p)[i+1:]...)
}

// Context joins the prompts the way the service reads userContext.
func (p Prompts) Context() string {
	return strings.Join(p, "\n")
}
