package dialog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Parent is the dialog page's view of its opener.
type Parent interface {
	MessageParent(message string) error
	// Messages delivers messages sent by the opener with MessageChild.
	Messages() <-chan string
}

// Child runs the dialog page's half of the protocol.
type Child struct {
	parent     Parent
	sink       TokenWriter
	ackTimeout time.Duration
}

func NewChild(parent Parent, sink TokenWriter, ackTimeout time.Duration) *Child {
	if ackTimeout <= 0 {
		ackTimeout = 10 * time.Second
	}
	return &Child{parent: parent, sink: sink, ackTimeout: ackTimeout}
}

// Complete hands the signed-in token to the opener: it writes the shared
// store, posts aad-token and waits for ack-close. It reports whether the
// opener acknowledged; without an ack the page should close itself.
func (c *Child) Complete(ctx context.Context, tok string) (bool, error) {
	if err := ValidateTokenFormat(tok); err != nil {
		return false, fmt.Errorf("dialog.Child.Complete: %w", err)
	}
	if err := c.sink.Set(ctx, tok); err != nil {
		log.Warn().Err(err).Msg("dialog child: token not written to shared store")
	}
	if err := c.parent.MessageParent(Message{Type: TypeToken, Token: tok}.Encode()); err != nil {
		return false, fmt.Errorf("dialog.Child.Complete: %w", err)
	}

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			log.Warn().Dur("timeout", c.ackTimeout).Msg("dialog child: no ack-close from opener")
			return false, nil
		case raw := <-c.parent.Messages():
			msg, err := DecodeMessage(raw)
			if err != nil {
				continue
			}
			if msg.Type == TypeAckClose {
				return true, nil
			}
		}
	}
}

// Fail reports a sign-in failure to the opener.
func (c *Child) Fail(signInErr error) error {
	msg := Message{Type: TypeError, Error: signInErr.Error()}
	if err := c.parent.MessageParent(msg.Encode()); err != nil {
		return fmt.Errorf("dialog.Child.Fail: %w", err)
	}
	return nil
}
