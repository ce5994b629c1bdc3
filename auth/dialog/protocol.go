// Package dialog implements the interactive sign-in bridge: the opener side
// shows the host dialog and waits for the token, the child side (the dialog
// page) hands it back over the parent-messaging channel.
package dialog

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message types exchanged between the dialog page and its opener.
const (
	TypeToken    = "aad-token"
	TypeError    = "aad-error"
	TypeAckClose = "ack-close"
)

type Message struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

func (m Message) Encode() string {
	b, _ := json.Marshal(m)
	return string(b)
}

func DecodeMessage(raw string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, fmt.Errorf("dialog.DecodeMessage: %w", err)
	}
	return m, nil
}

type nonInteractiveKey struct{}

// NonInteractive marks ctx as one that cannot show UI, such as the send
// event handler. Opening a dialog from it fails at once.
func NonInteractive(ctx context.Context) context.Context {
	return context.WithValue(ctx, nonInteractiveKey{}, true)
}

func IsNonInteractive(ctx context.Context) bool {
	v, _ := ctx.Value(nonInteractiveKey{}).(bool)
	return v
}
