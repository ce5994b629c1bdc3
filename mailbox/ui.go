package mailbox

import (
	"context"
	"sync"
)

// Host dialog error and event codes.
const (
	CodeDialogPageNotFound  = 12002
	CodeDialogHTTPNavigated = 12003
	CodeDomainNotTrusted    = 12004
	CodeHTTPSRequired       = 12005
	CodeDialogClosed        = 12006
	CodeDialogAlreadyOpen   = 12007
	CodeDialogIgnored       = 12009
	CodeDialogPopupBlocked  = 12011
)

type DialogOptions struct {
	Width          int
	Height         int
	DisplayInFrame bool
}

// RawUI is the host's dialog API.
type RawUI interface {
	DisplayDialogAsync(url string, opts DialogOptions, cb func(AsyncResult[RawDialog]))
}

// RawDialog is an open host dialog seen from the opener.
type RawDialog interface {
	AddMessageHandler(handler func(message string))
	AddEventHandler(handler func(code int))
	MessageChild(message string) error
	Close() error
}

// Dialog delivers a RawDialog's messages and events on channels. Both
// channels are buffered and never closed; Close stops delivery.
type Dialog struct {
	raw      RawDialog
	messages chan string
	events   chan int

	once   sync.Once
	closed chan struct{}
}

func (d *Dialog) Messages() <-chan string {
	return d.messages
}

func (d *Dialog) Events() <-chan int {
	return d.events
}

func (d *Dialog) MessageChild(message string) error {
	return d.raw.MessageChild(message)
}

func (d *Dialog) Close() error {
	var err error
	d.once.Do(func() {
		close(d.closed)
		err = d.raw.Close()
	})
	return err
}

// UI wraps a RawUI. A nil RawUI means the host has no dialog support.
type UI struct {
	raw RawUI
}

func NewUI(raw RawUI) *UI {
	return &UI{raw: raw}
}

func (u *UI) Supported() bool {
	return u != nil && u.raw != nil
}

func (u *UI) OpenDialog(ctx context.Context, url string, opts DialogOptions) (*Dialog, error) {
	raw, err := Await(ctx, func(cb func(AsyncResult[RawDialog])) {
		u.raw.DisplayDialogAsync(url, opts, cb)
	})
	if err != nil {
		return nil, err
	}

	d := &Dialog{
		raw:      raw,
		messages: make(chan string, 8),
		events:   make(chan int, 8),
		closed:   make(chan struct{}),
	}
	raw.AddMessageHandler(func(message string) {
		select {
		case d.messages <- message:
		case <-d.closed:
		}
	})
	raw.AddEventHandler(func(code int) {
		select {
		case d.events <- code:
		case <-d.closed:
		}
	})
	return d, nil
}
