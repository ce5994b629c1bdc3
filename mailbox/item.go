package mailbox

import (
	"context"
	"fmt"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
)

type CoercionType string

const (
	CoercionHTML CoercionType = "html"
	CoercionText CoercionType = "text"
)

type RecipientField string

const (
	FieldTo  RecipientField = "to"
	FieldCc  RecipientField = "cc"
	FieldBcc RecipientField = "bcc"
)

type EventType string

const (
	EventRecipientsChanged EventType = "RecipientsChanged"
	EventSubjectChanged    EventType = "SubjectChanged"
)

type NotificationType string

const (
	InformationalMessage NotificationType = "informationalMessage"
	ErrorMessage         NotificationType = "errorMessage"
)

// Notification is a transient banner on the compose item.
type Notification struct {
	Type       NotificationType
	Message    string
	Icon       string
	Persistent bool
}

// RawItem is the callback-shaped compose item exposed by the host.
type RawItem interface {
	GetSubjectAsync(cb func(AsyncResult[string]))
	SetSubjectAsync(subject string, cb func(AsyncResult[struct{}]))
	GetBodyAsync(coercion CoercionType, cb func(AsyncResult[string]))
	SetBodyAsync(body string, coercion CoercionType, cb func(AsyncResult[struct{}]))
	// GetRecipientsAsync yields whatever the host holds: strings or maps with
	// emailAddress/address style fields.
	GetRecipientsAsync(field RecipientField, cb func(AsyncResult[[]any]))
	LoadCustomPropertiesAsync(cb func(AsyncResult[RawCustomProperties]))
	ReplaceNotificationAsync(key string, n Notification, cb func(AsyncResult[struct{}]))
	AddHandlerAsync(event EventType, handler func(), cb func(AsyncResult[struct{}]))
	GetItemIDAsync(cb func(AsyncResult[string]))
	MakeEWSRequestAsync(request string, cb func(AsyncResult[string]))
	GetCallbackTokenAsync(cb func(AsyncResult[string]))
	RestURL() string
	UserEmailAddress() string
}

// RawCustomProperties is the host's per-item property bag.
type RawCustomProperties interface {
	Get(name string) any
	Set(name string, value any)
	Remove(name string)
	SaveAsync(cb func(AsyncResult[struct{}]))
}

// Item is the suspend-style view of a compose item used by the core.
type Item interface {
	Subject(ctx context.Context) (string, error)
	SetSubject(ctx context.Context, subject string) error
	Body(ctx context.Context, coercion CoercionType) (string, error)
	SetBody(ctx context.Context, body string, coercion CoercionType) error
	Recipients(ctx context.Context, field RecipientField) ([]any, error)
	Properties(ctx context.Context) (*Properties, error)
	Notify(ctx context.Context, key string, n Notification) error
	OnChange(ctx context.Context, event EventType, handler func()) error
	ItemID(ctx context.Context) (string, error)
	EWSRequest(ctx context.Context, request string) (string, error)
	CallbackToken(ctx context.Context) (string, error)
	RestURL() string
	Sender() string
}

var _ Item = (*Adapter)(nil)

// Adapter wraps a RawItem.
type Adapter struct {
	raw RawItem
}

func NewAdapter(raw RawItem) *Adapter {
	return &Adapter{raw: raw}
}

func (a *Adapter) Subject(ctx context.Context) (string, error) {
	return Await(ctx, a.raw.GetSubjectAsync)
}

func (a *Adapter) SetSubject(ctx context.Context, subject string) error {
	_, err := Await(ctx, func(cb func(AsyncResult[struct{}])) {
		a.raw.SetSubjectAsync(subject, cb)
	})
	return err
}

func (a *Adapter) Body(ctx context.Context, coercion CoercionType) (string, error) {
	return Await(ctx, func(cb func(AsyncResult[string])) {
		a.raw.GetBodyAsync(coercion, cb)
	})
}

func (a *Adapter) SetBody(ctx context.Context, body string, coercion CoercionType) error {
	_, err := Await(ctx, func(cb func(AsyncResult[struct{}])) {
		a.raw.SetBodyAsync(body, coercion, cb)
	})
	return err
}

func (a *Adapter) Recipients(ctx context.Context, field RecipientField) ([]any, error) {
	return Await(ctx, func(cb func(AsyncResult[[]any])) {
		a.raw.GetRecipientsAsync(field, cb)
	})
}

func (a *Adapter) Properties(ctx context.Context) (*Properties, error) {
	raw, err := Await(ctx, a.raw.LoadCustomPropertiesAsync)
	if err != nil {
		return nil, fmt.Errorf("mailbox.Properties: %w: %w", interrors.ErrPropertiesUnavailable, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("mailbox.Properties: %w", interrors.ErrPropertiesUnavailable)
	}
	return &Properties{raw: raw}, nil
}

func (a *Adapter) Notify(ctx context.Context, key string, n Notification) error {
	_, err := Await(ctx, func(cb func(AsyncResult[struct{}])) {
		a.raw.ReplaceNotificationAsync(key, n, cb)
	})
	return err
}

func (a *Adapter) OnChange(ctx context.Context, event EventType, handler func()) error {
	_, err := Await(ctx, func(cb func(AsyncResult[struct{}])) {
		a.raw.AddHandlerAsync(event, handler, cb)
	})
	return err
}

func (a *Adapter) ItemID(ctx context.Context) (string, error) {
	return Await(ctx, a.raw.GetItemIDAsync)
}

func (a *Adapter) EWSRequest(ctx context.Context, request string) (string, error) {
	return Await(ctx, func(cb func(AsyncResult[string])) {
		a.raw.MakeEWSRequestAsync(request, cb)
	})
}

func (a *Adapter) CallbackToken(ctx context.Context) (string, error) {
	return Await(ctx, a.raw.GetCallbackTokenAsync)
}

func (a *Adapter) RestURL() string {
	return a.raw.RestURL()
}

func (a *Adapter) Sender() string {
	return a.raw.UserEmailAddress()
}
