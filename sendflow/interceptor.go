// Package sendflow intercepts the compose send event. Each attempt runs an
// explicit state machine: fail-open breaker, bypass check, then full
// processing through the redaction service.
package sendflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/mlredact-addin/auth/dialog"
	"github.com/jrsteele09/mlredact-addin/mailbox"
	"github.com/jrsteele09/mlredact-addin/recipients"
	"github.com/jrsteele09/mlredact-addin/redaction"
)

const (
	NotificationKey = "mlr-alert"
	ConfirmMessage  = "Review is recommended by your organization. Click Send again to proceed."
)

// Processor is the redaction service; *redaction.Client implements it.
type Processor interface {
	ProcessMessage(ctx context.Context, req redaction.Request) (redaction.Response, error)
	Audit(ctx context.Context, path string, req redaction.Request) error
}

// TokenSource supplies the access token whose tenant claim goes into the
// request; *auth.Provider implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Interceptor handles send attempts for one compose item.
type Interceptor struct {
	item   mailbox.Item
	client Processor
	tokens TokenSource
	reader *recipients.Reader

	failureCap    int
	defaultTenant string
	auditPath     string
	auditTimeout  time.Duration
	nowFunc       func() time.Time
	newMessageID  func() string

	sendLock sync.Mutex
	fallback memStore
	audits   sync.WaitGroup
}

type Option func(*Interceptor)

// WithFailureCap sets how many consecutive processing failures open the breaker.
func WithFailureCap(n int) Option {
	return func(i *Interceptor) {
		i.failureCap = n
	}
}

func WithDefaultTenant(tenant string) Option {
	return func(i *Interceptor) {
		i.defaultTenant = tenant
	}
}

// WithAuditPath enables the best-effort audit call on confirmed resends.
func WithAuditPath(path string) Option {
	return func(i *Interceptor) {
		i.auditPath = path
	}
}

func WithAuditTimeout(d time.Duration) Option {
	return func(i *Interceptor) {
		i.auditTimeout = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(i *Interceptor) {
		i.nowFunc = now
	}
}

func WithMessageIDFunc(fn func() string) Option {
	return func(i *Interceptor) {
		i.newMessageID = fn
	}
}

func WithRecipientReader(r *recipients.Reader) Option {
	return func(i *Interceptor) {
		i.reader = r
	}
}

func NewInterceptor(item mailbox.Item, client Processor, tokens TokenSource, options ...Option) *Interceptor {
	i := &Interceptor{
		item:          item,
		client:        client,
		tokens:        tokens,
		failureCap:    2,
		defaultTenant: redaction.DefaultTenantID,
		auditTimeout:  10 * time.Second,
	}
	for _, opt := range options {
		opt(i)
	}
	if i.reader == nil {
		i.reader = recipients.NewReader(recipients.DefaultStrategies(nil)...)
	}
	if i.nowFunc == nil {
		i.nowFunc = time.Now
	}
	if i.newMessageID == nil {
		i.newMessageID = uuid.NewString
	}
	if i.failureCap < 1 {
		i.failureCap = 1
	}
	return i
}

// Attach registers the handlers that drop a pending confirmation when the
// recipients or subject change.
func (i *Interceptor) Attach(ctx context.Context) error {
	for _, event := range []mailbox.EventType{mailbox.EventRecipientsChanged, mailbox.EventSubjectChanged} {
		event := event
		if err := i.item.OnChange(ctx, event, func() { i.invalidate(event) }); err != nil {
			log.Warn().Err(err).Str("event", string(event)).Msg("sendflow: change handler not registered")
			return err
		}
	}
	return nil
}

// OnSend decides whether the pending send may go out. It never opens UI and
// never returns an error: failures block with a message or fail open.
func (i *Interceptor) OnSend(ctx context.Context) Outcome {
	i.sendLock.Lock()
	defer i.sendLock.Unlock()

	ctx = dialog.NonInteractive(ctx)
	a := &attempt{Interceptor: i, store: i.loadStore(ctx)}
	out := a.run(ctx)
	if !out.Allow {
		i.notify(ctx, out.Message)
	}
	log.Info().
		Bool("allow", out.Allow).
		Str("reason", string(out.Reason)).
		Int("failures", a.state.Failures).
		Msg("sendflow: send decided")
	return out
}

// Wait blocks until in-flight audit calls finish.
func (i *Interceptor) Wait() {
	i.audits.Wait()
}

func (i *Interceptor) loadStore(ctx context.Context) stateStore {
	props, err := i.item.Properties(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("sendflow: custom properties unavailable, keeping state in memory")
		return &i.fallback
	}
	return propsStore{props: props}
}

// invalidate waits for an in-progress send so its saved bypass cannot
// outlive the edit.
func (i *Interceptor) invalidate(event mailbox.EventType) {
	i.sendLock.Lock()
	defer i.sendLock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store := i.loadStore(ctx)
	s := store.Load()
	if !s.Bypass && s.Fingerprint == "" {
		return
	}
	s.clearBypass()
	if err := store.Save(ctx, s); err != nil {
		log.Warn().Err(err).Str("event", string(event)).Msg("sendflow: bypass not cleared")
		return
	}
	log.Debug().Str("event", string(event)).Msg("sendflow: bypass cleared")
}

func (i *Interceptor) notify(ctx context.Context, message string) {
	n := mailbox.Notification{
		Type:       mailbox.InformationalMessage,
		Message:    message,
		Icon:       "icon16",
		Persistent: false,
	}
	if err := i.item.Notify(ctx, NotificationKey, n); err != nil {
		log.Warn().Err(err).Msg("sendflow: notification not shown")
	}
}

func (i *Interceptor) audit(ctx context.Context, req redaction.Request) {
	if i.auditPath == "" {
		return
	}
	i.audits.Add(1)
	go func() {
		defer i.audits.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.auditTimeout)
		defer cancel()
		if err := i.client.Audit(ctx, i.auditPath, req); err != nil {
			log.Debug().Err(err).Msg("sendflow: bypass audit failed")
		}
	}()
}
