// Package enhance runs the manual task-pane trigger: proofread and/or redact
// the open draft and write the service's edits back.
package enhance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/internal/logging"
	"github.com/jrsteele09/mlredact-addin/mailbox"
	"github.com/jrsteele09/mlredact-addin/recipients"
	"github.com/jrsteele09/mlredact-addin/redaction"
	"github.com/jrsteele09/mlredact-addin/token"
)

// Processor is the redaction service; *redaction.Client implements it.
type Processor interface {
	ProcessMessage(ctx context.Context, req redaction.Request) (redaction.Response, error)
}

// TokenSource supplies the access token. Manual runs may open the sign-in
// dialog, so ctx is passed through unmarked.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Result is what one run returned and what it changed on the item.
type Result struct {
	Response       redaction.Response
	SubjectApplied bool
	BodyApplied    bool
}

type Enhancer struct {
	item          mailbox.Item
	client        Processor
	tokens        TokenSource
	reader        *recipients.Reader
	defaultTenant string
	nowFunc       func() time.Time
	newMessageID  func() string
}

type Option func(*Enhancer)

func WithDefaultTenant(tenant string) Option {
	return func(e *Enhancer) {
		e.defaultTenant = tenant
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(e *Enhancer) {
		e.nowFunc = now
	}
}

func WithMessageIDFunc(fn func() string) Option {
	return func(e *Enhancer) {
		e.newMessageID = fn
	}
}

func WithRecipientReader(r *recipients.Reader) Option {
	return func(e *Enhancer) {
		e.reader = r
	}
}

func New(item mailbox.Item, client Processor, tokens TokenSource, options ...Option) *Enhancer {
	e := &Enhancer{
		item:          item,
		client:        client,
		tokens:        tokens,
		defaultTenant: redaction.DefaultTenantID,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.reader == nil {
		e.reader = recipients.NewReader(recipients.DefaultStrategies(nil)...)
	}
	if e.nowFunc == nil {
		e.nowFunc = time.Now
	}
	if e.newMessageID == nil {
		e.newMessageID = uuid.NewString
	}
	return e
}

// Run sends the draft for processing and applies the returned subject and
// body where they differ from what the draft holds.
func (e *Enhancer) Run(ctx context.Context, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	subject, err := e.item.Subject(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "Enhancer.Run Subject")
	}
	body, coercion, err := e.body(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "Enhancer.Run Body")
	}
	set := e.reader.Read(ctx, e.item)

	tok, err := e.tokens.Token(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "Enhancer.Run Token")
	}
	if tok == "" {
		return Result{}, interrors.ErrNoValidToken
	}
	tenant := token.TenantIDFromJWT(tok)
	if tenant == "" {
		tenant = e.defaultTenant
	}

	req := redaction.Request{
		MessageID:         e.newMessageID(),
		TenantID:          tenant,
		UTCTimestamp:      e.nowFunc().UTC().Format(time.RFC3339Nano),
		TriggerType:       redaction.TriggerManual,
		Subject:           subject,
		Body:              body,
		ActionsRequested:  opts.Actions(),
		RedactionMethod:   opts.RedactionMethod(),
		UserContext:       opts.Prompts.Context(),
		MessageRecipients: redaction.Recipients(set.Clone()),
		MessageSender:     e.item.Sender(),
	}
	log.Info().
		Str("message_id", req.MessageID).
		Interface("actions", req.ActionsRequested).
		Str("method", string(req.RedactionMethod)).
		Int("prompts", len(opts.Prompts)).
		Str("sender", logging.MaskEmail(req.MessageSender)).
		Msg("enhance: processing draft")

	resp, err := e.client.ProcessMessage(ctx, req)
	if err != nil {
		return Result{}, err
	}

	res := Result{Response: resp}
	if s := resp.UpdatedSubject; s != "" && s != subject {
		if err := e.item.SetSubject(ctx, s); err != nil {
			return res, errors.Wrap(err, "Enhancer.Run SetSubject")
		}
		res.SubjectApplied = true
	}
	if b := resp.UpdatedBody; b != "" && b != body {
		if err := e.item.SetBody(ctx, b, coercion); err != nil {
			return res, errors.Wrap(err, "Enhancer.Run SetBody")
		}
		res.BodyApplied = true
	}
	log.Info().
		Str("message_id", req.MessageID).
		Bool("subject_applied", res.SubjectApplied).
		Bool("body_applied", res.BodyApplied).
		Msg("enhance: draft processed")
	return res, nil
}

// body prefers HTML and falls back to plain text.
func (e *Enhancer) body(ctx context.Context) (string, mailbox.CoercionType, error) {
	html, err := e.item.Body(ctx, mailbox.CoercionHTML)
	if err == nil && html != "" {
		return html, mailbox.CoercionHTML, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("enhance: HTML body unavailable, using text")
	}
	text, err := e.item.Body(ctx, mailbox.CoercionText)
	if err != nil {
		return "", "", err
	}
	return text, mailbox.CoercionText, nil
}
