package sendflow

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/mailbox"
	"github.com/jrsteele09/mlredact-addin/recipients"
	"github.com/jrsteele09/mlredact-addin/redaction"
	"github.com/jrsteele09/mlredact-addin/token"
)

// content is what the compose item holds at one point of the attempt.
type content struct {
	subject    string
	body       string
	coercion   mailbox.CoercionType
	bodyText   string
	recipients recipients.Set
}

// attempt is one run of the state machine.
type attempt struct {
	*Interceptor
	store stateStore

	state       SendAttemptState
	content     content
	response    redaction.Response
	fingerprint string
	err         error
	outcome     Outcome
}

type transition func(a *attempt, ctx context.Context) State

var transitions map[State]transition

func init() {
	transitions = map[State]transition{
		Idle:             (*attempt).start,
		CheckingBreaker:  (*attempt).checkBreaker,
		CheckingBypass:   (*attempt).checkBypass,
		ProcessingSilent: (*attempt).processSilent,
		GatheringContent: (*attempt).gatherContent,
		CallingAPI:       (*attempt).callAPI,
		ApplyingEdits:    (*attempt).applyEdits,
		SavingBypass:     (*attempt).saveBypass,
		HandlingFailure:  (*attempt).handleFailure,
	}
}

func (a *attempt) run(ctx context.Context) Outcome {
	s := Idle
	trace := []State{s}
	for !s.Terminal() {
		s = transitions[s](a, ctx)
		trace = append(trace, s)
	}
	a.outcome.Allow = s == Allowed
	a.outcome.Trace = trace
	return a.outcome
}

func (a *attempt) allow(reason Reason) State {
	a.outcome = Outcome{Allow: true, Reason: reason}
	return Allowed
}

func (a *attempt) block(reason Reason, message string) State {
	a.outcome = Outcome{Reason: reason, Message: message}
	return Blocked
}

func (a *attempt) fail(err error) State {
	a.err = err
	return HandlingFailure
}

func (a *attempt) start(_ context.Context) State {
	a.state = a.store.Load()
	return CheckingBreaker
}

// checkBreaker allows the send without processing once the failure cap is hit.
func (a *attempt) checkBreaker(_ context.Context) State {
	if a.state.Failures >= a.failureCap {
		log.Warn().Int("failures", a.state.Failures).Msg("sendflow: failure cap reached, allowing send unprocessed")
		return a.allow(ReasonFailOpen)
	}
	return CheckingBypass
}

// checkBypass honours a confirmation only while the content still matches
// what was confirmed.
func (a *attempt) checkBypass(ctx context.Context) State {
	if !a.state.HasBypass() {
		return GatheringContent
	}
	c, err := a.gather(ctx, false)
	if err != nil {
		log.Warn().Err(err).Msg("sendflow: bypass check could not read the item, processing fully")
		return GatheringContent
	}
	if Fingerprint(c.subject, c.bodyText, c.recipients) != a.state.Fingerprint {
		log.Info().Msg("sendflow: content changed since confirmation, processing again")
		return GatheringContent
	}
	a.content = c
	return ProcessingSilent
}

func (a *attempt) processSilent(ctx context.Context) State {
	a.state.clearBypass()
	if err := a.store.Save(ctx, a.state); err != nil {
		log.Warn().Err(err).Msg("sendflow: bypass consumed but not saved")
	}
	a.audit(ctx, a.request(a.content, a.defaultTenant))
	return a.allow(ReasonBypass)
}

func (a *attempt) gatherContent(ctx context.Context) State {
	c, err := a.gather(ctx, true)
	if err != nil {
		return a.fail(err)
	}
	a.content = c
	return CallingAPI
}

func (a *attempt) callAPI(ctx context.Context) State {
	tok, err := a.tokens.Token(ctx)
	if err != nil {
		return a.fail(err)
	}
	if tok == "" {
		return a.fail(interrors.ErrNoValidToken)
	}
	tenant := token.TenantIDFromJWT(tok)
	if tenant == "" {
		tenant = a.defaultTenant
	}
	resp, err := a.client.ProcessMessage(ctx, a.request(a.content, tenant))
	if err != nil {
		return a.fail(err)
	}
	a.response = resp
	return ApplyingEdits
}

// applyEdits writes back changed subject/body and fingerprints the result.
func (a *attempt) applyEdits(ctx context.Context) State {
	c := a.content
	g, gctx := errgroup.WithContext(ctx)
	if s := a.response.UpdatedSubject; s != "" && s != c.subject {
		g.Go(func() error { return a.item.SetSubject(gctx, s) })
	}
	if b := a.response.UpdatedBody; b != "" && b != c.body {
		g.Go(func() error { return a.item.SetBody(gctx, b, c.coercion) })
	}
	if err := g.Wait(); err != nil {
		return a.fail(err)
	}

	final, err := a.readSubjectAndText(ctx)
	if err != nil {
		return a.fail(err)
	}
	a.fingerprint = Fingerprint(final.subject, final.bodyText, c.recipients)

	if a.response.ReqConfirm {
		return SavingBypass
	}
	if a.state.Failures > 0 || a.state.HasBypass() {
		a.state.Failures = 0
		a.state.clearBypass()
		if err := a.store.Save(ctx, a.state); err != nil {
			log.Warn().Err(err).Msg("sendflow: failure counter not reset")
		}
	}
	return a.allow(ReasonClear)
}

func (a *attempt) saveBypass(ctx context.Context) State {
	a.state = SendAttemptState{Bypass: true, Fingerprint: a.fingerprint}
	if err := a.store.Save(ctx, a.state); err != nil {
		log.Warn().Err(err).Msg("sendflow: bypass not saved, the resend will be processed again")
	}
	return a.block(ReasonConfirm, ConfirmMessage)
}

// handleFailure counts the failure and fails open once the cap is reached.
func (a *attempt) handleFailure(ctx context.Context) State {
	a.state.Failures++
	if err := a.store.Save(ctx, a.state); err != nil {
		log.Warn().Err(err).Msg("sendflow: failure counter not saved")
	}
	n := redaction.Normalize(a.err)
	log.Warn().
		Err(a.err).
		Str("kind", string(n.Kind)).
		Int("status", n.Status).
		Str("correlation_id", n.CorrelationID).
		Str("detail", n.DevMessage).
		Int("failures", a.state.Failures).
		Msg("sendflow: processing failed")
	if a.state.Failures >= a.failureCap {
		return a.allow(ReasonFailOpenAfter)
	}
	return a.block(ReasonError, n.UserMessage)
}

// gather reads subject, body and recipients concurrently. With preferHTML
// the body is read as HTML, falling back to text.
func (a *attempt) gather(ctx context.Context, preferHTML bool) (content, error) {
	var c content
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.item.Subject(gctx)
		c.subject = s
		return err
	})
	g.Go(func() error {
		text, err := a.item.Body(gctx, mailbox.CoercionText)
		c.bodyText = text
		return err
	})
	if preferHTML {
		g.Go(func() error {
			html, err := a.item.Body(gctx, mailbox.CoercionHTML)
			if err != nil {
				log.Debug().Err(err).Msg("sendflow: HTML body unavailable, using text")
				return nil
			}
			c.body = html
			return nil
		})
	}
	g.Go(func() error {
		c.recipients = a.reader.Read(gctx, a.item)
		return nil
	})
	if err := g.Wait(); err != nil {
		return content{}, err
	}
	if c.body != "" {
		c.coercion = mailbox.CoercionHTML
	} else {
		c.body = c.bodyText
		c.coercion = mailbox.CoercionText
	}
	return c, nil
}

func (a *attempt) readSubjectAndText(ctx context.Context) (content, error) {
	var c content
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.item.Subject(gctx)
		c.subject = s
		return err
	})
	g.Go(func() error {
		text, err := a.item.Body(gctx, mailbox.CoercionText)
		c.bodyText = text
		return err
	})
	return c, g.Wait()
}

func (a *attempt) request(c content, tenant string) redaction.Request {
	r := c.recipients.Clone()
	return redaction.Request{
		MessageID:         a.newMessageID(),
		TenantID:          tenant,
		UTCTimestamp:      a.nowFunc().UTC().Format(time.RFC3339Nano),
		TriggerType:       redaction.TriggerOnSend,
		Subject:           c.subject,
		Body:              c.body,
		ActionsRequested:  []redaction.Action{},
		RedactionMethod:   redaction.MethodNone,
		UserContext:       "",
		MessageRecipients: redaction.Recipients(r),
		MessageSender:     a.item.Sender(),
	}
}
