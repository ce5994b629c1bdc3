package sendflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/mlredact-addin/auth/dialog"
	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/mailbox"
	"github.com/jrsteele09/mlredact-addin/mailbox/mailboxfake"
	"github.com/jrsteele09/mlredact-addin/recipients"
	"github.com/jrsteele09/mlredact-addin/redaction"
	"github.com/jrsteele09/mlredact-addin/sendflow"
	"github.com/jrsteele09/mlredact-addin/token/tokentest"
)

var baseTime = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type fakeProcessor struct {
	lock      sync.Mutex
	requests  []redaction.Request
	audits    []redaction.Request
	responses []redaction.Response
	errs      []error

	// entered and release, when set, hold the first call open.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeProcessor) ProcessMessage(_ context.Context, req redaction.Request) (redaction.Response, error) {
	if f.release != nil && f.Calls() == 0 {
		close(f.entered)
		<-f.release
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return redaction.Response{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return redaction.Response{MessageID: req.MessageID, TenantID: req.TenantID}, nil
}

func (f *fakeProcessor) Audit(_ context.Context, _ string, req redaction.Request) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.audits = append(f.audits, req)
	return nil
}

func (f *fakeProcessor) Calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.requests)
}

type fakeTokens struct {
	token       string
	err         error
	interactive int
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	if !dialog.IsNonInteractive(ctx) {
		f.interactive++
	}
	return f.token, f.err
}

type fixture struct {
	raw         *mailboxfake.FakeItem
	processor   *fakeProcessor
	tokens      *fakeTokens
	interceptor *sendflow.Interceptor
}

func setupInterceptor(t *testing.T, options ...sendflow.Option) *fixture {
	t.Helper()
	raw := mailboxfake.NewFakeItem("Q1 Report", "draft")
	raw.SetRecipientsQuiet(mailbox.FieldTo, "a@x.com")
	f := &fixture{
		raw:       raw,
		processor: &fakeProcessor{},
		tokens:    &fakeTokens{token: tokentest.JWT(t, baseTime.Add(time.Hour), "tenant-42")},
	}
	reader := recipients.NewReader(&recipients.Direct{Attempts: 1, Sleep: func(context.Context, time.Duration) error { return nil }})
	ids := 0
	options = append([]sendflow.Option{
		sendflow.WithRecipientReader(reader),
		sendflow.WithNowFunc(func() time.Time { return baseTime }),
		sendflow.WithMessageIDFunc(func() string {
			ids++
			return fmt.Sprintf("msg-%d", ids)
		}),
	}, options...)
	item := mailbox.NewAdapter(raw)
	f.interceptor = sendflow.NewInterceptor(item, f.processor, f.tokens, options...)
	require.NoError(t, f.interceptor.Attach(context.Background()))
	return f
}

func confirmResponse() redaction.Response {
	return redaction.Response{MessageID: "msg-1", TenantID: "tenant-42", UpdatedSubject: "Q1 Report", UpdatedBody: "draft (reviewed)", ReqConfirm: true}
}

func TestInterceptor_ConfirmThenResend(t *testing.T) {
	ctx := context.Background()
	f := setupInterceptor(t)
	f.processor.responses = []redaction.Response{confirmResponse()}

	first := f.interceptor.OnSend(ctx)
	require.False(t, first.Allow)
	require.Equal(t, sendflow.ReasonConfirm, first.Reason)
	require.Equal(t, sendflow.ConfirmMessage, first.Message)
	require.Equal(t, []sendflow.State{
		sendflow.Idle, sendflow.CheckingBreaker, sendflow.CheckingBypass, sendflow.GatheringContent,
		sendflow.CallingAPI, sendflow.ApplyingEdits, sendflow.SavingBypass, sendflow.Blocked,
	}, first.Trace)

	require.Equal(t, "draft (reviewed)", f.raw.CurrentBodyHTML())
	require.Zero(t, f.raw.SubjectSets(), "unchanged subject is not written back")
	require.Equal(t, 1, f.raw.BodySets())

	props := f.raw.Props()
	require.Equal(t, "1", props.Saved(sendflow.BypassKey))
	want := sendflow.Fingerprint("Q1 Report", "draft (reviewed)", recipients.Set{To: []string{"a@x.com"}})
	require.Equal(t, want, props.Saved(sendflow.FingerprintKey))

	n, ok := f.raw.Notification(sendflow.NotificationKey)
	require.True(t, ok)
	require.Equal(t, mailbox.Notification{Type: mailbox.InformationalMessage, Message: sendflow.ConfirmMessage, Icon: "icon16"}, n)

	second := f.interceptor.OnSend(ctx)
	require.True(t, second.Allow)
	require.Equal(t, sendflow.ReasonBypass, second.Reason)
	require.Contains(t, second.Trace, sendflow.ProcessingSilent)
	require.Equal(t, 1, f.processor.Calls(), "confirmed resend does not call the API")
	require.Equal(t, "", props.Saved(sendflow.BypassKey))
	require.Equal(t, "", props.Saved(sendflow.FingerprintKey))

	third := f.interceptor.OnSend(ctx)
	require.True(t, third.Allow)
	require.Equal(t, sendflow.ReasonClear, third.Reason)
	require.Equal(t, 2, f.processor.Calls(), "bypass is single use")
}

func TestInterceptor_RequestContents(t *testing.T) {
	f := setupInterceptor(t)
	f.raw.SetRecipientsQuiet(mailbox.FieldCc, map[string]any{"emailAddress": "c@x.com"})
	f.raw.SetUserEmail("me@x.com")

	out := f.interceptor.OnSend(context.Background())
	require.True(t, out.Allow)
	require.Len(t, f.processor.requests, 1)
	req := f.processor.requests[0]
	require.Equal(t, "msg-1", req.MessageID)
	require.Equal(t, "tenant-42", req.TenantID)
	require.Equal(t, "2026-10-14T09:00:00Z", req.UTCTimestamp)
	require.Equal(t, redaction.TriggerOnSend, req.TriggerType)
	require.Equal(t, "Q1 Report", req.Subject)
	require.Equal(t, "draft", req.Body)
	require.Empty(t, req.ActionsRequested)
	require.Equal(t, redaction.MethodNone, req.RedactionMethod)
	require.Equal(t, []string{"a@x.com"}, req.MessageRecipients.To)
	require.Equal(t, []string{"c@x.com"}, req.MessageRecipients.Cc)
	require.Equal(t, "me@x.com", req.MessageSender)
	require.Zero(t, f.tokens.interactive, "send processing never allows UI")
}

func TestInterceptor_DefaultTenant(t *testing.T) {
	f := setupInterceptor(t)
	f.tokens.token = tokentest.JWT(t, baseTime.Add(time.Hour), "")
	f.interceptor.OnSend(context.Background())
	require.Equal(t, redaction.DefaultTenantID, f.processor.requests[0].TenantID)
}

func TestInterceptor_Invalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("recipient change drops the confirmation", func(t *testing.T) {
		f := setupInterceptor(t)
		f.processor.responses = []redaction.Response{confirmResponse()}
		require.False(t, f.interceptor.OnSend(ctx).Allow)

		f.raw.SetRecipients(mailbox.FieldTo, "a@x.com", "b@x.com")
		require.Equal(t, "", f.raw.Props().Saved(sendflow.BypassKey))

		out := f.interceptor.OnSend(ctx)
		require.True(t, out.Allow)
		require.Equal(t, sendflow.ReasonClear, out.Reason)
		require.Equal(t, 2, f.processor.Calls())
		require.Equal(t, []string{"a@x.com", "b@x.com"}, f.processor.requests[1].MessageRecipients.To)
	})

	t.Run("subject change drops the confirmation", func(t *testing.T) {
		f := setupInterceptor(t)
		f.processor.responses = []redaction.Response{confirmResponse()}
		require.False(t, f.interceptor.OnSend(ctx).Allow)

		f.raw.EditSubject("Q1 Report v2")
		out := f.interceptor.OnSend(ctx)
		require.Equal(t, sendflow.ReasonClear, out.Reason)
		require.Equal(t, 2, f.processor.Calls())
	})

	t.Run("edit during a send waits and then drops the confirmation", func(t *testing.T) {
		f := setupInterceptor(t)
		f.processor.responses = []redaction.Response{confirmResponse()}
		f.processor.entered = make(chan struct{})
		f.processor.release = make(chan struct{})

		outcome := make(chan sendflow.Outcome, 1)
		go func() { outcome <- f.interceptor.OnSend(ctx) }()
		<-f.processor.entered

		edited := make(chan struct{})
		go func() {
			f.raw.SetRecipients(mailbox.FieldTo, "a@x.com", "c@x.com")
			close(edited)
		}()
		isEdited := func() bool {
			select {
			case <-edited:
				return true
			default:
				return false
			}
		}
		require.Never(t, isEdited, 50*time.Millisecond, 5*time.Millisecond, "change handler waits for the send")

		close(f.processor.release)
		require.False(t, (<-outcome).Allow)
		require.Eventually(t, isEdited, time.Second, 5*time.Millisecond)
		require.Equal(t, "", f.raw.Props().Saved(sendflow.BypassKey))
	})

	t.Run("content changed without an event is not honoured", func(t *testing.T) {
		f := setupInterceptor(t)
		f.processor.responses = []redaction.Response{confirmResponse()}
		require.False(t, f.interceptor.OnSend(ctx).Allow)

		f.raw.SetRecipientsQuiet(mailbox.FieldBcc, "hidden@x.com")
		out := f.interceptor.OnSend(ctx)
		require.NotContains(t, out.Trace, sendflow.ProcessingSilent)
		require.Equal(t, 2, f.processor.Calls())
	})
}

func TestInterceptor_FailOpen(t *testing.T) {
	ctx := context.Background()
	f := setupInterceptor(t)
	upstream := &redaction.UpstreamError{Kind: redaction.KindServer, Status: 503}
	f.processor.errs = []error{upstream, upstream, upstream}

	first := f.interceptor.OnSend(ctx)
	require.False(t, first.Allow)
	require.Equal(t, sendflow.ReasonError, first.Reason)
	require.Equal(t, redaction.DefaultUserMessage, first.Message)
	require.Equal(t, "1", f.raw.Props().Saved(sendflow.FailureKey))

	second := f.interceptor.OnSend(ctx)
	require.True(t, second.Allow)
	require.Equal(t, sendflow.ReasonFailOpenAfter, second.Reason)
	require.Equal(t, "2", f.raw.Props().Saved(sendflow.FailureKey))

	third := f.interceptor.OnSend(ctx)
	require.True(t, third.Allow)
	require.Equal(t, sendflow.ReasonFailOpen, third.Reason)
	require.Equal(t, []sendflow.State{sendflow.Idle, sendflow.CheckingBreaker, sendflow.Allowed}, third.Trace)
	require.Equal(t, 2, f.processor.Calls(), "third attempt skips the API")
}

func TestInterceptor_SuccessResetsFailures(t *testing.T) {
	ctx := context.Background()
	f := setupInterceptor(t, sendflow.WithFailureCap(3))
	f.processor.errs = []error{errors.New("boom")}

	require.False(t, f.interceptor.OnSend(ctx).Allow)
	require.Equal(t, "1", f.raw.Props().Saved(sendflow.FailureKey))

	require.True(t, f.interceptor.OnSend(ctx).Allow)
	require.Equal(t, "0", f.raw.Props().Saved(sendflow.FailureKey))
}

func TestInterceptor_MissingSignIn(t *testing.T) {
	ctx := context.Background()
	f := setupInterceptor(t)
	f.tokens.token = ""
	f.tokens.err = interrors.ErrInteractiveDisabled

	out := f.interceptor.OnSend(ctx)
	require.False(t, out.Allow)
	require.Equal(t, redaction.SignInUserMessage, out.Message)
	require.Zero(t, f.processor.Calls())

	out = f.interceptor.OnSend(ctx)
	require.True(t, out.Allow, "missing sign-in also fails open at the cap")
}

func TestInterceptor_NoEditsWhenUnchanged(t *testing.T) {
	f := setupInterceptor(t)
	f.processor.responses = []redaction.Response{{UpdatedSubject: "Q1 Report", UpdatedBody: ""}}

	out := f.interceptor.OnSend(context.Background())
	require.True(t, out.Allow)
	require.Zero(t, f.raw.SubjectSets())
	require.Zero(t, f.raw.BodySets())
}

func TestInterceptor_AppliesSubjectEdit(t *testing.T) {
	f := setupInterceptor(t)
	f.processor.responses = []redaction.Response{{UpdatedSubject: "Q1 Report (final)", UpdatedBody: "draft"}}

	out := f.interceptor.OnSend(context.Background())
	require.True(t, out.Allow)
	require.Equal(t, "Q1 Report (final)", f.raw.CurrentSubject())
	require.Equal(t, 1, f.raw.SubjectSets())
	require.Zero(t, f.raw.BodySets())
}

func TestInterceptor_AuditOnBypass(t *testing.T) {
	ctx := context.Background()
	f := setupInterceptor(t, sendflow.WithAuditPath("/Audit"))
	f.processor.responses = []redaction.Response{confirmResponse()}

	require.False(t, f.interceptor.OnSend(ctx).Allow)
	require.True(t, f.interceptor.OnSend(ctx).Allow)
	f.interceptor.Wait()

	require.Len(t, f.processor.audits, 1)
	require.Equal(t, "Q1 Report", f.processor.audits[0].Subject)
	require.Equal(t, 1, f.processor.Calls())
}

func TestInterceptor_PropertiesUnavailable(t *testing.T) {
	ctx := context.Background()
	f := setupInterceptor(t)
	f.raw.LoadErr = &mailbox.HostError{Code: 5001, Message: "no props"}
	f.processor.errs = []error{errors.New("boom"), errors.New("boom")}

	require.False(t, f.interceptor.OnSend(ctx).Allow)
	require.True(t, f.interceptor.OnSend(ctx).Allow)
	out := f.interceptor.OnSend(ctx)
	require.Equal(t, sendflow.ReasonFailOpen, out.Reason)
	require.Equal(t, 2, f.processor.Calls())
}

func TestSendAttemptState(t *testing.T) {
	ctx := context.Background()
	raw := mailboxfake.NewFakeItem("", "")
	props, err := mailbox.NewAdapter(raw).Properties(ctx)
	require.NoError(t, err)

	require.Equal(t, sendflow.SendAttemptState{}, sendflow.LoadState(props))

	sendflow.SendAttemptState{Bypass: true, Fingerprint: "fp", Failures: 1}.Write(props)
	require.Equal(t, sendflow.SendAttemptState{Bypass: true, Fingerprint: "fp", Failures: 1}, sendflow.LoadState(props))
	require.True(t, sendflow.LoadState(props).HasBypass())

	props.Set(sendflow.FailureKey, "garbage")
	require.Zero(t, sendflow.LoadState(props).Failures)
	props.Set(sendflow.FingerprintKey, "")
	require.False(t, sendflow.LoadState(props).HasBypass())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "checking-bypass", sendflow.CheckingBypass.String())
	require.True(t, sendflow.Blocked.Terminal())
	require.False(t, sendflow.CallingAPI.Terminal())
}
