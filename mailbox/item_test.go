package mailbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/mailbox"
	"github.com/jrsteele09/mlredact-addin/mailbox/mailboxfake"
)

func TestAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("subject and body round trip", func(t *testing.T) {
		raw := mailboxfake.NewFakeItem("Hello", "<p>Body</p>")
		item := mailbox.NewAdapter(raw)

		s, err := item.Subject(ctx)
		require.NoError(t, err)
		require.Equal(t, "Hello", s)

		text, err := item.Body(ctx, mailbox.CoercionText)
		require.NoError(t, err)
		require.Equal(t, "Body", text)

		require.NoError(t, item.SetSubject(ctx, "Changed"))
		require.NoError(t, item.SetBody(ctx, "<p>New</p>", mailbox.CoercionHTML))
		require.Equal(t, "Changed", raw.CurrentSubject())
		require.Equal(t, "<p>New</p>", raw.CurrentBodyHTML())
		require.Equal(t, 1, raw.SubjectSets())
		require.Equal(t, 1, raw.BodySets())
	})

	t.Run("recipients as the host holds them", func(t *testing.T) {
		raw := mailboxfake.NewFakeItem("", "")
		raw.SetRecipientsQuiet(mailbox.FieldTo, "a@x.com", map[string]any{"emailAddress": "b@x.com"})
		item := mailbox.NewAdapter(raw)

		got, err := item.Recipients(ctx, mailbox.FieldTo)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, 1, raw.RecipientCalls(mailbox.FieldTo))
	})

	t.Run("properties are saved explicitly", func(t *testing.T) {
		raw := mailboxfake.NewFakeItem("", "")
		item := mailbox.NewAdapter(raw)

		props, err := item.Properties(ctx)
		require.NoError(t, err)
		props.Set("k", "v")
		require.Equal(t, "v", props.Get("k"))
		require.Nil(t, raw.Props().Saved("k"))

		require.NoError(t, props.Save(ctx))
		require.Equal(t, "v", raw.Props().Saved("k"))
		require.Equal(t, 1, raw.Props().Saves())
	})

	t.Run("properties unavailable", func(t *testing.T) {
		raw := mailboxfake.NewFakeItem("", "")
		raw.LoadErr = &mailbox.HostError{Code: 5001, Message: "no"}
		_, err := mailbox.NewAdapter(raw).Properties(ctx)
		require.ErrorIs(t, err, interrors.ErrPropertiesUnavailable)
		require.ErrorIs(t, err, interrors.ErrHostCall)
	})

	t.Run("change handlers and notifications", func(t *testing.T) {
		raw := mailboxfake.NewFakeItem("", "")
		item := mailbox.NewAdapter(raw)

		fired := 0
		require.NoError(t, item.OnChange(ctx, mailbox.EventSubjectChanged, func() { fired++ }))
		raw.EditSubject("x")
		require.Equal(t, 1, fired)

		n := mailbox.Notification{Type: mailbox.InformationalMessage, Message: "hi", Icon: "icon16"}
		require.NoError(t, item.Notify(ctx, "mlr-alert", n))
		got, ok := raw.Notification("mlr-alert")
		require.True(t, ok)
		require.Equal(t, n, got)
	})

	t.Run("unsaved item has no id", func(t *testing.T) {
		raw := mailboxfake.NewFakeItem("", "")
		_, err := mailbox.NewAdapter(raw).ItemID(ctx)
		require.ErrorIs(t, err, interrors.ErrHostCall)

		raw.SetItemID("AAMk1")
		id, err := mailbox.NewAdapter(raw).ItemID(ctx)
		require.NoError(t, err)
		require.Equal(t, "AAMk1", id)
	})
}

func TestUI(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported without a raw UI", func(t *testing.T) {
		require.False(t, mailbox.NewUI(nil).Supported())
	})

	t.Run("messages and events reach the opener", func(t *testing.T) {
		fake := mailboxfake.NewFakeUI()
		fake.OnOpen = func(url string, d *mailboxfake.FakeDialog) {
			d.MessageParent("hello")
			d.RaiseEvent(mailbox.CodeDialogClosed)
		}
		ui := mailbox.NewUI(fake)
		require.True(t, ui.Supported())

		d, err := ui.OpenDialog(ctx, "https://localhost/auth", mailbox.DialogOptions{Width: 30, Height: 60})
		require.NoError(t, err)
		require.Equal(t, "hello", <-d.Messages())
		require.Equal(t, mailbox.CodeDialogClosed, <-d.Events())

		require.NoError(t, d.MessageChild("bye"))
		require.NoError(t, d.Close())
		require.NoError(t, d.Close())
		dialogs := fake.Dialogs()
		require.Len(t, dialogs, 1)
		require.Equal(t, []string{"bye"}, dialogs[0].SentToChild())
		require.True(t, dialogs[0].Closed())
	})

	t.Run("open failure carries the host code", func(t *testing.T) {
		fake := mailboxfake.NewFakeUI()
		fake.Errors["https://bad"] = mailbox.CodeDomainNotTrusted
		_, err := mailbox.NewUI(fake).OpenDialog(ctx, "https://bad", mailbox.DialogOptions{})
		var he *mailbox.HostError
		require.ErrorAs(t, err, &he)
		require.Equal(t, mailbox.CodeDomainNotTrusted, he.Code)
	})
}
