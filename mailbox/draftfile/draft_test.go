package draftfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/mlredact-addin/mailbox"
	"github.com/jrsteele09/mlredact-addin/mailbox/draftfile"
)

const sample = `{
  "subject": "Q1 Report",
  "body": "<p>Hello &amp; welcome</p>\n<p>draft</p>",
  "to": ["a@x.com"],
  "bcc": ["audit@x.com"],
  "sender": "me@x.com"
}`

func setupDraft(t *testing.T) (string, *draftfile.File) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "draft.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	f, err := draftfile.Open(path)
	require.NoError(t, err)
	return path, f
}

func TestFile_Read(t *testing.T) {
	ctx := context.Background()
	_, f := setupDraft(t)
	item := mailbox.NewAdapter(f)

	subject, err := item.Subject(ctx)
	require.NoError(t, err)
	require.Equal(t, "Q1 Report", subject)

	text, err := item.Body(ctx, mailbox.CoercionText)
	require.NoError(t, err)
	require.Equal(t, "Hello & welcome draft", text)

	to, err := item.Recipients(ctx, mailbox.FieldTo)
	require.NoError(t, err)
	require.Equal(t, []any{"a@x.com"}, to)
	cc, err := item.Recipients(ctx, mailbox.FieldCc)
	require.NoError(t, err)
	require.Empty(t, cc)

	require.Equal(t, "me@x.com", item.Sender())
	_, err = item.ItemID(ctx)
	require.Error(t, err)
}

func TestFile_WritesBack(t *testing.T) {
	ctx := context.Background()
	path, f := setupDraft(t)
	item := mailbox.NewAdapter(f)

	require.NoError(t, item.SetBody(ctx, "<p>draft (reviewed)</p>", mailbox.CoercionHTML))
	props, err := item.Properties(ctx)
	require.NoError(t, err)
	props.Set("mlr_fail_count", "1")
	require.Equal(t, "1", props.Get("mlr_fail_count"))

	reopened, err := draftfile.Open(path)
	require.NoError(t, err)
	require.Equal(t, "<p>draft (reviewed)</p>", reopened.Draft().Body)
	require.Empty(t, reopened.Draft().Properties, "unsaved properties stay pending")

	require.NoError(t, props.Save(ctx))
	reopened, err = draftfile.Open(path)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"mlr_fail_count": "1"}, reopened.Draft().Properties)
	require.Equal(t, []string{"audit@x.com"}, reopened.Draft().Bcc)
}

func TestOpen_Errors(t *testing.T) {
	_, err := draftfile.Open(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = draftfile.Open(path)
	require.Error(t, err)
}
