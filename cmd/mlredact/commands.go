package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/mlredact-addin/enhance"
	"github.com/jrsteele09/mlredact-addin/internal/logging"
	"github.com/jrsteele09/mlredact-addin/mailbox"
	"github.com/jrsteele09/mlredact-addin/mailbox/draftfile"
	"github.com/jrsteele09/mlredact-addin/redaction"
	"github.com/jrsteele09/mlredact-addin/sendflow"
	"github.com/jrsteele09/mlredact-addin/token"
	"github.com/jrsteele09/mlredact-addin/token/refresh"
)

// errSendBlocked exits with status 2 so scripts can tell a block from a failure.
var errSendBlocked = errors.New("send blocked")

func openDraft(path string) (*mailbox.Adapter, error) {
	if path == "" {
		return nil, errors.New("-draft is required")
	}
	f, err := draftfile.Open(path)
	if err != nil {
		return nil, err
	}
	return mailbox.NewAdapter(f), nil
}

func runProcess(ctx context.Context, rt *runtime, args []string) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	draft := fs.String("draft", "", "draft JSON file")
	var opts enhance.Options
	fs.BoolVar(&opts.Proofread, "proofread", false, "request proofreading")
	fs.BoolVar(&opts.Redact, "redact", false, "request redaction")
	method := fs.String("method", "", `redaction method: Blackout, "<REDACTED>" or "Partial mask"`)
	fs.Func("prompt", "custom instruction (repeatable, at most 5)", func(s string) error {
		if !opts.Prompts.Add(s) {
			return fmt.Errorf("prompt %q not added: blank, duplicate or more than %d", s, enhance.MaxPrompts)
		}
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.Method = redaction.Method(*method)

	item, err := openDraft(*draft)
	if err != nil {
		return err
	}
	e := enhance.New(item, rt.client, rt.provider, enhance.WithDefaultTenant(rt.config.GetDefaultTenant()))
	res, err := e.Run(ctx, opts)
	if err != nil {
		return errors.New(redaction.Normalize(err).UserMessage + ": " + err.Error())
	}
	fmt.Printf("subject updated: %t\nbody updated: %t\n", res.SubjectApplied, res.BodyApplied)
	if res.Response.ReqConfirm {
		fmt.Println(sendflow.ConfirmMessage)
	}
	return nil
}

func runSend(ctx context.Context, rt *runtime, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	draft := fs.String("draft", "", "draft JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	item, err := openDraft(*draft)
	if err != nil {
		return err
	}

	options := []sendflow.Option{
		sendflow.WithFailureCap(rt.config.GetFailureCap()),
		sendflow.WithDefaultTenant(rt.config.GetDefaultTenant()),
	}
	if p := rt.config.GetAuditPath(); p != "" {
		options = append(options, sendflow.WithAuditPath(p))
	}
	interceptor := sendflow.NewInterceptor(item, rt.client, rt.provider, options...)
	if err := interceptor.Attach(ctx); err != nil {
		return err
	}
	out := interceptor.OnSend(ctx)
	interceptor.Wait()

	if out.Allow {
		fmt.Printf("send allowed (%s)\n", out.Reason)
		return nil
	}
	fmt.Printf("send blocked (%s): %s\n", out.Reason, out.Message)
	return errSendBlocked
}

func runProbe(ctx context.Context, rt *runtime, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	url := fs.String("url", strings.TrimRight(rt.config.GetAPIBaseURL(), "/")+redaction.ProcessPath, "URL to probe")
	timeout := fs.Duration("timeout", 10*time.Second, "per request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	for _, note := range redaction.Probe(ctx, nil, *url) {
		fmt.Println(note)
	}
	return nil
}

func runToken(ctx context.Context, rt *runtime, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	clearCache := fs.Bool("clear", false, "drop the cached access token")
	refreshNow := fs.Bool("refresh", false, "acquire a new token silently")
	importRT := fs.String("import-refresh-token", "", "file holding a refresh token to sign in with")
	username := fs.String("username", "", "account name for -import-refresh-token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *clearCache {
		rt.cache.Clear(ctx)
		fmt.Println("token cleared")
		return nil
	}
	if *importRT != "" {
		if err := importAccount(rt, *importRT, *username); err != nil {
			return err
		}
		*refreshNow = true
	}
	if *refreshNow {
		if _, err := rt.provider.ForceRefresh(ctx); err != nil {
			return errors.New(redaction.Normalize(err).UserMessage + ": " + err.Error())
		}
	} else {
		rt.cache.Seed(ctx)
	}

	cur := rt.cache.Current()
	if _, ok := rt.provider.GetValidToken(); !ok {
		fmt.Println("no valid token")
		return nil
	}
	fmt.Printf("token %s valid until %s\n", logging.TokenDigest(cur.Value), time.Unix(cur.ExpiryEpochSeconds, 0).Format(time.RFC3339))
	if tid := token.TenantIDFromJWT(cur.Value); tid != "" {
		fmt.Printf("tenant %s\n", tid)
	}
	return nil
}

func importAccount(rt *runtime, path, username string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rtoken := strings.TrimSpace(string(data))
	if rtoken == "" {
		return errors.New("refresh token file is empty")
	}
	if username == "" {
		username = "cli"
	}
	account := &refresh.Account{
		HomeAccountID: username,
		Username:      username,
		TenantID:      rt.config.GetTenantID(),
		RefreshToken:  rtoken,
	}
	if err := rt.accounts.Upsert(account); err != nil {
		return err
	}
	return rt.accounts.SetActive(account.HomeAccountID)
}
