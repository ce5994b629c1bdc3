package dialog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/internal/logging"
	"github.com/jrsteele09/mlredact-addin/mailbox"
)

const flightKey = "aad-dialog"

// TokenWriter durably caches a token; *token.Cache implements it.
type TokenWriter interface {
	Set(ctx context.Context, raw string) error
}

// Bridge opens the sign-in dialog. Concurrent callers share one dialog.
type Bridge struct {
	ui          *mailbox.UI
	sink        TokenWriter
	url         string
	fallbackURL string
	production  bool
	options     mailbox.DialogOptions
	timeout     time.Duration

	group singleflight.Group
}

type BridgeOption func(*Bridge)

// WithFallbackURL sets a URL retried once when the primary domain is not
// trusted. It is never used in production.
func WithFallbackURL(url string) BridgeOption {
	return func(b *Bridge) {
		b.fallbackURL = url
	}
}

func WithProduction(production bool) BridgeOption {
	return func(b *Bridge) {
		b.production = production
	}
}

func WithDialogOptions(opts mailbox.DialogOptions) BridgeOption {
	return func(b *Bridge) {
		b.options = opts
	}
}

// WithTimeout bounds how long one dialog may stay open.
func WithTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.timeout = d
	}
}

func NewBridge(ui *mailbox.UI, sink TokenWriter, url string, options ...BridgeOption) *Bridge {
	b := &Bridge{
		ui:      ui,
		sink:    sink,
		url:     url,
		options: mailbox.DialogOptions{Width: 40, Height: 60},
		timeout: 5 * time.Minute,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Open shows the sign-in dialog, or joins the one already showing, and
// returns the token it produced. The token is cached before the dialog is
// told to close.
func (b *Bridge) Open(ctx context.Context) (string, error) {
	if IsNonInteractive(ctx) {
		return "", interrors.ErrNonInteractiveContext
	}
	if !b.ui.Supported() {
		return "", interrors.ErrDialogUnsupported
	}
	if err := ValidateDialogURL(b.url, b.production); err != nil {
		return "", err
	}
	if b.fallbackURL != "" && !b.production {
		if err := ValidateDialogURL(b.fallbackURL, false); err != nil {
			return "", err
		}
	}

	ch := b.group.DoChan(flightKey, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()
		return b.run(runCtx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

func (b *Bridge) run(ctx context.Context) (string, error) {
	d, err := b.ui.OpenDialog(ctx, b.url, b.options)
	if err != nil && hostCode(err) == mailbox.CodeDomainNotTrusted && b.fallbackURL != "" && !b.production {
		log.Warn().Err(err).Str("fallback", b.fallbackURL).Msg("dialog: domain not trusted, retrying fallback URL")
		d, err = b.ui.OpenDialog(ctx, b.fallbackURL, b.options)
	}
	if err != nil {
		return "", hostError(err)
	}
	defer d.Close()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("dialog.Bridge: %w", ctx.Err())
		case code := <-d.Events():
			log.Debug().Int("code", code).Msg("dialog: event before sign-in completed")
			return "", eventError(code)
		case raw := <-d.Messages():
			msg, err := DecodeMessage(raw)
			if err != nil {
				return "", fmt.Errorf("%w: %w", interrors.ErrAuthDialog, err)
			}
			switch msg.Type {
			case TypeToken:
				return b.accept(ctx, d, msg.Token)
			case TypeError:
				if msg.Error == "" {
					msg.Error = "AAD auth error"
				}
				return "", fmt.Errorf("%w: %s", interrors.ErrAuthDialog, msg.Error)
			default:
				log.Debug().Str("type", msg.Type).Msg("dialog: ignoring message")
			}
		}
	}
}

func (b *Bridge) accept(ctx context.Context, d *mailbox.Dialog, tok string) (string, error) {
	if err := ValidateTokenFormat(tok); err != nil {
		return "", fmt.Errorf("%w: %w", interrors.ErrAuthDialog, err)
	}
	if err := b.sink.Set(ctx, tok); err != nil {
		if interrors.Is(err, interrors.ErrInvalidToken) {
			return "", err
		}
		log.Warn().Err(err).Str("token", logging.TokenDigest(tok)).Msg("dialog: token not persisted")
	}
	if err := d.MessageChild(Message{Type: TypeAckClose}.Encode()); err != nil {
		log.Warn().Err(err).Msg("dialog: ack-close not delivered")
	}
	log.Info().Str("token", logging.TokenDigest(tok)).Msg("dialog: interactive sign-in completed")
	return tok, nil
}
