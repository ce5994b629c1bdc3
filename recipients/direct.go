package recipients

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/mlredact-addin/mailbox"
)

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Direct reads the compose fields, polling while the host reports them empty.
type Direct struct {
	Attempts int
	Delay    time.Duration
	Sleep    SleepFunc
}

// NewDirect polls 8 times, 140ms apart.
func NewDirect() *Direct {
	return &Direct{Attempts: 8, Delay: 140 * time.Millisecond, Sleep: sleepCtx}
}

func (d *Direct) Name() string {
	return "direct"
}

func (d *Direct) Read(ctx context.Context, item mailbox.Item) (Set, error) {
	for attempt := 1; attempt <= d.Attempts; attempt++ {
		set, err := readFields(ctx, item)
		if err != nil {
			return Set{}, err
		}
		if !set.Empty() || attempt == d.Attempts {
			return set, nil
		}
		if err := d.Sleep(ctx, d.Delay); err != nil {
			return Set{}, err
		}
	}
	return Set{}, nil
}

func readFields(ctx context.Context, item mailbox.Item) (Set, error) {
	var set Set
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range []struct {
		field mailbox.RecipientField
		dst   *[]string
	}{
		{mailbox.FieldTo, &set.To},
		{mailbox.FieldCc, &set.Cc},
		{mailbox.FieldBcc, &set.Bcc},
	} {
		f := f
		g.Go(func() error {
			values, err := item.Recipients(gctx, f.field)
			if err != nil {
				return err
			}
			*f.dst = Addresses(values)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Set{}, err
	}
	return set, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
