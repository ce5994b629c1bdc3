package recipients

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/mlredact-addin/internal/logging"
	"github.com/jrsteele09/mlredact-addin/mailbox"
)

// Strategy is one way of reading recipients. An empty Set with a nil error
// means the strategy worked but saw nothing.
type Strategy interface {
	Name() string
	Read(ctx context.Context, item mailbox.Item) (Set, error)
}

// Reader tries its strategies in order and remembers the last non-empty
// result, which it returns when every strategy fails or comes back empty.
type Reader struct {
	strategies []Strategy

	lock sync.RWMutex
	last Set
}

func NewReader(strategies ...Strategy) *Reader {
	return &Reader{strategies: strategies}
}

// Read never fails; the worst case is the cached result.
func (r *Reader) Read(ctx context.Context, item mailbox.Item) Set {
	for _, s := range r.strategies {
		set, err := s.Read(ctx, item)
		if err != nil {
			log.Warn().Err(err).Str("strategy", s.Name()).Msg("recipients: strategy failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if set.Empty() {
			log.Debug().Str("strategy", s.Name()).Msg("recipients: strategy returned no recipients")
			continue
		}
		r.remember(set)
		log.Debug().
			Str("strategy", s.Name()).
			Strs("to", logging.MaskEmails(set.To)).
			Int("cc", len(set.Cc)).
			Int("bcc", len(set.Bcc)).
			Msg("recipients: read")
		return set.Clone()
	}
	last := r.Last()
	if !last.Empty() {
		log.Info().Msg("recipients: using last known recipients")
	}
	return last
}

// Last returns the cached result.
func (r *Reader) Last() Set {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.last.Clone()
}

func (r *Reader) remember(set Set) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.last = set.Clone()
}
