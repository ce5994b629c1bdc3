package sendflow

import (
	"context"
	"strconv"
	"sync"

	"github.com/jrsteele09/mlredact-addin/mailbox"
)

// Custom property names holding SendAttemptState on the compose item.
const (
	BypassKey      = "mlr_bypass_once"
	FingerprintKey = "mlr_fpr_v1"
	FailureKey     = "mlr_fail_count"
)

// SendAttemptState is persisted per compose item between send attempts.
type SendAttemptState struct {
	Bypass      bool
	Fingerprint string
	Failures    int
}

// HasBypass reports whether a confirmed resend may skip processing.
func (s SendAttemptState) HasBypass() bool {
	return s.Bypass && s.Fingerprint != ""
}

func (s *SendAttemptState) clearBypass() {
	s.Bypass = false
	s.Fingerprint = ""
}

func LoadState(p *mailbox.Properties) SendAttemptState {
	failures, err := strconv.Atoi(p.Get(FailureKey))
	if err != nil || failures < 0 {
		failures = 0
	}
	return SendAttemptState{
		Bypass:      p.Get(BypassKey) == "1",
		Fingerprint: p.Get(FingerprintKey),
		Failures:    failures,
	}
}

// Write sets the properties; the caller saves them.
func (s SendAttemptState) Write(p *mailbox.Properties) {
	bypass := ""
	if s.Bypass {
		bypass = "1"
	}
	p.Set(BypassKey, bypass)
	p.Set(FingerprintKey, s.Fingerprint)
	p.Set(FailureKey, strconv.Itoa(s.Failures))
}

// stateStore loads and saves SendAttemptState for one item.
type stateStore interface {
	Load() SendAttemptState
	Save(ctx context.Context, s SendAttemptState) error
}

type propsStore struct {
	props *mailbox.Properties
}

func (p propsStore) Load() SendAttemptState {
	return LoadState(p.props)
}

func (p propsStore) Save(ctx context.Context, s SendAttemptState) error {
	s.Write(p.props)
	return p.props.Save(ctx)
}

// memStore backs items whose custom properties cannot be loaded, so the
// failure counter still works within this process.
type memStore struct {
	lock  sync.Mutex
	state SendAttemptState
}

func (m *memStore) Load() SendAttemptState {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

func (m *memStore) Save(_ context.Context, s SendAttemptState) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.state = s
	return nil
}
