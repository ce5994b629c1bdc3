package mailboxfake

import (
	"sync"

	"github.com/jrsteele09/mlredact-addin/mailbox"
)

var _ mailbox.RawCustomProperties = (*FakeProperties)(nil)

// FakeProperties keeps pending values separate from saved ones, like the host.
type FakeProperties struct {
	lock    sync.Mutex
	pending map[string]any
	saved   map[string]any
	saves   int
	SaveErr *mailbox.HostError
}

func NewFakeProperties() *FakeProperties {
	return &FakeProperties{
		pending: make(map[string]any),
		saved:   make(map[string]any),
	}
}

func (p *FakeProperties) Get(name string) any {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.pending[name]
}

func (p *FakeProperties) Set(name string, value any) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.pending[name] = value
}

func (p *FakeProperties) Remove(name string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.pending, name)
}

func (p *FakeProperties) SaveAsync(cb func(mailbox.AsyncResult[struct{}])) {
	p.lock.Lock()
	if p.SaveErr != nil {
		err := p.SaveErr
		p.lock.Unlock()
		go cb(mailbox.AsyncResult[struct{}]{Status: mailbox.Failed, Error: err})
		return
	}
	p.saved = make(map[string]any, len(p.pending))
	for k, v := range p.pending {
		p.saved[k] = v
	}
	p.saves++
	p.lock.Unlock()
	go cb(mailbox.Ok(struct{}{}))
}

// Saved returns the persisted value of name.
func (p *FakeProperties) Saved(name string) any {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.saved[name]
}

func (p *FakeProperties) Saves() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.saves
}
