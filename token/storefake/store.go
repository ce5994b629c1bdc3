package storefake

import (
	"context"
	"sync"

	"github.com/jrsteele09/mlredact-addin/token"
)

var _ token.Store = (*FakeStore)(nil)

// Shared is the backing map several FakeStore views can share, the way the
// task pane and the dialog share browser storage.
type Shared struct {
	lock   sync.Mutex
	values map[string]string
	subs   map[int]subscription
	nextID int
}

type subscription struct {
	key string
	fn  func(string)
}

func NewShared() *Shared {
	return &Shared{
		values: make(map[string]string),
		subs:   make(map[int]subscription),
	}
}

// FakeStore is an in-memory token.Store. SetErr/GetErr inject failures.
type FakeStore struct {
	name   string
	shared *Shared

	lock   sync.Mutex
	SetErr error
	GetErr error
	sets   int
}

func NewFakeStore(name string) *FakeStore {
	return &FakeStore{name: name, shared: NewShared()}
}

// View returns another store over the same shared values.
func (s *Shared) View(name string) *FakeStore {
	return &FakeStore{name: name, shared: s}
}

// Shared exposes the backing values so a second view can be created.
func (f *FakeStore) Shared() *Shared {
	return f.shared
}

func (f *FakeStore) Name() string {
	return f.name
}

func (f *FakeStore) Sets() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.sets
}

func (f *FakeStore) Get(_ context.Context, key string) (string, bool, error) {
	f.lock.Lock()
	err := f.GetErr
	f.lock.Unlock()
	if err != nil {
		return "", false, err
	}

	f.shared.lock.Lock()
	defer f.shared.lock.Unlock()
	v, ok := f.shared.values[key]
	return v, ok, nil
}

func (f *FakeStore) Set(_ context.Context, key, value string) error {
	f.lock.Lock()
	err := f.SetErr
	if err == nil {
		f.sets++
	}
	f.lock.Unlock()
	if err != nil {
		return err
	}
	f.shared.put(key, value, true)
	return nil
}

func (f *FakeStore) Delete(_ context.Context, key string) error {
	f.shared.put(key, "", false)
	return nil
}

func (f *FakeStore) Subscribe(_ context.Context, key string, fn func(string)) (func(), error) {
	f.shared.lock.Lock()
	id := f.shared.nextID
	f.shared.nextID++
	f.shared.subs[id] = subscription{key: key, fn: fn}
	f.shared.lock.Unlock()

	return func() {
		f.shared.lock.Lock()
		delete(f.shared.subs, id)
		f.shared.lock.Unlock()
	}, nil
}

func (s *Shared) put(key, value string, keep bool) {
	s.lock.Lock()
	if keep {
		s.values[key] = value
	} else {
		delete(s.values, key)
	}
	var fns []func(string)
	for _, sub := range s.subs {
		if sub.key == key {
			fns = append(fns, sub.fn)
		}
	}
	s.lock.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
