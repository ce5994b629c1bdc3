package refreshrepofake

import (
	"errors"
	"sort"
	"sync"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/token/refresh"
)

var _ refresh.Repo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts map[string]*refresh.Account
	order    []string
	active   string
	lock     sync.RWMutex
}

func NewFakeAccountRepo(accounts ...*refresh.Account) *FakeAccountRepo {
	r := &FakeAccountRepo{accounts: make(map[string]*refresh.Account)}
	for _, a := range accounts {
		_ = r.Upsert(a)
	}
	return r
}

func (r *FakeAccountRepo) Upsert(account *refresh.Account) error {
	if account == nil || account.HomeAccountID == "" {
		return errors.New("account id required")
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.accounts[account.HomeAccountID]; !ok {
		r.order = append(r.order, account.HomeAccountID)
	}
	copied := *account
	r.accounts[account.HomeAccountID] = &copied
	return nil
}

func (r *FakeAccountRepo) Delete(homeAccountID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.accounts[homeAccountID]; !ok {
		return errors.New("not found")
	}
	delete(r.accounts, homeAccountID)
	for i, id := range r.order {
		if id == homeAccountID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.active == homeAccountID {
		r.active = ""
	}
	return nil
}

func (r *FakeAccountRepo) Active() (*refresh.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if a, ok := r.accounts[r.active]; ok {
		copied := *a
		return &copied, nil
	}
	if len(r.order) > 0 {
		copied := *r.accounts[r.order[0]]
		return &copied, nil
	}
	return nil, interrors.ErrNoAccount
}

func (r *FakeAccountRepo) SetActive(homeAccountID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.accounts[homeAccountID]; !ok {
		return errors.New("not found")
	}
	r.active = homeAccountID
	return nil
}

func (r *FakeAccountRepo) List() ([]*refresh.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	accounts := make([]*refresh.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		copied := *a
		accounts = append(accounts, &copied)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].HomeAccountID < accounts[j].HomeAccountID
	})
	return accounts, nil
}
