package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	interrors "github.com/jrsteele09/mlredact-addin/internal/errors"
	"github.com/jrsteele09/mlredact-addin/token"
)

// AccountsKey is the store key holding the serialized account list.
const AccountsKey = "mlr_accounts_v1"

var _ Repo = (*StoreRepo)(nil)

type accountRecord struct {
	HomeAccountID string `json:"homeAccountId"`
	Username      string `json:"username"`
	TenantID      string `json:"tenantId"`
	RefreshToken  string `json:"refreshToken"`
}

type accountsDoc struct {
	Active   string          `json:"active"`
	Accounts []accountRecord `json:"accounts"`
}

// StoreRepo keeps accounts in a durable token.Store so a separate process
// (the CLI, another window) can refresh silently with the same account.
type StoreRepo struct {
	store   token.Store
	timeout time.Duration
	lock    sync.Mutex
}

func NewStoreRepo(store token.Store) *StoreRepo {
	return &StoreRepo{store: store, timeout: 5 * time.Second}
}

func (r *StoreRepo) Upsert(account *Account) error {
	if account == nil || account.HomeAccountID == "" {
		return errors.New("account id required")
	}
	return r.update(func(doc *accountsDoc) error {
		rec := accountRecord(*account)
		for i := range doc.Accounts {
			if doc.Accounts[i].HomeAccountID == account.HomeAccountID {
				doc.Accounts[i] = rec
				return nil
			}
		}
		doc.Accounts = append(doc.Accounts, rec)
		return nil
	})
}

func (r *StoreRepo) Delete(homeAccountID string) error {
	return r.update(func(doc *accountsDoc) error {
		for i := range doc.Accounts {
			if doc.Accounts[i].HomeAccountID == homeAccountID {
				doc.Accounts = append(doc.Accounts[:i], doc.Accounts[i+1:]...)
				if doc.Active == homeAccountID {
					doc.Active = ""
				}
				return nil
			}
		}
		return errors.New("not found")
	})
}

func (r *StoreRepo) Active() (*Account, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range doc.Accounts {
		if rec.HomeAccountID == doc.Active {
			a := Account(rec)
			return &a, nil
		}
	}
	if len(doc.Accounts) > 0 {
		a := Account(doc.Accounts[0])
		return &a, nil
	}
	return nil, interrors.ErrNoAccount
}

func (r *StoreRepo) SetActive(homeAccountID string) error {
	return r.update(func(doc *accountsDoc) error {
		for _, rec := range doc.Accounts {
			if rec.HomeAccountID == homeAccountID {
				doc.Active = homeAccountID
				return nil
			}
		}
		return errors.New("not found")
	})
}

func (r *StoreRepo) List() ([]*Account, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	accounts := make([]*Account, 0, len(doc.Accounts))
	for _, rec := range doc.Accounts {
		a := Account(rec)
		accounts = append(accounts, &a)
	}
	return accounts, nil
}

func (r *StoreRepo) update(fn func(doc *accountsDoc) error) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return interrors.Wrapf(err, "refresh.StoreRepo marshal")
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Set(ctx, AccountsKey, string(data)); err != nil {
		return interrors.Wrapf(err, "refresh.StoreRepo Set")
	}
	return nil
}

func (r *StoreRepo) load() (accountsDoc, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	raw, ok, err := r.store.Get(ctx, AccountsKey)
	if err != nil {
		return accountsDoc{}, interrors.Wrapf(err, "refresh.StoreRepo Get")
	}
	var doc accountsDoc
	if !ok || raw == "" {
		return doc, nil
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return accountsDoc{}, interrors.Wrapf(err, "refresh.StoreRepo decode")
	}
	return doc, nil
}
