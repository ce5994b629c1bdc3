package refresh

// Account is the signed-in identity the refresher holds. The refresh token is
// the only credential; it is never logged.
type Account struct {
	HomeAccountID string
	Username      string
	TenantID      string
	RefreshToken  string
}

// Repo stores the accounts known to the identity layer. Active returns the
// active account, else the first known one, else ErrNoAccount.
type Repo interface {
	Upsert(account *Account) error
	Delete(homeAccountID string) error
	Active() (*Account, error)
	SetActive(homeAccountID string) error
	List() ([]*Account, error)
}
