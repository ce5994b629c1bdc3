package token

import "context"

// Store is a durable key/value store visible to every window of the add-in
// (task pane and dialog). Writes from one side must become visible to the
// other; Subscribe delivers values written by any party, "" meaning deleted.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Subscribe(ctx context.Context, key string, fn func(value string)) (cancel func(), err error)
}
