package credentials

import "context"

// Repo is the durable key-value backing of the Store. Get returns
// errors.ErrNotFound when the key is absent.
type Repo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}
