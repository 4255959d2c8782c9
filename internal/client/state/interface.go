package state

import "context"

type Repository interface {
	// Load decodes the document stored under key into v. It reports false
	// and leaves v untouched when the key is absent.
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
