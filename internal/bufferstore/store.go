// Package bufferstore provides byte-level read access to stored images by
// URI, backed by object storage with an optional Redis read-through cache.
package bufferstore

import "context"

type Object struct {
	Bytes       []byte
	ContentType string
}

type Store interface {
	Get(ctx context.Context, uri string) (Object, error)
}

// Intercept may short-circuit a fetch, e.g. to redirect instead of
// serving bytes. Returning true means the returned object is final.
type Intercept func(ctx context.Context, uri string) (Object, bool, error)

func GetWith(ctx context.Context, store Store, uri string, intercept Intercept) (Object, error) {
	if intercept != nil {
		obj, done, err := intercept(ctx, uri)
		if err != nil {
			return Object{}, err
		}
		if done {
			return obj, nil
		}
	}
	return store.Get(ctx, uri)
}
