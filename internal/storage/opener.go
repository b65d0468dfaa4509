package storage

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Opener hands out one Store per data directory. Concurrent Open calls for the
// same directory share a single open and all receive the same handle.
type Opener struct {
	opts  []Option
	group singleflight.Group

	mu     sync.Mutex
	stores map[string]*Store
}

// NewOpener returns an Opener that passes opts to every Store it opens.
func NewOpener(opts ...Option) *Opener {
	return &Opener{
		opts:   opts,
		stores: make(map[string]*Store),
	}
}

// Open returns the Store for dataDir, opening and migrating it on first use.
func (o *Opener) Open(ctx context.Context, dataDir string) (*Store, error) {
	if s := o.cached(dataDir); s != nil {
		return s, nil
	}

	ch := o.group.DoChan(dataDir, func() (any, error) {
		if s := o.cached(dataDir); s != nil {
			return s, nil
		}
		s, err := Open(dataDir, o.opts...)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.stores[dataDir] = s
		o.mu.Unlock()
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	}
}

func (o *Opener) cached(dataDir string) *Store {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stores[dataDir]
}

// Close closes every Store handed out so far.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	for dir, s := range o.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(o.stores, dir)
	}
	return errors.Join(errs...)
}
