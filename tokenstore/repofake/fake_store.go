package repofake

import (
	"sync"

	"github.com/jrsteele09/go-underwriter/tokenstore"
)

var _ tokenstore.Store = (*FakeStore)(nil)

type FakeStore struct {
	values map[string]string
	lock   sync.RWMutex

	// SetErr, when non-nil, is returned by every Set.
	SetErr error
	failSet map[string]error
}

// FailSet makes every Set of key return err.
func (fs *FakeStore) FailSet(key string, err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.failSet == nil {
		fs.failSet = make(map[string]error)
	}
	fs.failSet[key] = err
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values: make(map[string]string),
	}
}

func (fs *FakeStore) Get(key string) (string, bool) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	v, ok := fs.values[key]
	return v, ok
}

func (fs *FakeStore) Set(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.SetErr != nil {
		return fs.SetErr
	}
	if err := fs.failSet[key]; err != nil {
		return err
	}
	fs.values[key] = value
	return nil
}

func (fs *FakeStore) Remove(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	delete(fs.values, key)
	return nil
}

// Keys returns a snapshot of the stored keys.
func (fs *FakeStore) Keys() []string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	keys := make([]string, 0, len(fs.values))
	for k := range fs.values {
		keys = append(keys, k)
	}
	return keys
}
