package oauth

import (
	"sync"

	"github.com/jrsteele09/go-underwriter/oauthmodel"
)

// MessageBus carries messages from callback receivers to listening flows. Delivery is synchronous
// and unfiltered; listeners check the envelope's origin themselves.
type MessageBus struct {
	mu        sync.RWMutex
	listeners map[int]func(oauthmodel.Envelope)
	next      int
}

func NewMessageBus() *MessageBus {
	return &MessageBus{listeners: make(map[int]func(oauthmodel.Envelope))}
}

// Post delivers msg, stamped with origin, to every current listener.
func (b *MessageBus) Post(origin string, msg oauthmodel.Message) {
	b.mu.RLock()
	fns := make([]func(oauthmodel.Envelope), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	env := oauthmodel.Envelope{Origin: origin, Message: msg}
	for _, fn := range fns {
		fn(env)
	}
}

// Listen registers fn until the returned function is called.
func (b *MessageBus) Listen(fn func(oauthmodel.Envelope)) (remove func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Listeners reports how many listeners are registered.
func (b *MessageBus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
