package oauth

import (
	"sync"

	"github.com/jrsteele09/go-underwriter/oauthmodel"
	"github.com/rs/zerolog/log"
)

// Dispatcher routes callbacks to the flow the caller activated. Without an active flow the
// fallback handles it, so a callback that outlives its initiator still lands somewhere sane.
type Dispatcher struct {
	mu       sync.Mutex
	active   Flow
	fallback Flow
}

func NewDispatcher(fallback Flow) *Dispatcher {
	return &Dispatcher{fallback: fallback}
}

// Activate makes flow the receiver of the next callbacks until release is called.
func (d *Dispatcher) Activate(flow Flow) (release func()) {
	d.mu.Lock()
	d.active = flow
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		if d.active == flow {
			d.active = nil
		}
		d.mu.Unlock()
	}
}

func (d *Dispatcher) Active() Flow {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil {
		return d.active
	}
	return d.fallback
}

func (d *Dispatcher) Receive(params oauthmodel.CallbackParameters) CallbackAction {
	flow := d.Active()
	log.Debug().Str("flow", flow.Name()).Msg("oauth: callback received")
	return flow.Receive(params)
}
