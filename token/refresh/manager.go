// Package refresh coalesces token refreshes so a burst of 401s costs one backend call.
package refresh

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Session performs the actual refresh.
type Session interface {
	RefreshToken(ctx context.Context) bool
}

// Manager shares one in-flight refresh between every caller that asks while it runs. A caller
// arriving after it finished starts a new one.
type Manager struct {
	session Session
	group   singleflight.Group
	timeout time.Duration
}

type ManagerOption func(*Manager)

// WithTimeout bounds each refresh. The refresh is detached from the first caller's context so a
// cancelled request does not fail everyone waiting on it.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

func NewManager(session Session, options ...ManagerOption) *Manager {
	m := &Manager{session: session, timeout: 30 * time.Second}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Manager) Refresh(ctx context.Context) bool {
	v, _, shared := m.group.Do("refresh", func() (interface{}, error) {
		refreshCtx := context.WithoutCancel(ctx)
		if m.timeout > 0 {
			var cancel context.CancelFunc
			refreshCtx, cancel = context.WithTimeout(refreshCtx, m.timeout)
			defer cancel()
		}
		return m.session.RefreshToken(refreshCtx), nil
	})
	ok, _ := v.(bool)
	log.Debug().Bool("ok", ok).Bool("shared", shared).Msg("token refresh")
	return ok
}
