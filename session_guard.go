package tokenauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/tokenauth/session"
)

// sessionGuard adapts a session.Store to StatefulGuard.
type sessionGuard struct {
	store *session.Store
}

// NewSessionGuard returns a StatefulGuard that logs users into store by
// their numeric id.
func NewSessionGuard(store *session.Store) StatefulGuard {
	return sessionGuard{store: store}
}

func (g sessionGuard) Login(ctx context.Context, user Record, remember bool) error {
	id := userID(user)
	if id == "" {
		return errors.New("session login: user record has no numeric id")
	}
	return g.store.Login(ctx, id, remember)
}

func (g sessionGuard) Logout(ctx context.Context) error {
	return g.store.Logout(ctx)
}

func (g sessionGuard) InvalidateSession(ctx context.Context) error {
	return g.store.InvalidateSession(ctx)
}

func (g sessionGuard) RegenerateToken(ctx context.Context) (string, error) {
	return g.store.RegenerateToken(ctx)
}
