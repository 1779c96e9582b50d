package notification

import (
	"context"
	"errors"

	"beer-scanner-backend/internal/model"
)

// ErrNoRoute is returned by a transport that has no way to reach the user,
// such as a user without push subscriptions. The notification then stays in-app only.
var ErrNoRoute = errors.New("no delivery route for user")

// Transport delivers one notification to its user.
type Transport interface {
	Deliver(ctx context.Context, n *model.Notification) error
}

// MultiTransport fans a notification out to several transports. It succeeds
// when at least one transport delivered, fails when every transport that had
// a route failed, and returns ErrNoRoute when none had a route.
type MultiTransport []Transport

func (m MultiTransport) Deliver(ctx context.Context, n *model.Notification) error {
	var errs []error
	delivered := false
	for _, t := range m {
		err := t.Deliver(ctx, n)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrNoRoute):
		default:
			errs = append(errs, err)
		}
	}
	if delivered {
		return nil
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return ErrNoRoute
}
