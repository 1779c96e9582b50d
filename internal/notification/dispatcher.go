package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"beer-scanner-backend/internal/metrics"
	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/store"
)

// Dispatcher decides which users are told about a menu change. It only
// creates unsent notifications; delivery happens in the WorkerPool sweep.
type Dispatcher struct {
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{metrics: m, logger: logger}
}

// BeerAvailable notifies users tracking each added beer, globally or at this bar.
// A user matching both ways gets a single notification per beer.
func (d *Dispatcher) BeerAvailable(ctx context.Context, st store.Store, bar *model.Bar, added []model.Beer) (int, error) {
	var out []model.Notification
	for _, beer := range added {
		users, err := st.UsersTrackingBeer(ctx, beer.ID, bar.ID)
		if err != nil {
			return 0, err
		}
		for _, u := range users {
			out = append(out, model.Notification{
				UserID:  u.ID,
				BarID:   &bar.ID,
				BeerID:  &beer.ID,
				Title:   "Beer Available",
				Message: fmt.Sprintf("%s is now available at %s", beer.Name, bar.Name),
				Type:    model.NotificationBeerAvailable,
			})
		}
	}
	return d.create(ctx, st, model.NotificationBeerAvailable, out)
}

// MenuChanged notifies users tracking the bar.
func (d *Dispatcher) MenuChanged(ctx context.Context, st store.Store, bar *model.Bar) (int, error) {
	users, err := st.UsersTrackingBar(ctx, bar.ID)
	if err != nil {
		return 0, err
	}
	out := make([]model.Notification, 0, len(users))
	for _, u := range users {
		out = append(out, model.Notification{
			UserID:  u.ID,
			BarID:   &bar.ID,
			Title:   "Menu Changed",
			Message: fmt.Sprintf("The menu at %s has changed", bar.Name),
			Type:    model.NotificationMenuChanged,
		})
	}
	return d.create(ctx, st, model.NotificationMenuChanged, out)
}

// Broadcast sends an administrator message to every user.
func (d *Dispatcher) Broadcast(ctx context.Context, st store.Store, title, message string) (int, error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	out := make([]model.Notification, 0, len(users))
	for _, u := range users {
		out = append(out, model.Notification{
			UserID:  u.ID,
			Title:   title,
			Message: message,
			Type:    model.NotificationSystem,
		})
	}
	return d.create(ctx, st, model.NotificationSystem, out)
}

func (d *Dispatcher) create(ctx context.Context, st store.Store, kind model.NotificationType, ns []model.Notification) (int, error) {
	if err := st.CreateNotifications(ctx, ns); err != nil {
		return 0, err
	}
	d.metrics.AddNotificationsCreated(string(kind), len(ns))
	if len(ns) > 0 {
		d.logger.Debug("created notifications", zap.String("type", string(kind)), zap.Int("count", len(ns)))
	}
	return len(ns), nil
}
