package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushPayload is the JSON document the service worker receives.
type pushPayload struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	BarID  *int64 `json:"barId,omitempty"`
	BeerID *int64 `json:"beerId,omitempty"`
}

// WebPushTransport pushes notifications to every browser a user subscribed.
type WebPushTransport struct {
	store   store.Store
	options *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWebPushTransport creates a WebPushTransport using the real webpush sender.
func NewWebPushTransport(st store.Store, options *webpush.Options, logger *zap.Logger) *WebPushTransport {
	return &WebPushTransport{store: st, options: options, sender: &WebPushSender{}, logger: logger}
}

func (t *WebPushTransport) Deliver(ctx context.Context, n *model.Notification) error {
	subs, err := t.store.ListPushSubscriptions(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("list push subscriptions for user %d: %w", n.UserID, err)
	}
	if len(subs) == 0 {
		return ErrNoRoute
	}

	payload, err := json.Marshal(pushPayload{
		ID:     n.ID,
		Type:   string(n.Type),
		Title:  n.Title,
		Body:   n.Message,
		BarID:  n.BarID,
		BeerID: n.BeerID,
	})
	if err != nil {
		return err
	}

	delivered := 0
	var lastErr error
	for _, sub := range subs {
		if err := t.send(ctx, sub, payload); err != nil {
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// send sends a single web push notification.
func (t *WebPushTransport) send(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := t.sender.Send(payload, wpSub, t.options)
	if err != nil {
		return fmt.Errorf("send push to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		t.logger.Info("push subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := t.store.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			t.logger.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return fmt.Errorf("push subscription %s expired", sub.Endpoint)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push to %s: status %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}
