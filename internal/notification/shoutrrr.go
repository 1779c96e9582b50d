package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"go.uber.org/zap"

	"beer-scanner-backend/internal/model"
)

// sendFunc sends one message to one shoutrrr URL.
type sendFunc func(rawURL, message string, params *stypes.Params) []error

// ShoutrrrTransport delivers notifications by email (or any shoutrrr service)
// to users who enabled notifications. "{email}" in the URL template is
// replaced with the recipient address.
type ShoutrrrTransport struct {
	urlTemplate string
	timeout     time.Duration
	send        sendFunc
	logger      *zap.Logger
}

// NewShoutrrrTransport creates a transport for the given URL template.
func NewShoutrrrTransport(urlTemplate string, timeout time.Duration, logger *zap.Logger) *ShoutrrrTransport {
	t := &ShoutrrrTransport{urlTemplate: urlTemplate, timeout: timeout, logger: logger}
	t.send = t.sendShoutrrr
	return t
}

func (t *ShoutrrrTransport) sendShoutrrr(rawURL, message string, params *stypes.Params) []error {
	sender, err := shoutrrr.CreateSender(rawURL)
	if err != nil {
		return []error{err}
	}
	if t.timeout > 0 {
		sender.Timeout = t.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return sender.Send(message, params)
}

func (t *ShoutrrrTransport) Deliver(_ context.Context, n *model.Notification) error {
	u := n.User
	if t.urlTemplate == "" || !u.NotificationEnabled || u.Email == "" {
		return ErrNoRoute
	}

	target := strings.ReplaceAll(t.urlTemplate, "{email}", url.QueryEscape(u.Email))
	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}

	for _, err := range t.send(target, n.Message, &params) {
		if err != nil {
			return fmt.Errorf("email notification %d to user %d: %w", n.ID, u.ID, err)
		}
	}
	t.logger.Debug("sent email notification", zap.Int64("notification_id", n.ID), zap.Int64("user_id", u.ID))
	return nil
}
