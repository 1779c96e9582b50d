// Package telemetry reports failed checks to Sentry.
package telemetry

import (
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"beer-scanner-backend/config"
)

// Reporter sends errors to Sentry. A nil *Reporter is valid and reports nothing.
type Reporter struct {
	hub *sentry.Hub
}

// New returns a Reporter, or nil when no DSN is configured.
func New(cfg config.TelemetryConfig) (*Reporter, error) {
	if cfg.SentryDSN == "" {
		return nil, nil
	}
	return newReporter(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		AttachStacktrace: true,
	})
}

func newReporter(opts sentry.ClientOptions) (*Reporter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	scope := sentry.NewScope()
	scope.SetTag("component", "beer-scanner")
	return &Reporter{hub: sentry.NewHub(client, scope)}, nil
}

// CaptureCheckFailure records a check that ended in FAILED.
func (r *Reporter) CaptureCheckFailure(err error, barID, checkID int64) {
	if r == nil || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("operation", "check")
		scope.SetTag("bar_id", strconv.FormatInt(barID, 10))
		scope.SetTag("check_id", strconv.FormatInt(checkID, 10))
		r.hub.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent.
func (r *Reporter) Flush(timeout time.Duration) {
	if r == nil {
		return
	}
	r.hub.Flush(timeout)
}
