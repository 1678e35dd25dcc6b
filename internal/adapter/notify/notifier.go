// Package notify delivers rendered alert messages through shoutrrr service
// URLs (Telegram, Slack, generic webhooks and others).
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// ErrNoURLs is returned by New when no service URL is configured.
var ErrNoURLs = errors.New("no notification URLs configured")

// Notifier sends one message to every configured service.
// It implements pipeline.Notifier.
type Notifier struct {
	sender   *router.ServiceRouter
	services int
	logger   *slog.Logger
}

// New validates the URLs and builds a sender. A positive timeout bounds each
// delivery.
func New(urls []string, timeout time.Duration, logger *slog.Logger) (*Notifier, error) {
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("create notification sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &Notifier{sender: sender, services: len(urls), logger: logger}, nil
}

// Notify sends the message with the given title. Every service is attempted;
// the returned error joins the individual failures.
func (n *Notifier) Notify(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	var failed []error
	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify %d of %d services failed: %w", len(failed), n.services, errors.Join(failed...))
	}
	n.logger.Debug("notification delivered", "services", n.services, "title", title)
	return nil
}
