package network

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
)

// Notifier reports service state to systemd. Every call is a no-op when the
// process was not started by systemd.
type Notifier struct {
	log zerolog.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(log zerolog.Logger) *Notifier {
	return &Notifier{log: log.With().Str("component", "systemd").Logger()}
}

// Ready tells systemd that startup has completed.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown has begun.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Watchdog pings the systemd watchdog at half its timeout until ctx is
// cancelled. It returns at once when no watchdog is configured.
func (n *Notifier) Watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) send(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		n.log.Debug().Err(err).Str("state", state).Msg("sd_notify failed")
	}
}
