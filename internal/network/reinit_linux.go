//go:build linux

package network

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Reinitialize restarts the configured network unit and waits for the job
// to finish.
func (t *Transport) Reinitialize(ctx context.Context) bool {
	if t.unit == "" {
		return false
	}
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		t.log.Warn().Err(err).Msg("systemd connection failed")
		return false
	}
	defer conn.Close()

	done := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, t.unit, "replace", done); err != nil {
		t.log.Warn().Err(err).Str("unit", t.unit).Msg("restart failed")
		return false
	}

	select {
	case result := <-done:
		if result != "done" {
			t.log.Warn().Str("unit", t.unit).Str("result", result).Msg("restart job did not complete")
			return false
		}
		t.log.Info().Str("unit", t.unit).Msg("network restarted")
		return true
	case <-ctx.Done():
		t.log.Warn().Err(ctx.Err()).Str("unit", t.unit).Msg("restart timed out")
		return false
	}
}
