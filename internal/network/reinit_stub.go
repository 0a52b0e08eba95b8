//go:build !linux

package network

import "context"

// Reinitialize is unsupported off Linux.
func (t *Transport) Reinitialize(ctx context.Context) bool {
	t.log.Warn().Str("unit", t.unit).Msg("network restart unsupported on this platform")
	return false
}
