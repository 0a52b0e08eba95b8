// Package network probes the gateway and restarts the network link. It
// implements logic.Network.
package network

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const protocolICMP = 1

// Transport pings the gateway over unprivileged ICMP and reinitializes the
// link by restarting a systemd unit.
type Transport struct {
	unit string
	log  zerolog.Logger
	id   int
	seq  atomic.Uint32
}

// NewTransport creates a transport that restarts unit on reinitialization.
func NewTransport(unit string, log zerolog.Logger) *Transport {
	return &Transport{
		unit: unit,
		log:  log.With().Str("component", "network").Logger(),
		id:   os.Getpid() & 0xffff,
	}
}

// Probe sends one echo request to gateway and waits up to timeout for the
// reply.
func (t *Transport) Probe(ctx context.Context, gateway string, timeout time.Duration) bool {
	addr, err := net.ResolveIPAddr("ip4", gateway)
	if err != nil {
		t.log.Warn().Err(err).Str("gateway", gateway).Msg("resolve failed")
		return false
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		t.log.Warn().Err(err).Msg("icmp socket unavailable")
		return false
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false
	}

	seq := int(t.seq.Add(1) & 0xffff)
	req, err := echoRequest(t.id, seq)
	if err != nil {
		return false
	}
	if _, err := conn.WriteTo(req, &net.UDPAddr{IP: addr.IP}); err != nil {
		t.log.Debug().Err(err).Str("gateway", gateway).Msg("echo send failed")
		return false
	}

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return false
		}
		if isEchoReply(buf[:n], seq) {
			return true
		}
	}
}

func echoRequest(id, seq int) ([]byte, error) {
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("irrigation")},
	}
	return msg.Marshal(nil)
}

// isEchoReply matches on the sequence number only: datagram sockets rewrite
// the echo identifier.
func isEchoReply(b []byte, seq int) bool {
	msg, err := icmp.ParseMessage(protocolICMP, b)
	if err != nil || msg.Type != ipv4.ICMPTypeEchoReply {
		return false
	}
	echo, ok := msg.Body.(*icmp.Echo)
	return ok && echo.Seq == seq
}
