package logic

import (
	"context"
	"fmt"
	"time"
)

// NetworkResult describes one pass of the network health monitor.
type NetworkResult struct {
	Checked         bool
	ProbeOK         bool
	Fails           int
	Interval        time.Duration
	ReinitAttempted bool
	Reinitialized   bool
}

// DefaultReinitTimeout bounds a network reinitialization when none is configured.
const DefaultReinitTimeout = 30 * time.Second

// NetworkMonitor probes the gateway with exponential backoff and
// reinitializes the link when probes keep failing or a renewal is due.
type NetworkMonitor struct {
	net Network
}

// NewNetworkMonitor creates a monitor using the given transport.
func NewNetworkMonitor(net Network) *NetworkMonitor {
	return &NetworkMonitor{net: net}
}

// BackoffInterval returns the check interval after the given number of
// consecutive failures: base * 2^fails, with fails clamped to MaxNetworkFails.
func BackoffInterval(base time.Duration, fails int) time.Duration {
	if fails < 0 {
		fails = 0
	}
	if fails > MaxNetworkFails {
		fails = MaxNetworkFails
	}
	return base << uint(fails)
}

// Check runs the monitor if its interval has elapsed. It does nothing while a
// program is running. A failed probe is reported as ErrNetworkUnavailable; it
// is never fatal.
func (m *NetworkMonitor) Check(ctx context.Context, now time.Time, st *State, opts NetworkOptions) (NetworkResult, error) {
	if st.Status.ProgramBusy || opts.CheckInterval <= 0 || m.net == nil {
		return NetworkResult{}, nil
	}
	t, err := epoch(now)
	if err != nil {
		return NetworkResult{}, err
	}

	interval := BackoffInterval(opts.CheckInterval, st.Status.NetworkFails)
	secs := int64(interval / time.Second)
	if st.Network.LastCheckTime != 0 && t <= st.Network.LastCheckTime+secs {
		return NetworkResult{}, nil
	}
	st.Network.LastCheckTime = t
	if st.Network.LastRenewTime == 0 {
		st.Network.LastRenewTime = t
	}

	res := NetworkResult{Checked: true}
	res.ProbeOK = m.probe(ctx, opts)
	if res.ProbeOK {
		st.Status.NetworkFails = 0
	} else if st.Status.NetworkFails < MaxNetworkFails {
		st.Status.NetworkFails++
	}

	renewDue := opts.RenewInterval > 0 &&
		t > st.Network.LastRenewTime+int64(opts.RenewInterval/time.Second)
	if (st.Status.NetworkFails > 2 || renewDue) && opts.AutoReconnect {
		res.ReinitAttempted = true
		if m.reinitialize(ctx, opts) {
			st.Status.NetworkFails = 0
			res.Reinitialized = true
		}
		st.Network.LastRenewTime = t
	}

	res.Fails = st.Status.NetworkFails
	res.Interval = BackoffInterval(opts.CheckInterval, res.Fails)
	if !res.ProbeOK {
		return res, fmt.Errorf("%w: gateway %s did not answer", ErrNetworkUnavailable, opts.Gateway)
	}
	return res, nil
}

func (m *NetworkMonitor) probe(ctx context.Context, opts NetworkOptions) bool {
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.net.Probe(pctx, opts.Gateway, timeout)
}

// reinitialize bounds the reinit so a stuck job cannot stall the tick.
func (m *NetworkMonitor) reinitialize(ctx context.Context, opts NetworkOptions) bool {
	timeout := opts.ReinitTimeout
	if timeout <= 0 {
		timeout = DefaultReinitTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.net.Reinitialize(rctx)
}

// CheckNetwork runs the monitor against the controller's state.
func (c *Controller) CheckNetwork(ctx context.Context, now time.Time, m *NetworkMonitor) (NetworkResult, error) {
	return m.Check(ctx, now, c.state, c.opts.Network)
}
