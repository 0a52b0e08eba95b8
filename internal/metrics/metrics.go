// Package metrics exposes controller counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

const namespace = "irrigation"

// Collector holds the controller metrics on a private registry.
type Collector struct {
	reg *prometheus.Registry

	ticks        prometheus.Counter
	tickErrors   prometheus.Counter
	events       *prometheus.CounterVec
	stationRuns  *prometheus.CounterVec
	runSeconds   *prometheus.CounterVec
	networkFails prometheus.Gauge
	reinits      prometheus.Counter
	busy         prometheus.Gauge
	stationsOn   prometheus.Gauge
	rain         prometheus.Gauge
	enabled      prometheus.Gauge
}

// NewCollector creates and registers the controller metrics.
func NewCollector() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks processed",
		}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_errors_total",
			Help:      "Ticks that reported an error",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Controller events by type",
		}, []string{"type"}),
		stationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_runs_total",
			Help:      "Completed station runs",
		}, []string{"station"}),
		runSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_run_seconds_total",
			Help:      "Seconds of watering per station",
		}, []string{"station"}),
		networkFails: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_fails",
			Help:      "Consecutive failed gateway probes",
		}),
		reinits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "network_reinit_total",
			Help:      "Network reinitialization attempts",
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "program_busy",
			Help:      "1 while any station is scheduled",
		}),
		stationsOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_on",
			Help:      "Outputs currently switched on",
		}),
		rain: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rain_active",
			Help:      "1 while rain is sensed or a rain delay is in force",
		}),
		enabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "enabled",
			Help:      "1 while the controller is enabled",
		}),
	}

	c.reg.MustRegister(
		c.ticks, c.tickErrors, c.events, c.stationRuns, c.runSeconds,
		c.networkFails, c.reinits, c.busy, c.stationsOn, c.rain, c.enabled,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Tick counts one scheduler pass.
func (c *Collector) Tick(err error) {
	c.ticks.Inc()
	if err != nil {
		c.tickErrors.Inc()
	}
}

// Observe counts a batch of controller events.
func (c *Collector) Observe(events []logic.Event) {
	for _, e := range events {
		c.events.WithLabelValues(string(e.Type)).Inc()
		if e.Type == logic.EventStationRun {
			sid := strconv.Itoa(int(e.Station))
			c.stationRuns.WithLabelValues(sid).Inc()
			c.runSeconds.WithLabelValues(sid).Add(e.Duration.Seconds())
		}
	}
}

// Network records the outcome of a network monitor pass.
func (c *Collector) Network(res logic.NetworkResult) {
	if !res.Checked {
		return
	}
	c.networkFails.Set(float64(res.Fails))
	if res.ReinitAttempted {
		c.reinits.Inc()
	}
}

// SetState updates the gauges from a controller snapshot.
func (c *Collector) SetState(s logic.Snapshot) {
	on := 0
	for _, o := range s.Outputs {
		if o {
			on++
		}
	}
	c.stationsOn.Set(float64(on))
	c.busy.Set(boolGauge(s.Status.ProgramBusy))
	c.rain.Set(boolGauge(s.Status.RainDelayed || s.Status.RainSensed))
	c.enabled.Set(boolGauge(s.Status.Enabled))
	c.networkFails.Set(float64(s.Status.NetworkFails))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
