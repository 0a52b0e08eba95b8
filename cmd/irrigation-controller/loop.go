package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/irrigation-controller/internal/config"
	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/metrics"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/programs"
	"github.com/sweeney/irrigation-controller/internal/status"
)

// programSet lets a config reload swap the program store under a running
// controller. Only the run loop touches it.
type programSet struct {
	*programs.Store
}

// multiSink records run log entries to every sink, best-effort.
type multiSink []logic.LogSink

func (m multiSink) Record(ctx context.Context, e logic.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// pruner trims old run log entries.
type pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// daemon owns the controller and everything the run loop feeds it to.
// Optional collaborators may be nil.
type daemon struct {
	ctrl      *logic.Controller
	programs  *programSet
	bank      gpio.Bank
	rain      *logic.RainSensor
	heartbeat *logic.Heartbeat
	monitor   *logic.NetworkMonitor

	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	sink       logic.LogSink
	pruner     pruner
	metrics    *metrics.Collector
	tracker    *status.Tracker

	timing config.Timing
	log    zerolog.Logger
	now    func() time.Time
}

// runLoop drives the controller until a signal arrives or ctx is cancelled.
// Commands and config reloads are applied between ticks.
func (d *daemon) runLoop(ctx context.Context, tick <-chan time.Time, commands <-chan mqtt.Command, configs <-chan *config.Config, sig <-chan os.Signal) error {
	d.refreshStatus(d.now())
	for {
		select {
		case <-ctx.Done():
			d.shutdown(ctx, "CONTEXT")
			return nil

		case s := <-sig:
			d.log.Info().Str("signal", s.String()).Msg("shutting down")
			d.shutdown(ctx, signalName(s))
			return nil

		case cmd := <-commands:
			d.applyCommand(ctx, cmd, d.now())

		case cfg := <-configs:
			d.applyConfig(cfg, d.now())

		case <-tick:
			d.tick(ctx, d.now())
		}
	}
}

func (d *daemon) tick(ctx context.Context, t time.Time) {
	if wet, err := d.bank.ReadRain(); err != nil {
		d.log.Warn().Err(err).Msg("rain sensor read failed")
	} else if state, changed := d.rain.Process(wet, t); changed {
		d.dispatch(ctx, d.ctrl.SetRainSensed(state, t))
	}

	events, err := d.ctrl.Tick(t)
	if d.metrics != nil {
		d.metrics.Tick(err)
	}
	switch {
	case errors.Is(err, logic.ErrTimeNotSet):
		d.log.Debug().Msg("clock not set, tick deferred")
	case err != nil:
		d.log.Warn().Err(err).Msg("tick")
	}
	d.dispatch(ctx, events)

	if d.monitor != nil {
		res, err := d.ctrl.CheckNetwork(ctx, t, d.monitor)
		if d.metrics != nil {
			d.metrics.Network(res)
		}
		if err != nil {
			d.log.Warn().Err(err).Int("fails", res.Fails).Dur("next_check", res.Interval).Msg("network check")
		}
		if res.ReinitAttempted {
			d.log.Info().Bool("ok", res.Reinitialized).Msg("network reinitialized")
		}
	}

	d.refreshStatus(t)

	if uptime, due := d.heartbeat.Check(t, d.timing.Heartbeat); due {
		d.log.Info().Dur("uptime", uptime).Bool("busy", d.ctrl.Busy()).Msg("heartbeat")
		d.refreshPrograms(t)
		d.publishSystem("HEARTBEAT", "", false)
		d.prune(ctx, t)
	}
}

// dispatch fans events out to the log, metrics and MQTT. Run log entries go
// to the log sinks, state changes to the event topic.
func (d *daemon) dispatch(ctx context.Context, events []logic.Event) {
	if len(events) == 0 {
		return
	}
	if d.metrics != nil {
		d.metrics.Observe(events)
	}
	for _, e := range events {
		ev := d.log.Info().Str("event", string(e.Type))
		if e.Station != 0 {
			ev = ev.Int("station", int(e.Station)).Str("name", d.ctrl.Options().Station(e.Station).Name)
		}
		if !e.Program.IsNone() {
			ev = ev.Str("program", e.Program.String())
		}
		if e.Duration > 0 {
			ev = ev.Dur("duration", e.Duration)
		}
		if e.Type == logic.EventRainSensor || e.Type == logic.EventRainDelay {
			ev = ev.Bool("active", e.Active)
		}
		ev.Msg("event")

		if e.Loggable() {
			if d.sink != nil {
				if err := d.sink.Record(ctx, e); err != nil {
					d.log.Warn().Err(err).Str("event", string(e.Type)).Msg("run log write dropped")
				}
			}
			continue
		}
		if d.publisher != nil {
			if err := d.publisher.Publish(e); err != nil {
				d.log.Warn().Err(err).Str("event", string(e.Type)).Msg("publish failed")
			}
		}
	}
}

func (d *daemon) applyCommand(ctx context.Context, cmd mqtt.Command, t time.Time) {
	log := d.log.With().Str("action", string(cmd.Action)).Logger()
	var (
		events []logic.Event
		err    error
	)
	switch cmd.Action {
	case mqtt.ActionRun:
		err = d.ctrl.RunStation(cmd.Station, cmd.Duration(), t)
	case mqtt.ActionStop:
		events, err = d.ctrl.StopStation(cmd.Station, t)
	case mqtt.ActionStopAll:
		events, err = d.ctrl.StopAll(t)
	case mqtt.ActionRunProgram:
		events, err = d.ctrl.RunProgram(cmd.Program, t)
	case mqtt.ActionRainDelay:
		events = d.ctrl.SetRainDelay(cmd.RainDelayUntil(t), t)
	case mqtt.ActionEnable:
		d.ctrl.SetEnabled(cmd.Enabled)
	default:
		err = mqtt.ErrBadCommand
	}
	d.dispatch(ctx, events)
	if err != nil {
		log.Warn().Err(err).Msg("command failed")
		return
	}
	log.Info().Msg("command applied")
	d.refreshStatus(t)
}

// applyConfig switches to a reloaded configuration. A configuration the
// controller refuses leaves the running one in place.
func (d *daemon) applyConfig(cfg *config.Config, t time.Time) {
	opts, err := cfg.Options()
	if err == nil {
		err = opts.Validate()
	}
	var store *programs.Store
	if err == nil {
		store, err = cfg.ProgramStore()
	}
	var timing config.Timing
	if err == nil {
		timing, err = cfg.Timing()
	}
	if err == nil {
		err = d.ctrl.ApplyOptions(opts)
	}
	if err != nil {
		d.log.Warn().Err(err).Msg("config reload rejected")
		return
	}

	d.programs.Store = store
	if timing.Tick != d.timing.Tick {
		d.log.Warn().Dur("tick", timing.Tick).Msg("tick interval change needs a restart")
		timing.Tick = d.timing.Tick
	}
	if timing.RainDebounce != d.timing.RainDebounce {
		d.rain = logic.NewRainSensor(timing.RainDebounce)
	}
	d.timing = timing
	if d.tracker != nil {
		d.tracker.SetConfig(statusConfig(cfg, timing))
	}
	d.refreshPrograms(t)
	d.refreshStatus(t)
	d.log.Info().Int("programs", store.NumPrograms()).Msg("config applied")
}

func (d *daemon) refreshStatus(t time.Time) {
	snap := d.ctrl.Snapshot()
	if d.metrics != nil {
		d.metrics.SetState(snap)
	}
	if d.tracker == nil {
		return
	}
	d.tracker.Update(snap, d.rain.IsBaselined())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func (d *daemon) refreshPrograms(t time.Time) {
	if d.tracker == nil {
		return
	}
	d.tracker.SetPrograms(programInfo(d.programs.Store, t))
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
}

func (d *daemon) prune(ctx context.Context, t time.Time) {
	if d.pruner == nil || d.timing.Retention <= 0 {
		return
	}
	n, err := d.pruner.Prune(ctx, t.Add(-d.timing.Retention))
	if err != nil {
		d.log.Warn().Err(err).Msg("run log prune failed")
		return
	}
	if n > 0 {
		d.log.Info().Int64("removed", n).Msg("run log pruned")
	}
}

// shutdown stops every station and publishes the retained SHUTDOWN event.
func (d *daemon) shutdown(ctx context.Context, reason string) {
	t := d.now()
	events, err := d.ctrl.StopAll(t)
	if err != nil {
		d.log.Warn().Err(err).Msg("stop all on shutdown")
	}
	d.dispatch(ctx, events)
	d.refreshStatus(t)
	d.publishSystem("SHUTDOWN", reason, true)
}

func (d *daemon) publishSystem(event, reason string, retained bool) {
	if d.publisher == nil {
		return
	}
	se := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if d.tracker != nil {
		if d.mqttStatus != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
		se.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	if err := d.publisher.PublishSystem(se); err != nil {
		d.log.Warn().Err(err).Str("event", event).Msg("system event publish failed")
		return
	}
	d.log.Debug().Str("event", event).Msg("published system event")
}

func programInfo(store *programs.Store, t time.Time) []status.Program {
	out := make([]status.Program, 0, store.NumPrograms())
	for i := 0; i < store.NumPrograms(); i++ {
		pid := logic.ProgramID(i)
		p := status.Program{ID: pid, Name: store.Name(pid), Enabled: store.Enabled(pid)}
		if next, ok := store.ProgramNextStart(pid, t); ok {
			p.NextStart = next
		}
		out = append(out, p)
	}
	return out
}

func statusConfig(cfg *config.Config, timing config.Timing) status.Config {
	opts, _ := cfg.Options()
	return status.Config{
		TickMs:          timing.Tick.Milliseconds(),
		RainDebounceMs:  timing.RainDebounce.Milliseconds(),
		HeartbeatMs:     timing.Heartbeat.Milliseconds(),
		Boards:          opts.Boards,
		Sequential:      opts.Sequential,
		WaterPercentage: opts.WaterPercentage,
		MasterStation:   opts.MasterStation,
		UseRainSensor:   opts.UseRainSensor,
		Broker:          cfg.MQTT.Broker,
		HTTPAddr:        cfg.HTTP.Addr,
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
