package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/irrigation-controller/internal/config"
	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/logging"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/metrics"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/network"
	"github.com/sweeney/irrigation-controller/internal/status"
	"github.com/sweeney/irrigation-controller/internal/storage"
	"github.com/sweeney/irrigation-controller/internal/web"
)

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log, os.Stdout)

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	timing, err := cfg.Timing()
	if err != nil {
		return err
	}
	store, err := cfg.ProgramStore()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bank, err := gpio.NewRealBank(cfg.GPIO.Chip, cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := bank.Close(); err != nil {
			log.Warn().Err(err).Msg("gpio close")
		}
	}()

	ps := &programSet{Store: store}
	ctrl, err := logic.NewController(opts, ps, bank)
	if err != nil {
		return err
	}

	start := time.Now()
	d := &daemon{
		ctrl:      ctrl,
		programs:  ps,
		bank:      bank,
		rain:      logic.NewRainSensor(timing.RainDebounce),
		heartbeat: logic.NewHeartbeat(start),
		metrics:   metrics.NewCollector(),
		tracker:   status.NewTracker(start, statusConfig(cfg, timing)),
		timing:    timing,
		log:       log,
		now:       time.Now,
	}
	var sinks multiSink

	var runLog *storage.RunLog
	if cfg.Storage.Path != "" {
		runLog, err = storage.Open(ctx, cfg.Storage.Path, log)
		if err != nil {
			// scheduling must go on without a run log
			log.Error().Err(err).Msg("run log disabled")
		} else {
			defer runLog.Close()
			sinks = append(sinks, runLog)
			d.pruner = runLog
		}
	}

	var commands chan mqtt.Command
	if cfg.MQTT.Broker != "" {
		commands = make(chan mqtt.Command, 16)
		pub, err := mqtt.NewRealPublisher(cfg.MQTTPublisher(), commands, log)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer pub.Close()
		d.publisher = pub
		d.mqttStatus = pub
		sinks = append(sinks, pub)
	}
	if len(sinks) > 0 {
		d.sink = sinks
	}

	if opts.Network.Gateway != "" {
		d.monitor = logic.NewNetworkMonitor(network.NewTransport(cfg.Network.Unit, log))
	}

	d.refreshPrograms(start)
	d.refreshStatus(start)
	d.publishSystem("STARTUP", "", true)

	if cfg.HTTP.Addr != "" {
		webOpts := web.Options{Metrics: d.metrics.Handler()}
		if runLog != nil {
			webOpts.RunLog = runLog
		}
		srv := web.New(cfg.HTTP.Addr, d.tracker, webOpts)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server")
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			srv.Shutdown(sctx)
		}()
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	watcher := config.NewWatcher(configPath, log)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("config watcher stopped")
		}
	}()

	notifier := network.NewNotifier(log)
	go notifier.Watchdog(ctx)
	notifier.Ready()
	defer notifier.Stopping()

	logStartup(log, cfg, opts, timing, store.NumPrograms())

	ticker := time.NewTicker(timing.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return d.runLoop(ctx, ticker.C, commands, watcher.Updates(), sigCh)
}

func logStartup(log zerolog.Logger, cfg *config.Config, opts logic.Options, timing config.Timing, programs int) {
	log.Info().
		Int("boards", opts.Boards).
		Bool("sequential", opts.Sequential).
		Int("water_percentage", opts.WaterPercentage).
		Int("master", int(opts.MasterStation)).
		Int("programs", programs).
		Dur("tick", timing.Tick).
		Dur("heartbeat", timing.Heartbeat).
		Str("broker", cfg.MQTT.Broker).
		Str("gateway", opts.Network.Gateway).
		Msg("started")
}
