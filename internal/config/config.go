// Package config loads the controller configuration from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/logging"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/programs"
)

// Config is the complete configuration file.
type Config struct {
	Location   string             `yaml:"location"`
	Controller ControllerConfig   `yaml:"controller"`
	Stations   []StationConfig    `yaml:"stations"`
	Programs   []programs.Program `yaml:"programs"`
	GPIO       GPIOConfig         `yaml:"gpio"`
	MQTT       MQTTConfig         `yaml:"mqtt"`
	Network    NetworkConfig      `yaml:"network"`
	Storage    StorageConfig      `yaml:"storage"`
	HTTP       HTTPConfig         `yaml:"http"`
	Log        logging.Config     `yaml:"log"`
}

// ControllerConfig holds the scheduling options.
type ControllerConfig struct {
	Boards                 int    `yaml:"boards"`
	Sequential             *bool  `yaml:"sequential"`
	WaterPercentage        *int   `yaml:"water_percentage"`
	StationDelaySeconds    int64  `yaml:"station_delay_seconds"`
	MasterStation          int    `yaml:"master_station"`
	MasterOnAdjustSeconds  int64  `yaml:"master_on_adjust_seconds"`
	MasterOffAdjustSeconds int64  `yaml:"master_off_adjust_seconds"`
	UseRainSensor          bool   `yaml:"use_rain_sensor"`
	RainDebounce           string `yaml:"rain_debounce"`
	RelayPulse             string `yaml:"relay_pulse"`
	Tick                   string `yaml:"tick"`
	Heartbeat              string `yaml:"heartbeat"`
}

// StationConfig overrides the attributes of one station.
type StationConfig struct {
	ID             int    `yaml:"id"`
	Name           string `yaml:"name"`
	TriggersMaster *bool  `yaml:"triggers_master"`
	IgnoresRain    bool   `yaml:"ignores_rain"`
	ActivatesRelay bool   `yaml:"activates_relay"`
	Disabled       bool   `yaml:"disabled"`
}

// GPIOConfig maps the controller onto GPIO lines.
type GPIOConfig struct {
	Chip             string `yaml:"chip"`
	StationPins      []int  `yaml:"station_pins"`
	RelayPin         *int   `yaml:"relay_pin"`
	RainPin          *int   `yaml:"rain_pin"`
	OutputsActiveLow *bool  `yaml:"outputs_active_low"`
	RainActiveLow    *bool  `yaml:"rain_active_low"`
}

// MQTTConfig configures the broker connection. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker       string  `yaml:"broker"`
	Prefix       string  `yaml:"prefix"`
	ClientID     string  `yaml:"client_id"`
	BufferSize   int     `yaml:"buffer_size"`
	CommandRate  float64 `yaml:"command_rate"`
	CommandBurst int     `yaml:"command_burst"`
}

// NetworkConfig configures the network health monitor. An empty gateway
// disables it.
type NetworkConfig struct {
	Gateway       string `yaml:"gateway"`
	CheckInterval string `yaml:"check_interval"`
	RenewInterval string `yaml:"renew_interval"`
	ProbeTimeout  string `yaml:"probe_timeout"`
	ReinitTimeout string `yaml:"reinit_timeout"`
	AutoReconnect bool   `yaml:"auto_reconnect"`
	// Unit is the systemd unit restarted to reinitialize the network.
	Unit string `yaml:"unit"`
}

// StorageConfig configures the run log. An empty path disables it.
type StorageConfig struct {
	Path      string `yaml:"path"`
	Retention string `yaml:"retention"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Timing holds the parsed run loop intervals.
type Timing struct {
	Tick         time.Duration
	RainDebounce time.Duration
	Heartbeat    time.Duration
	Retention    time.Duration
}

// Defaults for optional settings.
const (
	DefaultTick          = time.Second
	DefaultRainDebounce  = 5 * time.Second
	DefaultHeartbeat     = 15 * time.Minute
	DefaultCheckInterval = time.Minute
	DefaultProbeTimeout  = time.Second
	DefaultRetention     = 90 * 24 * time.Hour
	DefaultChip          = "gpiochip0"
	DefaultNetworkUnit   = "systemd-networkd.service"
)

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a configuration document. Unknown keys are
// rejected.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", logic.ErrConfigInvalid, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Controller.Boards == 0 {
		c.Controller.Boards = 1
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = DefaultChip
	}
	if c.Network.Unit == "" {
		c.Network.Unit = DefaultNetworkUnit
	}
}

// Validate checks every section and reports the first problem as
// logic.ErrConfigInvalid.
func (c *Config) Validate() error {
	if _, err := c.TimeLocation(); err != nil {
		return err
	}
	opts, err := c.Options()
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	for _, st := range c.Stations {
		if st.ID < 1 || st.ID > opts.NumStations() {
			return fmt.Errorf("%w: station %d out of range", logic.ErrConfigInvalid, st.ID)
		}
	}
	if _, err := c.ProgramStore(); err != nil {
		return err
	}
	if _, err := c.Timing(); err != nil {
		return err
	}
	if n := len(c.Pins().Stations); n != opts.NumStations() {
		return fmt.Errorf("%w: %d station pins for %d stations", logic.ErrConfigInvalid, n, opts.NumStations())
	}
	if c.MQTT.BufferSize < 0 || c.MQTT.CommandRate < 0 {
		return fmt.Errorf("%w: mqtt buffer size and command rate must be >= 0", logic.ErrConfigInvalid)
	}
	return nil
}

// TimeLocation returns the zone program start times are evaluated in.
func (c *Config) TimeLocation() (*time.Location, error) {
	if c.Location == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: location %q: %v", logic.ErrConfigInvalid, c.Location, err)
	}
	return loc, nil
}

// Options converts the file into controller options.
func (c *Config) Options() (logic.Options, error) {
	cc := c.Controller
	relayPulse, err := ParseDurationField("controller.relay_pulse", cc.RelayPulse)
	if err != nil {
		return logic.Options{}, err
	}
	network, err := c.networkOptions()
	if err != nil {
		return logic.Options{}, err
	}

	opts := logic.Options{
		Boards:          cc.Boards,
		Sequential:      true,
		WaterPercentage: 100,
		StationDelay:    cc.StationDelaySeconds,
		MasterStation:   logic.StationID(cc.MasterStation),
		MasterOnAdjust:  cc.MasterOnAdjustSeconds,
		MasterOffAdjust: cc.MasterOffAdjustSeconds,
		UseRainSensor:   cc.UseRainSensor,
		RelayPulse:      relayPulse,
		Network:         network,
	}
	if cc.Sequential != nil {
		opts.Sequential = *cc.Sequential
	}
	if cc.WaterPercentage != nil {
		opts.WaterPercentage = *cc.WaterPercentage
	}
	if cc.Boards >= 1 && cc.Boards <= logic.MaxBoards {
		opts.Stations = logic.DefaultStations(cc.Boards)
		for _, sc := range c.Stations {
			i := sc.ID - 1
			if i < 0 || i >= len(opts.Stations) {
				continue
			}
			st := &opts.Stations[i]
			st.Name = sc.Name
			if sc.TriggersMaster != nil {
				st.TriggersMaster = *sc.TriggersMaster
			}
			st.IgnoresRain = sc.IgnoresRain
			st.ActivatesRelay = sc.ActivatesRelay
			st.Disabled = sc.Disabled
		}
	}
	return opts, nil
}

func (c *Config) networkOptions() (logic.NetworkOptions, error) {
	n := c.Network
	if n.Gateway == "" {
		return logic.NetworkOptions{}, nil
	}
	check, err := ParseDurationOrDefault("network.check_interval", n.CheckInterval, DefaultCheckInterval)
	if err != nil {
		return logic.NetworkOptions{}, err
	}
	renew, err := ParseDurationField("network.renew_interval", n.RenewInterval)
	if err != nil {
		return logic.NetworkOptions{}, err
	}
	timeout, err := ParseDurationOrDefault("network.probe_timeout", n.ProbeTimeout, DefaultProbeTimeout)
	if err != nil {
		return logic.NetworkOptions{}, err
	}
	reinit, err := ParseDurationOrDefault("network.reinit_timeout", n.ReinitTimeout, logic.DefaultReinitTimeout)
	if err != nil {
		return logic.NetworkOptions{}, err
	}
	return logic.NetworkOptions{
		Gateway:       n.Gateway,
		CheckInterval: check,
		RenewInterval: renew,
		ProbeTimeout:  timeout,
		ReinitTimeout: reinit,
		AutoReconnect: n.AutoReconnect,
	}, nil
}

// ProgramStore compiles the program list.
func (c *Config) ProgramStore() (*programs.Store, error) {
	loc, err := c.TimeLocation()
	if err != nil {
		return nil, err
	}
	return programs.NewStore(c.Programs, c.Controller.Boards*logic.StationsPerBoard, loc)
}

// Timing parses the run loop intervals.
func (c *Config) Timing() (Timing, error) {
	var (
		t   Timing
		err error
	)
	if t.Tick, err = ParseDurationOrDefault("controller.tick", c.Controller.Tick, DefaultTick); err != nil {
		return Timing{}, err
	}
	if t.RainDebounce, err = ParseDurationOrDefault("controller.rain_debounce", c.Controller.RainDebounce, DefaultRainDebounce); err != nil {
		return Timing{}, err
	}
	if t.Heartbeat, err = ParseDurationOrDefault("controller.heartbeat", c.Controller.Heartbeat, DefaultHeartbeat); err != nil {
		return Timing{}, err
	}
	if t.Retention, err = ParseDurationOrDefault("storage.retention", c.Storage.Retention, DefaultRetention); err != nil {
		return Timing{}, err
	}
	return t, nil
}

// Pins returns the GPIO layout, falling back to the single board default.
func (c *Config) Pins() gpio.Pins {
	p := gpio.DefaultPins()
	if len(c.GPIO.StationPins) > 0 {
		p.Stations = append([]int(nil), c.GPIO.StationPins...)
	}
	if c.GPIO.RelayPin != nil {
		p.Relay = *c.GPIO.RelayPin
	}
	if c.GPIO.RainPin != nil {
		p.Rain = *c.GPIO.RainPin
	}
	if c.GPIO.OutputsActiveLow != nil {
		p.OutputsActiveLow = *c.GPIO.OutputsActiveLow
	}
	if c.GPIO.RainActiveLow != nil {
		p.RainActiveLow = *c.GPIO.RainActiveLow
	}
	return p
}

// MQTTPublisher returns the publisher settings.
func (c *Config) MQTTPublisher() mqtt.Config {
	return mqtt.Config{
		Broker:       c.MQTT.Broker,
		Prefix:       c.MQTT.Prefix,
		ClientID:     c.MQTT.ClientID,
		BufferSize:   c.MQTT.BufferSize,
		CommandRate:  c.MQTT.CommandRate,
		CommandBurst: c.MQTT.CommandBurst,
	}
}
