// Package config loads the daemon configuration from an optional YAML file
// and BUTTON_SENSOR_* environment variables, on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/button-sensor/internal/engine"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
)

const (
	envPrefix  = "BUTTON_SENSOR"
	configType = "yaml"

	keyChip       = "chip"
	keyMode       = "mode"
	keyPoll       = "poll"
	keyQueueSize  = "queue_size"
	keySinkSize   = "sink_size"
	keyMaxButtons = "max_buttons"
	keyMaxPairs   = "max_pairs"
	keyBroker     = "broker"
	keyHeartbeat  = "heartbeat"
	keyHTTP       = "http"
	keyWSBroker   = "ws_broker"
	keyButtons    = "buttons"
	keyPairs      = "pairs"

	keyDefaultsActiveLow       = "defaults.active_low"
	keyDefaultsDebounce        = "defaults.debounce"
	keyDefaultsLongPress       = "defaults.long_press"
	keyDefaultsDoubleClick     = "defaults.double_click"
	keyDefaultsDoubleLongPress = "defaults.double_long_press"
)

// Input modes.
const (
	ModeEdge = "edge"
	ModePoll = "poll"
)

// Button is one configured button. Zero timings inherit from Defaults.
type Button struct {
	Name            string        `mapstructure:"name"`
	Pin             int           `mapstructure:"pin"`
	ActiveLow       *bool         `mapstructure:"active_low"`
	Pull            string        `mapstructure:"pull"`
	Debounce        time.Duration `mapstructure:"debounce"`
	LongPress       time.Duration `mapstructure:"long_press"`
	DoubleClick     time.Duration `mapstructure:"double_click"`
	DoubleLongPress time.Duration `mapstructure:"double_long_press"`
}

// Pair is a combined pair referencing buttons by name.
type Pair struct {
	A                  string        `mapstructure:"a"`
	B                  string        `mapstructure:"b"`
	LongPress          time.Duration `mapstructure:"long_press"`
	SuppressIndividual *bool         `mapstructure:"suppress_individual"`
}

// Defaults apply to buttons that leave a field unset.
type Defaults struct {
	ActiveLow       bool          `mapstructure:"active_low"`
	Debounce        time.Duration `mapstructure:"debounce"`
	LongPress       time.Duration `mapstructure:"long_press"`
	DoubleClick     time.Duration `mapstructure:"double_click"`
	DoubleLongPress time.Duration `mapstructure:"double_long_press"`
}

// Config is the complete daemon configuration.
type Config struct {
	Chip       string        `mapstructure:"chip"`
	Mode       string        `mapstructure:"mode"`
	Poll       time.Duration `mapstructure:"poll"`
	QueueSize  int           `mapstructure:"queue_size"`
	SinkSize   int           `mapstructure:"sink_size"`
	MaxButtons int           `mapstructure:"max_buttons"`
	MaxPairs   int           `mapstructure:"max_pairs"`
	Broker     string        `mapstructure:"broker"`
	Heartbeat  time.Duration `mapstructure:"heartbeat"`
	HTTP       string        `mapstructure:"http"`
	WSBroker   string        `mapstructure:"ws_broker"`
	Defaults   Defaults      `mapstructure:"defaults"`
	Buttons    []Button      `mapstructure:"buttons"`
	Pairs      []Pair        `mapstructure:"pairs"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyChip, gpio.DefaultChip)
	v.SetDefault(keyMode, ModeEdge)
	v.SetDefault(keyPoll, engine.DefaultPollInterval)
	v.SetDefault(keyQueueSize, engine.DefaultQueueSize)
	v.SetDefault(keySinkSize, engine.DefaultSinkSize)
	v.SetDefault(keyMaxButtons, engine.DefaultMaxButtons)
	v.SetDefault(keyMaxPairs, engine.DefaultMaxPairs)
	v.SetDefault(keyBroker, "tcp://192.168.1.200:1883")
	v.SetDefault(keyHeartbeat, 15*time.Minute)
	v.SetDefault(keyHTTP, ":80")
	v.SetDefault(keyWSBroker, "=broker")

	v.SetDefault(keyDefaultsActiveLow, true)
	v.SetDefault(keyDefaultsDebounce, logic.DefaultDebounce)
	v.SetDefault(keyDefaultsLongPress, logic.DefaultLongPress)
	v.SetDefault(keyDefaultsDoubleClick, logic.DefaultDoubleClick)
	v.SetDefault(keyDefaultsDoubleLongPress, logic.DefaultDoubleLongPress)

	// Four buttons wired to pull-up inputs, A and B doubling as a chord.
	v.SetDefault(keyButtons, []map[string]interface{}{
		{"name": "A", "pin": 13},
		{"name": "B", "pin": 12},
		{"name": "C", "pin": 14},
		{"name": "D", "pin": 27},
	})
	v.SetDefault(keyPairs, []map[string]interface{}{
		{"a": "A", "b": "B"},
	})
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides such as BUTTON_SENSOR_BROKER or BUTTON_SENSOR_DEFAULTS_DEBOUNCE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(configType)
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for errors that would only surface at
// registration time, and reports them with the offending names.
func (c *Config) Validate() error {
	if c.Mode != ModeEdge && c.Mode != ModePoll {
		return fmt.Errorf("mode %q: must be %q or %q", c.Mode, ModeEdge, ModePoll)
	}
	if c.Poll <= 0 {
		return errors.New("poll interval must be positive")
	}
	if len(c.Buttons) == 0 {
		return errors.New("no buttons configured")
	}

	names := make(map[string]bool, len(c.Buttons))
	pins := make(map[int]string, len(c.Buttons))
	for i, b := range c.Buttons {
		if b.Name == "" {
			return fmt.Errorf("button %d: name is required", i)
		}
		if names[b.Name] {
			return fmt.Errorf("button %s: duplicate name", b.Name)
		}
		names[b.Name] = true
		if b.Pin < 0 {
			return fmt.Errorf("button %s: pin %d must not be negative", b.Name, b.Pin)
		}
		if other, ok := pins[b.Pin]; ok {
			return fmt.Errorf("button %s: pin %d already used by %s", b.Name, b.Pin, other)
		}
		pins[b.Pin] = b.Name
		switch gpio.Pull(b.Pull) {
		case "", gpio.PullNone, gpio.PullUp, gpio.PullDown:
		default:
			return fmt.Errorf("button %s: unknown pull %q", b.Name, b.Pull)
		}
		if err := c.buttonConfig(b).Validate(); err != nil {
			return fmt.Errorf("button %s: %w", b.Name, err)
		}
	}

	for _, p := range c.Pairs {
		for _, n := range []string{p.A, p.B} {
			if !names[n] {
				return fmt.Errorf("pair %s+%s: unknown button %q", p.A, p.B, n)
			}
		}
		if p.A == p.B {
			return fmt.Errorf("pair %s+%s: buttons must differ", p.A, p.B)
		}
		if p.LongPress < 0 {
			return fmt.Errorf("pair %s+%s: long press must not be negative", p.A, p.B)
		}
	}
	return nil
}

func (c *Config) buttonConfig(b Button) logic.ButtonConfig {
	bc := logic.ButtonConfig{
		ID:              logic.ButtonID(b.Pin),
		Name:            b.Name,
		ActiveLow:       c.Defaults.ActiveLow,
		Debounce:        orDefault(b.Debounce, c.Defaults.Debounce),
		LongPress:       orDefault(b.LongPress, c.Defaults.LongPress),
		DoubleClick:     orDefault(b.DoubleClick, c.Defaults.DoubleClick),
		DoubleLongPress: orDefault(b.DoubleLongPress, c.Defaults.DoubleLongPress),
	}
	if b.ActiveLow != nil {
		bc.ActiveLow = *b.ActiveLow
	}
	return bc
}

func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

// ButtonConfigs returns the engine configuration of every button in file order.
func (c *Config) ButtonConfigs() []logic.ButtonConfig {
	out := make([]logic.ButtonConfig, len(c.Buttons))
	for i, b := range c.Buttons {
		out[i] = c.buttonConfig(b)
	}
	return out
}

// Lines returns the GPIO line request for every button. An unset pull
// follows the polarity: pull-up for active-low buttons, pull-down otherwise.
func (c *Config) Lines() []gpio.Line {
	out := make([]gpio.Line, len(c.Buttons))
	for i, b := range c.Buttons {
		pull := gpio.Pull(b.Pull)
		if pull == "" {
			pull = gpio.PullDown
			if c.buttonConfig(b).ActiveLow {
				pull = gpio.PullUp
			}
		}
		out[i] = gpio.Line{Button: logic.ButtonID(b.Pin), Pull: pull}
	}
	return out
}

// PairConfigs resolves pair names to button identifiers. An unset combined
// long press threshold inherits the first button's long press; unset
// suppression defaults to on.
func (c *Config) PairConfigs() ([]logic.PairConfig, error) {
	byName := make(map[string]logic.ButtonConfig, len(c.Buttons))
	for _, b := range c.Buttons {
		byName[b.Name] = c.buttonConfig(b)
	}

	out := make([]logic.PairConfig, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		a, okA := byName[p.A]
		b, okB := byName[p.B]
		if !okA || !okB {
			return nil, fmt.Errorf("pair %s+%s: unknown button", p.A, p.B)
		}
		pc := logic.PairConfig{
			A:                  a.ID,
			B:                  b.ID,
			LongPress:          orDefault(p.LongPress, a.LongPress),
			SuppressIndividual: true,
		}
		if p.SuppressIndividual != nil {
			pc.SuppressIndividual = *p.SuppressIndividual
		}
		out = append(out, pc)
	}
	return out, nil
}

// Names maps button identifiers to names.
func (c *Config) Names() map[logic.ButtonID]string {
	out := make(map[logic.ButtonID]string, len(c.Buttons))
	for _, b := range c.Buttons {
		out[logic.ButtonID(b.Pin)] = b.Name
	}
	return out
}

// EngineConfig returns the engine limits.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxButtons:   c.MaxButtons,
		MaxPairs:     c.MaxPairs,
		QueueSize:    c.QueueSize,
		SinkSize:     c.SinkSize,
		PollInterval: c.Poll,
	}
}
