package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	yaml "gopkg.in/yaml.v3"
)

var ErrNotLoaded = errors.New("config has not been loaded")

type ReconnectSetting struct {
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       float64       `yaml:"jitter"`
	MaxAttempts  int           `yaml:"maxAttempts"`
}

type ApiSetting struct {
	URL     string        `yaml:"url" env:"KAIROS_API_URL"`
	Timeout time.Duration `yaml:"timeout"`
}

type WebsocketSetting struct {
	URL          string           `yaml:"url" env:"KAIROS_WS_URL"`
	SkipVerify   bool             `yaml:"skipVerify"`
	PingInterval time.Duration    `yaml:"pingInterval"`
	Reconnect    ReconnectSetting `yaml:"reconnect"`
}

type RedisSetting struct {
	Addr     string `yaml:"addr" env:"KAIROS_REDIS_ADDR"`
	Password string `yaml:"password" env:"KAIROS_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type StoreSetting struct {
	Driver  string       `yaml:"driver" env:"KAIROS_STORE_DRIVER"`
	Redis   RedisSetting `yaml:"redis"`
	Channel string       `yaml:"channel"`
	Publish bool         `yaml:"publish"`
}

type LogSetting struct {
	Enabled bool   `yaml:"enable"`
	Level   string `yaml:"level" env:"KAIROS_LOG_LEVEL"`
	Path    string `yaml:"path"`
}

type configData struct {
	Api       ApiSetting       `yaml:"api"`
	Websocket WebsocketSetting `yaml:"websocket"`
	Store     StoreSetting     `yaml:"store"`
	Log       LogSetting       `yaml:"log"`
}

// Config is the main configuration struct for the kairos client.
type Config struct {
	loaded bool
	data   configData
}

func defaultConfigData() configData {
	return configData{
		Api: ApiSetting{
			URL:     "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Websocket: WebsocketSetting{
			URL:          "ws://localhost:8080",
			PingInterval: 25 * time.Second,
			Reconnect: ReconnectSetting{
				InitialDelay: 5 * time.Second,
				MaxDelay:     time.Minute,
				Multiplier:   2,
				Jitter:       0.2,
				MaxAttempts:  10,
			},
		},
		Store: StoreSetting{
			Driver:  "memory",
			Channel: "market_data",
			Redis: RedisSetting{
				Addr: "localhost:6379",
			},
		},
		Log: LogSetting{
			Enabled: true,
			Level:   "info",
		},
	}
}

// Load parses YAML on top of the defaults. Keys absent from dataBytes keep their default.
func (c *Config) Load(dataBytes []byte) error {
	data := defaultConfigData()
	if err := yaml.Unmarshal(dataBytes, &data); err != nil {
		return err
	}

	if data.Store.Driver != "memory" && data.Store.Driver != "redis" {
		return fmt.Errorf("unknown store driver %q", data.Store.Driver)
	}

	c.data = data
	c.loaded = true
	return nil
}

// ApplyEnv overrides loaded values with KAIROS_* environment variables.
func (c *Config) ApplyEnv() error {
	if !c.loaded {
		return ErrNotLoaded
	}

	if err := env.Parse(&c.data); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}

func (c *Config) GetApiSetting() (ApiSetting, error) {
	if !c.loaded {
		return ApiSetting{}, ErrNotLoaded
	}

	if c.data.Api.URL == "" {
		return ApiSetting{}, errors.New("no api url found in config")
	}

	return c.data.Api, nil
}

func (c *Config) GetWebsocketSetting() (WebsocketSetting, error) {
	if !c.loaded {
		return WebsocketSetting{}, ErrNotLoaded
	}

	if c.data.Websocket.URL == "" {
		return WebsocketSetting{}, errors.New("no websocket url found in config")
	}

	return c.data.Websocket, nil
}

func (c *Config) GetStoreSetting() (StoreSetting, error) {
	if !c.loaded {
		return StoreSetting{}, ErrNotLoaded
	}

	return c.data.Store, nil
}

func (c *Config) GetLogSetting() (LogSetting, error) {
	if !c.loaded {
		return LogSetting{}, ErrNotLoaded
	}

	return c.data.Log, nil
}
