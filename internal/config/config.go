package config

import (
	"fmt"

	"github.com/spf13/viper"

	"pump-console/internal/auth"
)

// Client is the console runtime configuration.
type Client struct {
	Server struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"server"`
	Login struct {
		EmployeeID string `mapstructure:"employee_id"`
		Password   string `mapstructure:"password"`
	} `mapstructure:"login"`
	Metrics struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"metrics"`
}

// Simulator is the authority simulator configuration.
type Simulator struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Auth       auth.Config          `mapstructure:"auth"`
	Thresholds map[string]Threshold `mapstructure:"thresholds"`
}

// Threshold bounds one metric; readings outside [Min, Max] raise an
// alert.
type Threshold struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// LoadClient reads console.yaml from path, with env overrides and
// defaults for anything missing. A missing file is not fatal; the
// defaults carry.
func LoadClient(path string) (*Client, error) {
	v := viper.New()
	v.SetConfigName("console")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("console")
	v.AutomaticEnv()

	v.SetDefault("server.url", "http://localhost:5000")
	v.SetDefault("metrics.port", 9090)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: reading console config: %w", err)
		}
	}

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding console config: %w", err)
	}
	return &cfg, nil
}

// LoadSimulator reads simulator.yaml from path, with env overrides and
// defaults for anything missing.
func LoadSimulator(path string) (*Simulator, error) {
	v := viper.New()
	v.SetConfigName("simulator")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("simulator")
	v.AutomaticEnv()

	v.SetDefault("server.port", 5000)
	v.SetDefault("auth.jwt_secret", "pump-console-dev-secret")
	v.SetDefault("auth.jwt_expiration", 480)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: reading simulator config: %w", err)
		}
	}

	var cfg Simulator
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding simulator config: %w", err)
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = DefaultThresholds()
	}
	return &cfg, nil
}

// DefaultThresholds are the stock per-metric alert bounds.
func DefaultThresholds() map[string]Threshold {
	return map[string]Threshold{
		"pressure":    {Min: 50, Max: 80},
		"temperature": {Min: 0, Max: 90},
		"flow_rate":   {Min: 180, Max: 500},
		"vibration":   {Min: 0, Max: 2.0},
		"efficiency":  {Min: 85, Max: 100},
	}
}
