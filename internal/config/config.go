package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppCfg struct {
	Env                    string `mapstructure:"env"`
	Port                   int    `mapstructure:"port"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

func (a AppCfg) PortString() string { return fmt.Sprintf("%d", a.Port) }

type MongoCfg struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type NATSCfg struct {
	URL string `mapstructure:"url"`
}

type JWTCfg struct {
	Alg           string `mapstructure:"alg"`
	HSSecret      string `mapstructure:"hs_secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type LimitsCfg struct {
	MessagesPerMinute  int `mapstructure:"messages_per_minute"`
	ReactionsPerMinute int `mapstructure:"reactions_per_minute"`
	EditWindowMinutes  int `mapstructure:"edit_window_minutes"`
	SurfacePerMinute   int `mapstructure:"surface_per_minute"`
}

type Config struct {
	App    AppCfg    `mapstructure:"app"`
	Mongo  MongoCfg  `mapstructure:"mongo"`
	Redis  RedisCfg  `mapstructure:"redis"`
	Kafka  KafkaCfg  `mapstructure:"kafka"`
	NATS   NATSCfg   `mapstructure:"nats"`
	JWT    JWTCfg    `mapstructure:"jwt"`
	Limits LimitsCfg `mapstructure:"limits"`

	// derived
	ShutdownTimeout time.Duration
	EditWindow      time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if c.App.ShutdownTimeoutSeconds == 0 {
		c.App.ShutdownTimeoutSeconds = 10
	}
	if c.Limits.MessagesPerMinute == 0 {
		c.Limits.MessagesPerMinute = 30
	}
	if c.Limits.ReactionsPerMinute == 0 {
		c.Limits.ReactionsPerMinute = 10
	}
	if c.Limits.EditWindowMinutes == 0 {
		c.Limits.EditWindowMinutes = 15
	}
	if c.Limits.SurfacePerMinute == 0 {
		c.Limits.SurfacePerMinute = 120
	}
	c.ShutdownTimeout = time.Duration(c.App.ShutdownTimeoutSeconds) * time.Second
	c.EditWindow = time.Duration(c.Limits.EditWindowMinutes) * time.Minute

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.App.Port == 0 {
		return errors.New("app.port missing")
	}
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri missing")
	}
	if c.Mongo.DB == "" {
		return errors.New("mongo.db missing")
	}
	switch strings.ToUpper(c.JWT.Alg) {
	case "RS256":
		if c.JWT.PublicKeyPath == "" {
			return errors.New("jwt.public_key_path required for RS256")
		}
	case "HS256":
		if c.JWT.HSSecret == "" {
			return errors.New("jwt.hs_secret required for HS256")
		}
	default:
		return errors.New("invalid jwt.alg (use RS256 or HS256)")
	}
	return nil
}
