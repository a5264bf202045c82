// Package config loads SkillPath settings from a YAML file, environment
// variables and built-in defaults using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/HerbHall/skillpath/internal/auth"
	"github.com/HerbHall/skillpath/internal/catalog"
	"github.com/HerbHall/skillpath/internal/live"
	"github.com/HerbHall/skillpath/internal/mqttbridge"
	"github.com/HerbHall/skillpath/internal/skillboost"
	"github.com/HerbHall/skillpath/internal/tools"
)

// EnvPrefix prefixes every environment override, e.g. SKILLPATH_SERVER_PORT.
const EnvPrefix = "SKILLPATH"

// Config is a read-only view over a Viper instance. A Config built from a
// nil Viper returns zero values.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil v yields an empty configuration.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

func (c *Config) GetString(key string) string          { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *Config) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *Config) IsSet(key string) bool                { return c.v.IsSet(key) }

// Sub returns the subtree at key. A missing key yields an empty Config, never nil.
func (c *Config) Sub(key string) *Config {
	return New(c.v.Sub(key))
}

// Unmarshal decodes the whole configuration into target.
func (c *Config) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

// UnmarshalKey decodes the subtree at key into target.
func (c *Config) UnmarshalKey(key string, target any) error {
	return c.v.UnmarshalKey(key, target)
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	MaxSessions       int           `mapstructure:"max_sessions"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// StoreSettings configures the search log database. An empty path disables it.
type StoreSettings struct {
	Path string `mapstructure:"path"`
}

// Settings is the fully decoded configuration.
type Settings struct {
	Server     ServerSettings    `mapstructure:"server"`
	Log        LogSettings       `mapstructure:"log"`
	Store      StoreSettings     `mapstructure:"store"`
	Auth       auth.Config       `mapstructure:"auth"`
	Live       live.Config       `mapstructure:"live"`
	Catalog    catalog.Config    `mapstructure:"catalog"`
	SkillBoost skillboost.Config `mapstructure:"skillboost"`
	Tools      tools.Config      `mapstructure:"tools"`
	MQTT       mqttbridge.Config `mapstructure:"mqtt"`
}

// Settings decodes the configuration into a Settings value.
func (c *Config) Settings() (Settings, error) {
	var s Settings
	if err := c.v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Load reads configuration from path, or from ./skillpath.yaml when path is
// empty and that file exists. Environment variables override file values and
// defaults fill the rest.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return New(v), nil
	}

	v.SetConfigName("skillpath")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}

// SetDefaults registers every known key so that environment overrides are
// visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_sessions", 100)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("store.path", "skillpath.db")

	a := auth.DefaultConfig()
	v.SetDefault("auth.jwt_secret", a.JWTSecret)
	v.SetDefault("auth.issuer", a.Issuer)

	l := live.DefaultConfig()
	v.SetDefault("live.origin_patterns", l.OriginPatterns)
	v.SetDefault("live.read_limit", l.ReadLimit)
	v.SetDefault("live.write_timeout", l.WriteTimeout)

	c := catalog.DefaultConfig()
	v.SetDefault("catalog.fetch_timeout", c.FetchTimeout)
	v.SetDefault("catalog.fetch_on_launch", c.FetchOnLaunch)
	v.SetDefault("catalog.file", c.File)
	v.SetDefault("catalog.selector.max_total", c.Selector.MaxTotal)
	v.SetDefault("catalog.selector.category", c.Selector.Category)
	v.SetDefault("catalog.selector.max_of_category", c.Selector.MaxOfCategory)
	v.SetDefault("catalog.resolver.threshold", c.Resolver.Threshold)
	v.SetDefault("catalog.suggestions", c.Suggestions)

	s := skillboost.DefaultConfig()
	v.SetDefault("skillboost.base_url", s.BaseURL)
	v.SetDefault("skillboost.catalog_id", s.CatalogID)
	v.SetDefault("skillboost.per_page", s.PerPage)
	v.SetDefault("skillboost.access_key", s.AccessKey)
	v.SetDefault("skillboost.secret_key", s.SecretKey)
	v.SetDefault("skillboost.path_url", s.PathURL)
	v.SetDefault("skillboost.path_topic", s.PathTopic)
	v.SetDefault("skillboost.path_level", s.PathLevel)
	v.SetDefault("skillboost.timeout", s.Timeout)
	v.SetDefault("skillboost.rate_per_second", s.RatePerSecond)
	v.SetDefault("skillboost.burst", s.Burst)

	t := tools.DefaultConfig()
	v.SetDefault("tools.skills", t.Skills)
	v.SetDefault("tools.call_timeout", t.CallTimeout)
	v.SetDefault("tools.max_concurrency", t.MaxConcurrency)

	m := mqttbridge.DefaultConfig()
	v.SetDefault("mqtt.broker", m.Broker)
	v.SetDefault("mqtt.client_id", m.ClientID)
	v.SetDefault("mqtt.username", m.Username)
	v.SetDefault("mqtt.password", m.Password)
	v.SetDefault("mqtt.topic_prefix", m.TopicPrefix)
	v.SetDefault("mqtt.qos", m.QoS)
	v.SetDefault("mqtt.connect_timeout", m.ConnectTimeout)
	v.SetDefault("mqtt.publish_timeout", m.PublishTimeout)
}
