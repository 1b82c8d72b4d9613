package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AgentConfig holds the credentials for the external conversational
// voice agent service.
type AgentConfig struct {
	BaseURL string `mapstructure:"base_url"`
	AgentID string `mapstructure:"agent_id"`
	APIKey  string `mapstructure:"api_key"`
}

// CallConfig tunes per-call behaviour of the bridge.
type CallConfig struct {
	// GoodbyeGraceSecs is how long the bridge waits after a goodbye
	// phrase before ending the call on its own.
	GoodbyeGraceSecs int `mapstructure:"goodbye_grace_secs"`
	// ConnectorCloseTimeoutSecs bounds how long a vendor connection may
	// take to acknowledge a close before it is force-terminated.
	ConnectorCloseTimeoutSecs int `mapstructure:"connector_close_timeout_secs"`
}

func (c CallConfig) GoodbyeGrace() time.Duration {
	if c.GoodbyeGraceSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.GoodbyeGraceSecs) * time.Second
}

func (c CallConfig) ConnectorCloseTimeout() time.Duration {
	if c.ConnectorCloseTimeoutSecs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.ConnectorCloseTimeoutSecs) * time.Second
}

type Settings struct {
	DB    DBConfig    `mapstructure:"database"`
	Redis RedisConfig `mapstructure:"redis"`
	Agent AgentConfig `mapstructure:"agent"`
	Call  CallConfig  `mapstructure:"call"`
	Port  int         `mapstructure:"port"`
	Env   string      `mapstructure:"env"`
	Debug bool        `mapstructure:"debug" default:"false"`
}

// IsDevelopment reports whether the deployment runs in development mode,
// which enables synthetic test sessions.
func (s *Settings) IsDevelopment() bool {
	return s.Env == "" || s.Env == "dev" || s.Env == "development"
}

func Load() (*Settings, error) {
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
