package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	Log   LogConfig   `mapstructure:"log"`
	Store StoreConfig `mapstructure:"store"`
	Mongo MongoConfig `mapstructure:"mongo"`
	Redis RedisConfig `mapstructure:"redis"`
	AMQP  AMQPConfig  `mapstructure:"amqp"`
	Auth  AuthConfig  `mapstructure:"auth"`
	Relay RelayConfig `mapstructure:"relay"`
	RTC   RTCConfig   `mapstructure:"rtc"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type StoreConfig struct {
	// Driver is one of memory, mongo, redis.
	Driver  string        `mapstructure:"driver"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MongoConfig struct {
	URL        string `mapstructure:"url"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	LeaseTTL bool   `mapstructure:"lease_ttl"`
}

type AMQPConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type AuthConfig struct {
	// JWTSecret turns on identity binding at handshake time when set.
	JWTSecret     string `mapstructure:"jwt_secret"`
	IdentityClaim string `mapstructure:"identity_claim"`
}

type RelayConfig struct {
	SerializeSessions  bool           `mapstructure:"serialize_sessions"`
	AnnounceDepartures bool           `mapstructure:"announce_departures"`
	SendBuffer         int            `mapstructure:"send_buffer"`
	JoinRate           JoinRateConfig `mapstructure:"join_rate"`
}

type JoinRateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type RTCConfig struct {
	ICEServers  []ICEServer `mapstructure:"ice_servers"`
	ValidateSDP bool        `mapstructure:"validate_sdp"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// setDefaults registers every key. AutomaticEnv only overrides keys viper
// already knows about, so a key without a default can't be set from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 4000)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("mongo.url", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "ucode")
	v.SetDefault("mongo.collection", "sessions")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lease_ttl", false)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "ucode.events")
	v.SetDefault("amqp.buffer_size", 256)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.identity_claim", "email")

	v.SetDefault("relay.serialize_sessions", false)
	v.SetDefault("relay.announce_departures", false)
	v.SetDefault("relay.send_buffer", 64)
	v.SetDefault("relay.join_rate.limit", 5)
	v.SetDefault("relay.join_rate.interval", "10s")

	v.SetDefault("rtc.validate_sdp", false)
	v.SetDefault("rtc.ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("UCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "mongo", "redis":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port: out of range: %d", c.Port)
	}
	if c.Relay.SendBuffer <= 0 {
		return errors.New("relay.send_buffer must be positive")
	}
	if c.Relay.JoinRate.Limit <= 0 || c.Relay.JoinRate.Interval <= 0 {
		return errors.New("relay.join_rate needs a positive limit and interval")
	}
	return nil
}
