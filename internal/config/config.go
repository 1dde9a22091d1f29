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
	Mode           string        `mapstructure:"mode"`
	LogLevel       string        `mapstructure:"log_level"`
	Port           int           `mapstructure:"port"`
	StaticPath     string        `mapstructure:"static_path"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	Secret         string        `mapstructure:"secret"`
	AdminToken     string        `mapstructure:"admin_token"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxSessions    int           `mapstructure:"max_sessions"`

	Signal SignalConfig `mapstructure:"signal"`
	Media  MediaConfig  `mapstructure:"media"`
}

type SignalConfig struct {
	SendBuffer   int           `mapstructure:"send_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	// SlowPeers is "kick" or "drop".
	SlowPeers string `mapstructure:"slow_peers"`
}

type MediaConfig struct {
	RTCMinPort         uint16        `mapstructure:"rtc_min_port"`
	RTCMaxPort         uint16        `mapstructure:"rtc_max_port"`
	ListenIP           string        `mapstructure:"listen_ip"`
	AnnouncedIP        string        `mapstructure:"announced_ip"`
	EnableUDP          bool          `mapstructure:"enable_udp"`
	EnableTCP          bool          `mapstructure:"enable_tcp"`
	PreferUDP          bool          `mapstructure:"prefer_udp"`
	TCPPort            int           `mapstructure:"tcp_port"`
	Codecs             []string      `mapstructure:"codecs"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	EngineCallTimeout  time.Duration `mapstructure:"engine_call_timeout"`
	ExitGrace          time.Duration `mapstructure:"exit_grace"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName if it exists. SFU_* environment variables win over the file.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix("SFU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Uint16("rtc_min_port", cfg.Media.RTCMinPort).
		Uint16("rtc_max_port", cfg.Media.RTCMaxPort).
		Str("announced_ip", cfg.Media.AnnouncedIP).
		Strs("codecs", cfg.Media.Codecs).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 3001)
	v.SetDefault("static_path", "./public")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("max_sessions", 500)

	v.SetDefault("signal.send_buffer", 32)
	v.SetDefault("signal.write_timeout", "5s")
	v.SetDefault("signal.rate_limit", 50)
	v.SetDefault("signal.rate_interval", "1s")
	v.SetDefault("signal.slow_peers", "kick")

	v.SetDefault("media.rtc_min_port", 2000)
	v.SetDefault("media.rtc_max_port", 2020)
	v.SetDefault("media.listen_ip", "0.0.0.0")
	v.SetDefault("media.announced_ip", "127.0.0.1")
	v.SetDefault("media.enable_udp", true)
	v.SetDefault("media.enable_tcp", true)
	v.SetDefault("media.prefer_udp", true)
	v.SetDefault("media.tcp_port", 0)
	v.SetDefault("media.codecs", []string{"opus", "vp8"})
	v.SetDefault("media.negotiation_timeout", "30s")
	v.SetDefault("media.engine_call_timeout", "10s")
	v.SetDefault("media.exit_grace", "2s")
}

var (
	ErrPortRange   = errors.New("rtc port range is empty")
	ErrNoTransport = errors.New("neither udp nor tcp is enabled")
	ErrTimeouts    = errors.New("timeouts must be positive")
	ErrSlowPeers   = errors.New(`signal.slow_peers must be "kick" or "drop"`)
)

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	m := c.Media
	if m.RTCMinPort == 0 || m.RTCMinPort > m.RTCMaxPort {
		return fmt.Errorf("%w: %d-%d", ErrPortRange, m.RTCMinPort, m.RTCMaxPort)
	}
	if !m.EnableUDP && !m.EnableTCP {
		return ErrNoTransport
	}
	if m.NegotiationTimeout <= 0 || m.EngineCallTimeout <= 0 || m.ExitGrace < 0 {
		return ErrTimeouts
	}
	if _, err := Codecs(m.Codecs); err != nil {
		return err
	}
	if c.Signal.SendBuffer <= 0 {
		return fmt.Errorf("signal.send_buffer must be positive, got %d", c.Signal.SendBuffer)
	}
	if c.Signal.SlowPeers != "kick" && c.Signal.SlowPeers != "drop" {
		return fmt.Errorf("%w, got %q", ErrSlowPeers, c.Signal.SlowPeers)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must not be negative, got %d", c.MaxSessions)
	}
	return nil
}
