package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/livesignal/internal/domain"
)

var (
	ErrNoServers   = errors.New("no signaling server configured")
	ErrBadServer   = errors.New("server address is empty")
	ErrBadInterval = errors.New("stats interval must be positive")
	ErrBadPort     = errors.New("status port out of range")
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
}

type StatsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Dir      string        `mapstructure:"dir"`
}

type RecordConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// StatusConfig controls the local HTTP status API.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	Secret  string `mapstructure:"secret"`

	// At most StartLimit explicit starts per client within StartWindow.
	StartLimit  int           `mapstructure:"start_limit"`
	StartWindow time.Duration `mapstructure:"start_window"`
}

type Config struct {
	LogLevel string                 `mapstructure:"log_level"`
	Servers  []ServerConfig         `mapstructure:"servers"`
	Target   string                 `mapstructure:"target"`
	Output   string                 `mapstructure:"output"`
	Session  domain.SessionSettings `mapstructure:"session"`
	Stats    StatsConfig            `mapstructure:"stats"`
	Record   RecordConfig           `mapstructure:"record"`
	Status   StatusConfig           `mapstructure:"status"`
}

// Flags returns the command line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("livesignal", pflag.ContinueOnError)
	fs.String("config", "", "path to a yaml config file")
	fs.StringP("target", "t", "", "only play targets whose id starts with this prefix")
	fs.StringP("output", "o", "", "directory for stats and recordings")
	fs.BoolP("aac", "a", false, "receive AAC instead of Opus audio")
	fs.Bool("stats", false, "write inbound byte counters")
	fs.Bool("record", false, "record received tracks")
	fs.Bool("force-turn", false, "relay media through TURN only")
	fs.Bool("status", false, "serve the status API")
	fs.String("log-level", "", "log level")
	return fs
}

func setDefaults(v *viper.Viper) {
	def := domain.DefaultSessionSettings()
	v.SetDefault("log_level", "info")
	v.SetDefault("output", ".")
	v.SetDefault("session.audio_codec", string(def.AudioCodec))
	v.SetDefault("session.adaptive", def.Adaptive)
	v.SetDefault("session.max_bitrate", def.MaxBitrate)
	v.SetDefault("session.compression", def.Compression)
	v.SetDefault("session.keyframe_interval", def.KeyframeInterval)
	v.SetDefault("session.force_turn", false)
	v.SetDefault("stats.interval", "5s")
	v.SetDefault("status.port", 8080)
	v.SetDefault("status.mode", "release")
	v.SetDefault("status.start_limit", 5)
	v.SetDefault("status.start_window", "1m")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	binds := map[string]string{
		"target":             "target",
		"output":             "output",
		"log_level":          "log-level",
		"stats.enabled":      "stats",
		"record.enabled":     "record",
		"session.force_turn": "force-turn",
		"status.enabled":     "status",
	}
	for key, name := range binds {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file, WEBRTC_* environment and flags, in rising
// priority. fs must come from Flags and be parsed; nil means no flags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("WEBRTC")
	for _, key := range []string{"target", "output", "host", "user", "pass"} {
		_ = v.BindEnv(key)
	}

	explicit := ""
	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
		explicit, _ = fs.GetString("config")
	}

	fileName := explicit
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		if explicit != "" {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// A server from the environment is tried first.
	if host := v.GetString("host"); host != "" {
		env := ServerConfig{Address: host, User: v.GetString("user"), Pass: v.GetString("pass")}
		cfg.Servers = append([]ServerConfig{env}, cfg.Servers...)
	}
	if fs != nil {
		if aac, _ := fs.GetBool("aac"); aac {
			cfg.Session.AudioCodec = domain.AudioCodecAAC
		}
	}
	if cfg.Stats.Dir == "" {
		cfg.Stats.Dir = cfg.Output
	}
	if cfg.Record.Dir == "" {
		cfg.Record.Dir = cfg.Output
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debug().
		Str("module", "config").
		Int("servers", len(cfg.Servers)).
		Str("target", cfg.Target).
		Str("audio", string(cfg.Session.AudioCodec)).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return ErrNoServers
	}
	for i, s := range c.Servers {
		if s.Address == "" {
			return fmt.Errorf("servers[%d]: %w", i, ErrBadServer)
		}
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if c.Stats.Enabled && c.Stats.Interval <= 0 {
		return ErrBadInterval
	}
	if c.Status.Enabled && (c.Status.Port <= 0 || c.Status.Port > 65535) {
		return ErrBadPort
	}
	return nil
}
