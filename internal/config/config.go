package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/dkeye/Talk/internal/protocol"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	RecordingDir string `mapstructure:"recording_dir"`

	StunURL      string `mapstructure:"stun_url"`
	TurnURL      string `mapstructure:"turn_url"`
	TurnUsername string `mapstructure:"turn_username"`
	TurnPassword string `mapstructure:"turn_password"`

	MessagesPerSecond int `mapstructure:"messages_per_second"`
}

// ICE bundles the STUN/TURN surface for appConfig responses.
func (c *Config) ICE() protocol.ICEConfig {
	return protocol.ICEConfig{
		StunURL:      c.StunURL,
		TurnURL:      c.TurnURL,
		TurnUsername: c.TurnUsername,
		TurnPassword: c.TurnPassword,
	}
}

// Load reads config/config.<env>.yaml if present and overlays environment
// variables; everything has a fallback default so the server starts with no
// config at all.
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

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("recording_dir", "./recordings")
	v.SetDefault("messages_per_second", 50)

	v.SetDefault("stun_url", "stun:5.9.154.226:3478")
	v.SetDefault("turn_url", "turn:5.9.154.226:3478")
	v.SetDefault("turn_username", "akashionata")
	v.SetDefault("turn_password", "silkroad2015")

	// The TURN/STUN surface is usually supplied by the deployment
	// environment rather than the config file.
	_ = v.BindEnv("stun_url", "STUN_URL")
	_ = v.BindEnv("turn_url", "TURN_URL")
	_ = v.BindEnv("turn_username", "TURN_USERNAME")
	_ = v.BindEnv("turn_password", "TURN_PASSWORD")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("recording_dir", "RECORDING_DIR")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
