// ABOUTME: Application settings loaded through viper
// ABOUTME: Defaults, YAML config file and environment overrides
package conf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Settings holds the capture server configuration.
type Settings struct {
	Debug bool `mapstructure:"debug"`

	Capture struct {
		Device     string  `mapstructure:"device"`
		SampleRate float64 `mapstructure:"samplerate"`
		Channels   int     `mapstructure:"channels"`
		QueueSize  int     `mapstructure:"queuesize"`
		TestTone   bool    `mapstructure:"testtone"`
	} `mapstructure:"capture"`

	Output struct {
		Directory string `mapstructure:"directory"`
	} `mapstructure:"output"`

	Network struct {
		StreamAddr  string `mapstructure:"streamaddr"`
		ControlAddr string `mapstructure:"controladdr"`
		MDNS        bool   `mapstructure:"mdns"`
	} `mapstructure:"network"`

	Log struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"log"`
}

// Load reads settings from defaults, an optional config.yaml and the
// environment (CAPTUREKIT_ prefix, dots as underscores).
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/capturekit")

	setDefaults(v)

	v.SetEnvPrefix("capturekit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Missing config file is fine, defaults apply.
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := Validate(settings); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}
	return settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("capture.device", "")
	v.SetDefault("capture.samplerate", 48000)
	v.SetDefault("capture.channels", 2)
	v.SetDefault("capture.queuesize", 32)
	v.SetDefault("capture.testtone", false)

	v.SetDefault("output.directory", "recordings")

	v.SetDefault("network.streamaddr", ":9000")
	v.SetDefault("network.controladdr", ":9001")
	v.SetDefault("network.mdns", true)

	v.SetDefault("log.path", "capturekit.log")
}

// Validate rejects settings no session could start with.
func Validate(s *Settings) error {
	if s.Capture.SampleRate <= 0 {
		return fmt.Errorf("capture.samplerate must be positive, got %v", s.Capture.SampleRate)
	}
	if s.Capture.Channels <= 0 {
		return fmt.Errorf("capture.channels must be positive, got %d", s.Capture.Channels)
	}
	if s.Capture.QueueSize < 0 {
		return fmt.Errorf("capture.queuesize must not be negative, got %d", s.Capture.QueueSize)
	}
	return nil
}
