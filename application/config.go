package application

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ItzDerock/virtual-gamepads/internal/device"
	"github.com/ItzDerock/virtual-gamepads/internal/network/serializer"
	"github.com/ItzDerock/virtual-gamepads/internal/network/session"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
	zviper "github.com/ItzDerock/virtual-gamepads/pkg/util/viper"
)

const (
	envPrefix         = "GAMEPAD"
	envConfigFilePath = "GAMEPAD_CONFIG_FILE_PATH"
	defaultConfigPath = "./config.yaml"
)

// Config is the full runtime configuration.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Session session.Config `mapstructure:"session"`
	Device  device.Config  `mapstructure:"device"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Path            string        `mapstructure:"path"`
	StaticDir       string        `mapstructure:"static_dir"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Serializer      string        `mapstructure:"serializer"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *zviper.Config) {
	sess := session.DefaultConfig()
	dev := device.DefaultConfig()

	v.SetDefault("server.addr", "0.0.0.0:3000")
	v.SetDefault("server.path", "/ws")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.read_limit", 4096)
	v.SetDefault("server.write_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.serializer", serializer.NameJSON)

	v.SetDefault("session.max_sessions", sess.MaxSessions)
	v.SetDefault("session.heartbeat_timeout", sess.HeartbeatTimeout)
	v.SetDefault("session.check_interval", sess.CheckInterval)

	v.SetDefault("device.backend", dev.Backend)
	v.SetDefault("device.name", dev.Name)
	v.SetDefault("device.uinput_path", dev.UinputPath)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Session.MaxSessions <= 0:
		return merr.WrapErrParameterInvalidMsg("session.max_sessions must be positive, got %d", c.Session.MaxSessions)
	case c.Session.HeartbeatTimeout <= 0:
		return merr.WrapErrParameterInvalidMsg("session.heartbeat_timeout must be positive, got %s", c.Session.HeartbeatTimeout)
	case c.Session.CheckInterval <= 0:
		return merr.WrapErrParameterInvalidMsg("session.check_interval must be positive, got %s", c.Session.CheckInterval)
	case c.Server.Addr == "":
		return merr.WrapErrParameterMissing("server.addr")
	case !strings.HasPrefix(c.Server.Path, "/"):
		return merr.WrapErrParameterInvalidMsg("server.path must start with '/', got %q", c.Server.Path)
	case c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/"):
		return merr.WrapErrParameterInvalidMsg("metrics.path must start with '/', got %q", c.Metrics.Path)
	case c.Metrics.Enabled && c.Metrics.Path == c.Server.Path:
		return merr.WrapErrParameterInvalidMsg("metrics.path and server.path must differ")
	}
	if _, err := serializer.New(c.Server.Serializer); err != nil {
		return err
	}
	return nil
}

// resolveConfigPath resolves the config file path using the following priority:
//  1. Default: ./config.yaml
//  2. Env: GAMEPAD_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
//
// explicit reports whether the path came from env or CLI.
func resolveConfigPath(args []string) (path string, explicit bool, err error) {
	path = defaultConfigPath

	if envPath := strings.TrimSpace(os.Getenv(envConfigFilePath)); envPath != "" {
		path, explicit = envPath, true
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return "", false, merr.WrapErrParameterMissing("--config", "missing value after --config")
			}
			path, explicit = args[i+1], true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				path, explicit = val, true
			}
			continue
		}
	}
	return path, explicit, nil
}

// loadConfig loads defaults, the config file and GAMEPAD_* env overrides.
// A missing default file is not an error; a missing explicit file is.
func loadConfig(args []string) (*Config, *zviper.Config, error) {
	path, explicit, err := resolveConfigPath(args)
	if err != nil {
		return nil, nil, err
	}

	v := zviper.New()
	setDefaults(v)
	v.BindEnv(envPrefix)

	if _, statErr := os.Stat(path); statErr != nil && !explicit && errors.Is(statErr, fs.ErrNotExist) {
		path = ""
	}
	if path != "" {
		if err := v.LoadFile(path); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to load config file %q", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}
