package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/lumennet/firefly/src/common"
	"github.com/lumennet/firefly/src/node"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultInfoLogFile is the default name of the file receiving info-level
	// log output, alongside stderr.
	DefaultInfoLogFile = "firefly_info.log"
)

// Default configuration values.
const (
	DefaultLogLevel    = "debug"
	DefaultBindAddr    = "0.0.0.0:1991"
	DefaultBroadcast   = "255.255.255.255:1991"
	DefaultServiceAddr = "127.0.0.1:8000"

	DefaultGroup            = 0x28
	DefaultSyncPeriod       = 2025 * time.Millisecond
	DefaultFlashDuration    = 500 * time.Millisecond
	DefaultTransmissionUnit = 1 * time.Millisecond
	DefaultWaitCeiling      = 100 * time.Millisecond
)

// Config contains all the configuration properties of a firefly node.
type Config struct {
	// DataDir is the top-level directory containing firefly configuration and
	// data.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// Moniker defines the friendly name of this node. It must appear in the
	// group roster, and the node's radio address is derived from it.
	Moniker string `mapstructure:"moniker"`

	// BindAddr is the local address:port where this node listens for beacons.
	BindAddr string `mapstructure:"listen"`

	// BroadcastAddr is the address:port beacons are broadcast to.
	BroadcastAddr string `mapstructure:"broadcast"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Group is the identifier beacons carry; beacons from other groups are
	// ignored.
	Group uint16 `mapstructure:"group"`

	// SyncPeriod is the nominal flash period.
	SyncPeriod time.Duration `mapstructure:"sync-period"`

	// FlashDuration is how long the indicator stays lit after a firing.
	FlashDuration time.Duration `mapstructure:"flash-duration"`

	// TransmissionUnit is the channel time one beacon occupies. It drives the
	// sensing window and the backoff quantum.
	TransmissionUnit time.Duration `mapstructure:"transmission-unit"`

	// WaitCeiling caps a single backoff wait.
	WaitCeiling time.Duration `mapstructure:"wait-ceiling"`

	// Snap selects the reset-to-zero correction scheme instead of the
	// graduated firefly scheme.
	Snap bool `mapstructure:"snap"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		BroadcastAddr:    DefaultBroadcast,
		ServiceAddr:      DefaultServiceAddr,
		Group:            DefaultGroup,
		SyncPeriod:       DefaultSyncPeriod,
		FlashDuration:    DefaultFlashDuration,
		TransmissionUnit: DefaultTransmissionUnit,
		WaitCeiling:      DefaultWaitCeiling,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level firefly directory.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
}

// PeersFile returns the full path of the file containing the group roster.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, "peers.json")
}

// NodeConfig translates the application options into the node package's
// config.
func (c *Config) NodeConfig() *node.Config {
	nodeConf := node.NewConfig(
		c.Group,
		c.SyncPeriod,
		c.FlashDuration,
		c.TransmissionUnit,
		c.WaitCeiling,
		c.RawLogger(),
	)
	nodeConf.Snap = c.Snap
	return nodeConf
}

// Logger returns a formatted logrus Entry, with prefix set to "firefly".
func (c *Config) Logger() *logrus.Entry {
	return c.RawLogger().WithField("prefix", "firefly")
}

// RawLogger returns the underlying logrus Logger, lazily initialised with the
// configured level and an info-level file hook in the data directory.
func (c *Config) RawLogger() *logrus.Logger {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		pathMap := lfshook.PathMap{}
		infoLog := filepath.Join(c.DataDir, DefaultInfoLogFile)
		if f, err := os.OpenFile(infoLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err == nil {
			f.Close()
			pathMap[logrus.InfoLevel] = infoLog
		}

		if len(pathMap) > 0 {
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger
}

// DefaultDataDir returns the default directory name for top-level firefly
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Firefly")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Firefly")
		} else {
			return filepath.Join(home, ".firefly")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a level name into a logrus Level, defaulting to debug.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
