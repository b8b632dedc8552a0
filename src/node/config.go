package node

import (
	"testing"
	"time"

	"github.com/lumennet/firefly/src/common"
	"github.com/sirupsen/logrus"
)

// Config holds the node-level tuning parameters. All durations are short
// relative to the period by design: the backoff ceiling plus the sensing
// window never overlaps the next scheduled firing.
type Config struct {
	// Group is the identifier shared by all nodes that should synchronize
	// together. Beacons from other groups are ignored as noise.
	Group uint16 `mapstructure:"group"`

	// SyncPeriod is the nominal cycle period, including the worst-case
	// delay margin the firefly algorithm introduces.
	SyncPeriod time.Duration `mapstructure:"sync-period"`

	// FlashDuration is how long the indicator stays on after a firing.
	FlashDuration time.Duration `mapstructure:"flash-duration"`

	// TransmissionUnit is the time one beacon occupies the channel. It is
	// used as the sensing window and as the backoff quantum.
	TransmissionUnit time.Duration `mapstructure:"transmission-unit"`

	// WaitCeiling caps a single backoff wait.
	WaitCeiling time.Duration `mapstructure:"wait-ceiling"`

	// JitterPoolSize is the number of pre-drawn backoff jitter values.
	JitterPoolSize int `mapstructure:"jitter-pool"`

	// JitterMax bounds the jitter values drawn into the pool.
	JitterMax int `mapstructure:"jitter-max"`

	// Table holds the correction constants per lateness bucket.
	Table CorrectionTable

	// Snap selects the reset-to-zero scheme, where an observed beacon
	// triggers an immediate silent firing, instead of the graduated
	// firefly correction.
	Snap bool `mapstructure:"snap"`

	// Rand feeds initial jitter and the backoff pool.
	Rand ByteSource

	Logger *logrus.Logger
}

// NewConfig ...
func NewConfig(
	group uint16,
	syncPeriod time.Duration,
	flashDuration time.Duration,
	transmissionUnit time.Duration,
	waitCeiling time.Duration,
	logger *logrus.Logger,
) *Config {
	return &Config{
		Group:            group,
		SyncPeriod:       syncPeriod,
		FlashDuration:    flashDuration,
		TransmissionUnit: transmissionUnit,
		WaitCeiling:      waitCeiling,
		JitterPoolSize:   8,
		JitterMax:        8,
		Table:            MoteCorrectionTable,
		Rand:             NewByteSource(time.Now().UnixNano()),
		Logger:           logger,
	}
}

// DefaultConfig returns the parameters the original motes shipped with: a
// 2s period plus 25ms worst-case correction margin, 500ms flashes, a 1ms
// transmission unit and a 100ms backoff ceiling.
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return NewConfig(
		0x28,
		2025*time.Millisecond,
		500*time.Millisecond,
		1*time.Millisecond,
		100*time.Millisecond,
		logger,
	)
}

// TestConfig returns a DefaultConfig with a deterministic byte source and a
// test logger.
func TestConfig(t *testing.T) *Config {
	config := DefaultConfig()
	config.Rand = NewByteSource(1)
	config.Logger = common.NewTestLogger(t, logrus.DebugLevel)
	return config
}
