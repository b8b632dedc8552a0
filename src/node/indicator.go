package node

import "github.com/sirupsen/logrus"

// Indicator is the visual firing indicator. It has no effect on
// synchronization correctness.
type Indicator interface {
	Set(on bool)
}

// NopIndicator discards indicator changes.
type NopIndicator struct{}

// Set ...
func (NopIndicator) Set(on bool) {}

// LogIndicator renders the indicator as log lines, which is as close to a
// blinking LED as a server process gets.
type LogIndicator struct {
	logger *logrus.Entry
}

// NewLogIndicator ...
func NewLogIndicator(logger *logrus.Entry) *LogIndicator {
	return &LogIndicator{logger: logger}
}

// Set ...
func (l *LogIndicator) Set(on bool) {
	if on {
		l.logger.Info("FLASH ^")
	} else {
		l.logger.Debug("flash v")
	}
}
