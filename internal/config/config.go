// Package config loads the bridge's configuration from compiled-in
// defaults, an INI file, and command-line flags, in that precedence order,
// and parses the poll-list CSV file referenced by it.
package config

import (
	"fmt"
	"time"

	"github.com/fisaks/m2md/internal/logging"
)

// Config is the fully merged, validated configuration the rest of the
// program runs from.
type Config struct {
	LogLevel  logging.Level
	LogOutput logging.Sink
	LogPath   string

	LogRotateNumber int
	LogRotateSize   int64
	LogFsyncEvery   int64
	LogFsyncLevel   logging.Level
	LogShowFileInfo bool
	LogShowFuncInfo bool
	LogColors       bool
	LogPrefix       string

	MQTTBrokerIP   string
	MQTTBrokerPort int
	MQTTTopic      string
	MQTTClientID   string

	ModbusMaxReconnect time.Duration
	ModbusTimeout      time.Duration
	PollListPath       string
	MapListPath        string // accepted, unused: spec.md Non-goal
}

// Defaults returns the built-in compiled-in defaults, the first layer of
// the precedence chain.
func Defaults() Config {
	return Config{
		LogLevel:           logging.LevelInfo,
		LogOutput:          logging.SinkStdout,
		LogRotateNumber:    5,
		LogRotateSize:      10 * 1024 * 1024,
		LogFsyncLevel:      logging.LevelError,
		MQTTBrokerIP:       "127.0.0.1",
		MQTTBrokerPort:     1883,
		MQTTTopic:          "m2md",
		MQTTClientID:       "m2md",
		ModbusMaxReconnect: 60 * time.Second,
		ModbusTimeout:      2 * time.Second,
	}
}

// multiErr accumulates every validation failure instead of stopping at the
// first one, matching the teacher's config-edge.go aggregation style.
type multiErr struct {
	errs []string
}

func (m *multiErr) add(msg string) {
	m.errs = append(m.errs, msg)
}

func (m *multiErr) addf(format string, args ...any) {
	m.errs = append(m.errs, fmt.Sprintf(format, args...))
}

func (m *multiErr) Err() error {
	if len(m.errs) == 0 {
		return nil
	}
	out := "config: invalid configuration:"
	for _, e := range m.errs {
		out += "\n  - " + e
	}
	return fmt.Errorf("%s", out)
}

// Validate reports every problem with c at once, rather than failing on
// the first one encountered.
func (c Config) Validate() error {
	var m multiErr

	if c.MQTTBrokerPort < 0 || c.MQTTBrokerPort > 65535 {
		m.addf("mqtt-port %d out of range [0,65535]", c.MQTTBrokerPort)
	}
	if len(c.MQTTTopic) > 1024 {
		m.add("mqtt-topic exceeds 1024 bytes")
	}
	if len(c.MQTTClientID) > 128 {
		m.add("mqtt-id exceeds 128 bytes")
	}
	if c.ModbusMaxReconnect <= 0 {
		m.add("modbus-max-re-time must be >= 1 second")
	}
	if c.PollListPath == "" {
		m.add("modbus-poll-list is required")
	}
	if c.LogRotateNumber < 1 {
		m.add("log-frotate-number must be >= 1")
	}

	return m.Err()
}
