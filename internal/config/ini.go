package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/ini.v1"

	"github.com/fisaks/m2md/internal/logging"
)

// Load builds the final Config by merging, in increasing precedence:
// compiled defaults, an INI file (if one is found), and CLI overrides.
// A missing default path is not an error; a missing path the operator
// explicitly passed with -c is fatal, per the external interface spec.
func Load(cli *CLIOverrides, defaultPath string) (Config, error) {
	cfg := Defaults()

	path := defaultPath
	explicit := false
	if cli.ConfigPath != "" {
		path = cli.ConfigPath
		explicit = true
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if explicit {
				return Config{}, fmt.Errorf("config: cannot read %s: %w", path, err)
			}
		} else if err := applyINIFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	applyCLIOverrides(&cfg, cli)
	return cfg, nil
}

func applyINIFile(cfg *Config, path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return err
	}

	log := f.Section("log")
	if v := log.Key("level").String(); v != "" {
		lvl, err := logging.ParseLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = lvl
	}
	if v := log.Key("output").MustInt(-1); v >= 0 {
		cfg.LogOutput = logging.Sink(v)
	}
	cfg.LogPath = log.Key("path").MustString(cfg.LogPath)
	cfg.LogPrefix = log.Key("prefix").MustString(cfg.LogPrefix)
	cfg.LogRotateNumber = log.Key("frotate_number").MustInt(cfg.LogRotateNumber)
	cfg.LogRotateSize = log.Key("frotate_size").MustInt64(cfg.LogRotateSize)
	cfg.LogFsyncEvery = log.Key("fsync_every").MustInt64(cfg.LogFsyncEvery)
	if v := log.Key("fsync_level").MustInt(-1); v >= 0 {
		cfg.LogFsyncLevel = logging.Level(v)
	}
	cfg.LogShowFileInfo = log.Key("finfo").MustBool(cfg.LogShowFileInfo)
	cfg.LogShowFuncInfo = log.Key("funcinfo").MustBool(cfg.LogShowFuncInfo)
	cfg.LogColors = log.Key("colors").MustBool(cfg.LogColors)

	mqtt := f.Section("mqtt")
	cfg.MQTTBrokerIP = mqtt.Key("ip").MustString(cfg.MQTTBrokerIP)
	cfg.MQTTBrokerPort = mqtt.Key("port").MustInt(cfg.MQTTBrokerPort)
	cfg.MQTTTopic = mqtt.Key("topic").MustString(cfg.MQTTTopic)
	cfg.MQTTClientID = mqtt.Key("id").MustString(cfg.MQTTClientID)

	modbus := f.Section("modbus")
	if secs := modbus.Key("max_re_time").MustInt(0); secs > 0 {
		cfg.ModbusMaxReconnect = time.Duration(secs) * time.Second
	}
	cfg.PollListPath = modbus.Key("poll_list").MustString(cfg.PollListPath)
	cfg.MapListPath = modbus.Key("map_list").MustString(cfg.MapListPath)

	return nil
}

func applyCLIOverrides(cfg *Config, o *CLIOverrides) {
	if o.isSet("log-level") {
		if lvl, err := logging.ParseLevel(o.LogLevel); err == nil {
			cfg.LogLevel = lvl
		}
	}
	if o.isSet("log-output") {
		cfg.LogOutput = logging.Sink(o.LogOutput)
	}
	if o.isSet("log-prefix") {
		cfg.LogPrefix = o.LogPrefix
	}
	if o.isSet("log-path") {
		cfg.LogPath = o.LogPath
	}
	if o.isSet("log-frotate-number") {
		cfg.LogRotateNumber = o.LogRotateNumber
	}
	if o.isSet("log-frotate-size") {
		cfg.LogRotateSize = o.LogRotateSize
	}
	if o.isSet("log-fsync-every") {
		cfg.LogFsyncEvery = o.LogFsyncEvery
	}
	if o.isSet("log-fsync-level") {
		cfg.LogFsyncLevel = logging.Level(o.LogFsyncLevel)
	}
	if o.isSet("log-finfo") {
		cfg.LogShowFileInfo = o.LogShowFileInfo
	}
	if o.isSet("log-funcinfo") {
		cfg.LogShowFuncInfo = o.LogShowFuncInfo
	}
	if o.isSet("log-colors") {
		cfg.LogColors = o.LogColors
	}
	if o.isSet("mqtt-ip") {
		cfg.MQTTBrokerIP = o.MQTTIP
	}
	if o.isSet("mqtt-port") {
		cfg.MQTTBrokerPort = o.MQTTPort
	}
	if o.isSet("mqtt-topic") {
		cfg.MQTTTopic = o.MQTTTopic
	}
	if o.isSet("mqtt-id") {
		cfg.MQTTClientID = o.MQTTID
	}
	if o.isSet("modbus-max-re-time") {
		cfg.ModbusMaxReconnect = time.Duration(o.ModbusMaxReTime) * time.Second
	}
	if o.isSet("modbus-poll-list") {
		cfg.PollListPath = o.PollListPath
	}
	if o.isSet("modbus-map-list") {
		cfg.MapListPath = o.MapListPath
	}
}
