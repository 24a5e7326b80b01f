package config

import (
	"fmt"

	flag "github.com/spf13/pflag"
)

// CLIOverrides holds every value the operator actually passed on the
// command line. Which flags were passed is recorded separately (see isSet),
// so an explicitly passed zero value still overrides; flags not passed are
// left for the INI file or the compiled defaults to supply.
type CLIOverrides struct {
	Help    bool
	Version bool

	ConfigPath string

	LogLevel        string
	LogOutput       int
	LogPrefix       string
	LogPath         string
	LogRotateNumber int
	LogRotateSize   int64
	LogFsyncEvery   int64
	LogFsyncLevel   int
	LogShowFileInfo bool
	LogShowFuncInfo bool
	LogColors       bool

	MQTTIP    string
	MQTTPort  int
	MQTTTopic string
	MQTTID    string

	ModbusMaxReTime int
	PollListPath    string
	MapListPath     string

	set map[string]bool
}

// ParseCLI registers and parses the short+long option table from the
// external interface spec, POSIX-style (pflag gives us GNU getopt
// semantics without hand-rolling short/long aliasing).
func ParseCLI(args []string) (*CLIOverrides, error) {
	fs := flag.NewFlagSet("m2md", flag.ContinueOnError)
	o := &CLIOverrides{set: map[string]bool{}}

	fs.BoolVarP(&o.Help, "help", "h", false, "print help and exit")
	fs.BoolVarP(&o.Version, "version", "v", false, "print version and exit")
	fs.StringVarP(&o.ConfigPath, "config", "c", "", "override config file path")
	fs.StringVarP(&o.LogLevel, "log-level", "l", "", "fatal:alert:crit:error:warn:notice:info:dbg")
	fs.IntVarP(&o.LogOutput, "log-output", "o", 0, "bitmask of log sinks [0,127]")
	fs.StringVarP(&o.MQTTIP, "mqtt-ip", "i", "", "broker address")
	fs.IntVarP(&o.MQTTPort, "mqtt-port", "p", 0, "broker port [0,65535]")
	fs.StringVarP(&o.MQTTTopic, "mqtt-topic", "t", "", "base topic prefix")
	fs.StringVar(&o.MQTTID, "mqtt-id", "", "client id")
	fs.IntVar(&o.LogRotateNumber, "log-frotate-number", 0, "rotated file count")
	fs.Int64Var(&o.LogRotateSize, "log-frotate-size", 0, "max file size bytes")
	fs.Int64Var(&o.LogFsyncEvery, "log-fsync-every", 0, "fsync period bytes")
	fs.IntVar(&o.LogFsyncLevel, "log-fsync-level", 0, "always-sync threshold [0,7]")
	fs.String("log-ts", "", "log timestamp format")
	fs.String("log-ts-tm", "", "log timestamp format")
	fs.String("log-ts-tm-fract", "", "log timestamp fraction format")
	fs.BoolVar(&o.LogShowFileInfo, "log-finfo", false, "include file info in log lines")
	fs.BoolVar(&o.LogShowFuncInfo, "log-funcinfo", false, "include function info in log lines")
	fs.BoolVar(&o.LogColors, "log-colors", false, "colorize log output")
	fs.StringVar(&o.LogPrefix, "log-prefix", "", "log line prefix")
	fs.StringVar(&o.LogPath, "log-path", "", "log file path")
	fs.IntVar(&o.ModbusMaxReTime, "modbus-max-re-time", 0, "back-off cap, seconds")
	fs.StringVar(&o.PollListPath, "modbus-poll-list", "", "poll-list file")
	fs.StringVar(&o.MapListPath, "modbus-map-list", "", "legacy reg-topic map (accepted, unused)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		o.set[f.Name] = true
	})
	return o, nil
}

func (o *CLIOverrides) isSet(name string) bool {
	return o.set != nil && o.set[name]
}
