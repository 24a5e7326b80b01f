// Command m2md bridges Modbus/TCP registers to an MQTT broker: it reads a
// poll-list file, samples the listed registers on their configured
// schedules, and republishes each as a scaled 32-bit float.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fisaks/m2md/internal/bridge"
	"github.com/fisaks/m2md/internal/config"
	"github.com/fisaks/m2md/internal/logging"
	"github.com/fisaks/m2md/internal/modbustransport"
	"github.com/fisaks/m2md/internal/mqtt"
)

const version = "0.1.0"

const defaultConfigPath = "/etc/m2md/m2md.ini"

// minFlushCadence is the minimum interval the outer driver honors between
// SIGUSR1-triggered log flushes, per the external interface spec.
const minFlushCadence = 60 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli, err := config.ParseCLI(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cli.Help {
		printUsage()
		return 0
	}
	if cli.Version {
		fmt.Println("m2md " + version)
		return 0
	}

	cfg, err := config.Load(cli, defaultConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.New(logging.Config{
		Level:        cfg.LogLevel,
		Output:       cfg.LogOutput,
		Path:         cfg.LogPath,
		RotateNumber: cfg.LogRotateNumber,
		RotateSize:   cfg.LogRotateSize,
		FsyncEvery:   cfg.LogFsyncEvery,
		FsyncLevel:   cfg.LogFsyncLevel,
		ShowFileInfo: cfg.LogShowFileInfo,
		ShowFuncInfo: cfg.LogShowFuncInfo,
		Colors:       cfg.LogColors,
		Prefix:       cfg.LogPrefix,
		JSON:         true,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "m2md: logging init:", err)
		return 1
	}
	defer logger.Close()

	if cfg.MapListPath != "" {
		logger.Warn("modbus-map-list given but unused (legacy reg-topic map is out of scope)", "path", cfg.MapListPath)
	}

	entries, err := config.LoadPollFile(cfg.PollListPath, logger.Logger)
	if err != nil {
		logger.Fatal("cannot load poll list", "error", err)
		return 1
	}
	logger.Info("poll list loaded", "entries", len(entries))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	facade, err := mqtt.Connect(ctx, mqtt.Config{
		BrokerURL:   fmt.Sprintf("tcp://%s:%d", cfg.MQTTBrokerIP, cfg.MQTTBrokerPort),
		ClientID:    cfg.MQTTClientID,
		TopicPrefix: cfg.MQTTTopic,
	}, logger.Logger)
	if err != nil {
		logger.Fatal("mqtt connect failed", "error", err)
		return 1
	}
	defer facade.Close()

	wakeup := bridge.NewWakeup()
	dial := modbustransport.NewDialFunc(cfg.ModbusTimeout, logger.Logger)
	registry := bridge.NewRegistry(facade, dial, cfg.ModbusMaxReconnect, wakeup, logger.Logger)
	scheduler := bridge.NewScheduler(registry, logger.Logger)

	for _, e := range entries {
		if err := registry.AddPoll(ctx, e.Poll, e.Host, e.Port); err != nil {
			logger.Warn("dropping poll-list entry", "host", e.Host, "port", e.Port, "error", err)
		}
	}

	go scheduler.Run(ctx, wakeup)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	var lastFlush time.Time
	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("shutting down", "signal", sig)
			cancel()
			registry.Shutdown()
			return 0
		case syscall.SIGUSR1:
			if time.Since(lastFlush) < minFlushCadence {
				continue
			}
			if err := logger.Flush(); err != nil {
				logger.Warn("log flush failed", "error", err)
			}
			lastFlush = time.Now()
		case syscall.SIGUSR2:
			wakeup.Signal()
		}
	}
}

func printUsage() {
	fmt.Println(`m2md - Modbus/TCP to MQTT bridge

Usage: m2md [options]

  -h, --help                 print help, exit 0
  -v, --version               print version, exit 0
  -c, --config PATH           override config file path
  -l, --log-level LEVEL       fatal:alert:crit:error:warn:notice:info:dbg
  -o, --log-output MASK       bitmask of log sinks [0,127]
  -i, --mqtt-ip IP            broker address
  -p, --mqtt-port PORT        broker port [0,65535]
  -t, --mqtt-topic TOPIC      base topic prefix
      --mqtt-id ID             client id
      --modbus-max-re-time N   back-off cap, seconds
      --modbus-poll-list PATH  poll-list file
      --modbus-map-list PATH   legacy reg-topic map (accepted, unused)`)
}
