// Package mqtt is the bridge's C8 publish facade: a thin, topic-prefixing
// wrapper over github.com/eclipse/paho.mqtt.golang that owns the broker
// connection's startup and ongoing reconnect policy.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// TopicMax bounds the fully-qualified topic (prefix + suffix) this facade
// will accept, matching the bridge's fixed-size topic buffer.
const TopicMax = 1024

var ErrTopicTooLong = errors.New("mqtt: topic exceeds maximum length")

// Facade is the narrow publish surface the rest of the bridge depends on.
type Facade struct {
	client      paho.Client
	topicPrefix string
	publishTO   time.Duration
	logger      *slog.Logger
}

// Config collects everything needed to build and connect a Facade.
type Config struct {
	BrokerURL      string
	ClientID       string
	TopicPrefix    string
	PublishTimeout time.Duration
	ConnectRetry   time.Duration
}

func defaultConfig(cfg Config) Config {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.ConnectRetry <= 0 {
		cfg.ConnectRetry = time.Second
	}
	return cfg
}

// Connect builds a paho client and blocks until the broker accepts the
// connection or ctx is cancelled. A connection refused by the broker is
// retried forever at cfg.ConnectRetry; any other connect failure is
// returned immediately as fatal, matching the "FatalStartup" exit policy.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Facade, error) {
	cfg = defaultConfig(cfg)

	opts := paho.NewClientOptions().AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost, reconnecting", "error", err)
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.BrokerURL)
	})

	client := paho.NewClient(opts)

	for {
		token := client.Connect()
		done := make(chan struct{})
		go func() {
			token.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			client.Disconnect(250)
			return nil, ctx.Err()
		}

		err := token.Error()
		if err == nil {
			break
		}
		if !isConnectionRefused(err) {
			return nil, fmt.Errorf("mqtt connect: %w", err)
		}
		logger.Warn("mqtt broker refused connection, retrying", "broker", cfg.BrokerURL, "retry_in", cfg.ConnectRetry)
		select {
		case <-time.After(cfg.ConnectRetry):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &Facade{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		publishTO:   cfg.PublishTimeout,
		logger:      logger,
	}, nil
}

func isConnectionRefused(err error) bool {
	return err != nil && (errors.Is(err, paho.ErrNotConnected) || containsConnRefused(err.Error()))
}

func containsConnRefused(s string) bool {
	for _, sub := range []string{"connection refused", "no route to host", "network is unreachable"} {
		if len(s) >= len(sub) && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// Publish prepends the configured topic prefix to topicSuffix and sends
// payload at QoS 0 (fire-and-forget, matching the bridge's "log, don't
// retry" publish policy). Returns ErrTopicTooLong before touching the
// network if the combined topic would exceed TopicMax.
func (f *Facade) Publish(ctx context.Context, topicSuffix string, payload []byte) error {
	topic := f.topicPrefix + "/" + topicSuffix
	if len(topic) > TopicMax {
		return ErrTopicTooLong
	}

	token := f.client.Publish(topic, 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-time.After(f.publishTO):
		return fmt.Errorf("mqtt: publish timeout after %v", f.publishTO)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker, waiting up to 250ms for in-flight
// publishes to drain.
func (f *Facade) Close() {
	f.client.Disconnect(250)
}
