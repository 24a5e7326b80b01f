package mqtt

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a minimal paho.Token that resolves immediately with a fixed
// error, or never resolves at all (to exercise Publish's timeout path).
type fakeToken struct {
	err     error
	done    chan struct{}
	noClose bool
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func newPendingFakeToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

// fakeClient implements paho.Client's publish path; the connection-state
// methods are trivial stubs and Connect and the subscribe-side methods panic,
// since Facade never calls them outside Connect, which this test suite
// deliberately doesn't exercise against a real or faked network.
type fakeClient struct {
	publishTopic string
	token        paho.Token
}

func (f *fakeClient) IsConnected() bool      { return true }
func (f *fakeClient) IsConnectionOpen() bool { return true }
func (f *fakeClient) Connect() paho.Token    { panic("not used by these tests") }
func (f *fakeClient) Disconnect(quiesce uint) {
}
func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.publishTopic = topic
	return f.token
}
func (f *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	panic("not used by these tests")
}
func (f *fakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	panic("not used by these tests")
}
func (f *fakeClient) Unsubscribe(topics ...string) paho.Token {
	panic("not used by these tests")
}
func (f *fakeClient) AddRoute(topic string, callback paho.MessageHandler) {
	panic("not used by these tests")
}
func (f *fakeClient) OptionsReader() paho.ClientOptionsReader {
	panic("not used by these tests")
}

func TestFacadePublishPrependsTopicPrefix(t *testing.T) {
	fc := &fakeClient{token: newFakeToken(nil)}
	f := &Facade{client: fc, topicPrefix: "m2md", publishTO: time.Second, logger: slog.New(slog.DiscardHandler)}

	if err := f.Publish(context.Background(), "device/value", []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if fc.publishTopic != "m2md/device/value" {
		t.Fatalf("published topic = %q, want %q", fc.publishTopic, "m2md/device/value")
	}
}

func TestFacadePublishRejectsOversizedTopic(t *testing.T) {
	fc := &fakeClient{token: newFakeToken(nil)}
	f := &Facade{client: fc, topicPrefix: strings.Repeat("x", TopicMax), publishTO: time.Second, logger: slog.New(slog.DiscardHandler)}

	if err := f.Publish(context.Background(), "suffix", []byte{0}); err != ErrTopicTooLong {
		t.Fatalf("Publish with oversized topic = %v, want ErrTopicTooLong", err)
	}
}

func TestFacadePublishReturnsTokenError(t *testing.T) {
	wantErr := errors.New("broker rejected publish")
	fc := &fakeClient{token: newFakeToken(wantErr)}
	f := &Facade{client: fc, topicPrefix: "m2md", publishTO: time.Second, logger: slog.New(slog.DiscardHandler)}

	if err := f.Publish(context.Background(), "device/value", []byte{1}); err != wantErr {
		t.Fatalf("Publish error = %v, want %v", err, wantErr)
	}
}

func TestFacadePublishTimesOutOnStuckToken(t *testing.T) {
	fc := &fakeClient{token: newPendingFakeToken()}
	f := &Facade{client: fc, topicPrefix: "m2md", publishTO: 10 * time.Millisecond, logger: slog.New(slog.DiscardHandler)}

	err := f.Publish(context.Background(), "device/value", []byte{1})
	if err == nil {
		t.Fatal("expected a timeout error for a token that never resolves")
	}
}

func TestFacadePublishRespectsContextCancellation(t *testing.T) {
	fc := &fakeClient{token: newPendingFakeToken()}
	f := &Facade{client: fc, topicPrefix: "m2md", publishTO: time.Minute, logger: slog.New(slog.DiscardHandler)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.Publish(ctx, "device/value", []byte{1}); err != context.Canceled {
		t.Fatalf("Publish with cancelled context = %v, want context.Canceled", err)
	}
}

func TestIsConnectionRefusedMatchesKnownSubstrings(t *testing.T) {
	cases := []string{"dial tcp: connection refused", "no route to host", "network is unreachable"}
	for _, msg := range cases {
		if !isConnectionRefused(errors.New(msg)) {
			t.Errorf("isConnectionRefused(%q) = false, want true", msg)
		}
	}
}

func TestIsConnectionRefusedRejectsUnrelatedError(t *testing.T) {
	if isConnectionRefused(errors.New("tls: handshake failure")) {
		t.Fatal("unrelated error classified as connection refused")
	}
}

func TestIsConnectionRefusedHandlesNil(t *testing.T) {
	if isConnectionRefused(nil) {
		t.Fatal("nil error should not be classified as connection refused")
	}
}
