package bridge

import (
	"context"
	"errors"
	"sync"
)

// fakeSession is an in-memory ModbusSession used by worker and registry
// tests so they never touch a real socket.
type fakeSession struct {
	mu sync.Mutex

	connectErr  error
	readErr     error
	connected   bool
	connectHits int
	readHits    int
	closeHits   int

	registers []uint16
}

func (f *fakeSession) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectHits++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeHits++
	f.connected = false
	return nil
}

func (f *fakeSession) SetUnitID(id uint8) error {
	return nil
}

func (f *fakeSession) ReadRegisters(ctx context.Context, fc FunctionCode, address, quantity uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readHits++
	if f.readErr != nil {
		return nil, f.readErr
	}
	if !f.connected {
		return nil, errors.New("connection closed")
	}
	if len(f.registers) == 0 {
		return make([]uint16, quantity), nil
	}
	return f.registers, nil
}

// fakePublisher records every publish so tests can assert on it.
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMsg
	err       error
}

type publishedMsg struct {
	topic   string
	payload []byte
}

func (f *fakePublisher) Publish(ctx context.Context, topicSuffix string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMsg{topic: topicSuffix, payload: payload})
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}
