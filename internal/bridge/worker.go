package bridge

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// CommandKind discriminates the two command shapes a device worker accepts.
type CommandKind uint8

const (
	CmdConnect CommandKind = iota
	CmdPoll
)

// Command is the value type carried on a device's queue. Poll is only
// meaningful when Kind is CmdPoll; it's a snapshot taken by the scheduler,
// not a live reference into the poll list.
type Command struct {
	Kind CommandKind
	Poll Poll
}

// Publisher is the narrow surface a worker needs from the MQTT facade.
type Publisher interface {
	Publish(ctx context.Context, topicSuffix string, payload []byte) error
}

// ModbusSession is the narrow surface a worker needs from a Modbus/TCP
// transport. internal/modbustransport supplies the goburrow/modbus-backed
// implementation; tests substitute a fake.
type ModbusSession interface {
	Connect(ctx context.Context) error
	Close() error
	SetUnitID(id uint8) error
	ReadRegisters(ctx context.Context, fc FunctionCode, address, quantity uint16) ([]uint16, error)
}

const initialBackoff = time.Second

// Worker owns one device's Modbus session for the lifetime of its command
// queue: it alternates between attempting to connect and servicing poll
// commands, reconnecting with capped exponential backoff on failure.
type Worker struct {
	key        deviceKey
	session    ModbusSession
	queue      *CommandQueue
	publisher  Publisher
	maxBackoff time.Duration
	logger     *slog.Logger

	backoff time.Duration
}

func newWorker(key deviceKey, session ModbusSession, queue *CommandQueue, publisher Publisher, maxBackoff time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		key:        key,
		session:    session,
		queue:      queue,
		publisher:  publisher,
		maxBackoff: maxBackoff,
		logger:     logger,
		backoff:    initialBackoff,
	}
}

// run is the worker's goroutine body. It returns, and tears the slot down,
// once its queue reports ErrCancelled or ctx is done.
func (w *Worker) run(ctx context.Context, slot *deviceSlot) {
	defer w.teardown(slot)
	for {
		cmd, err := w.queue.Read(ctx)
		if err != nil {
			return
		}
		switch cmd.Kind {
		case CmdConnect:
			if !w.connect(ctx) {
				return
			}
		case CmdPoll:
			w.poll(ctx, cmd.Poll)
		}
	}
}

func (w *Worker) teardown(slot *deviceSlot) {
	_ = w.session.Close()
	slot.mu.Lock()
	slot.pollList.Destroy()
	slot.mu.Unlock()
	slot.active.Store(false)
	w.logger.Info("device worker stopped", "host", w.key.host, "port", w.key.port)
}

// connect attempts one connection. On success it resets the backoff and
// returns true so the run loop keeps going. On failure it sleeps for the
// current backoff, doubles it (capped), and self-enqueues another Connect
// attempt. It returns false when ctx is done during the backoff sleep or when
// that self-enqueue fails (the queue has been stopped or ctx is done),
// telling run to exit instead of looping forever.
func (w *Worker) connect(ctx context.Context) bool {
	_ = w.session.Close()
	if err := w.session.Connect(ctx); err == nil {
		w.backoff = initialBackoff
		w.logger.Info("device connected", "host", w.key.host, "port", w.key.port)
		return true
	} else {
		w.logger.Warn("device connect failed", "host", w.key.host, "port", w.key.port, "error", err, "retry_in", w.backoff)
	}

	select {
	case <-time.After(w.backoff):
	case <-ctx.Done():
		return false
	}
	w.backoff *= 2
	if w.backoff > w.maxBackoff {
		w.backoff = w.maxBackoff
	}
	w.queue.Clear()
	if err := w.queue.Write(ctx, Command{Kind: CmdConnect}); err != nil {
		return false
	}
	return true
}

// poll services one due register read: sets the unit id, reads the
// registers, converts and scales the value, and publishes it. Every failure
// is logged and dropped rather than retried; a transient transport error
// additionally closes the session and re-queues a reconnect, since
// goburrow/modbus has no built-in auto-recovery for a dead TCP connection.
func (w *Worker) poll(ctx context.Context, p Poll) {
	if !p.FunctionCode.Valid() {
		w.logger.Warn("dropping poll with unsupported function code", "function", p.FunctionCode)
		return
	}
	if err := w.session.SetUnitID(p.UnitID); err != nil {
		w.logger.Warn("set unit id failed", "host", w.key.host, "port", w.key.port, "unit", p.UnitID, "error", err)
		return
	}
	words, err := w.session.ReadRegisters(ctx, p.FunctionCode, p.RegisterAddress, uint16(p.Width))
	if err != nil {
		w.logger.Error("modbus read failed", "host", w.key.host, "port", w.key.port, "unit", p.UnitID, "register", p.RegisterAddress, "error", err)
		if isTransientTransportError(err) {
			_ = w.session.Close()
			w.queue.Clear()
			_ = w.queue.Write(ctx, Command{Kind: CmdConnect})
		}
		return
	}
	value := convertRegisters(words, p.Signed, p.Width) * p.Scale
	payload := encodeFloat32(value)
	if err := w.publisher.Publish(ctx, p.Topic, payload); err != nil {
		w.logger.Error("mqtt publish failed", "topic", p.Topic, "error", err)
	}
}

func isTransientTransportError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, substr := range []string{"connection", "broken pipe", "reset", "closed", "i/o", "timeout"} {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
