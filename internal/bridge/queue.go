package bridge

import "context"

// QueueCapacity is the fixed depth of every device's command queue.
const QueueCapacity = 16

// CommandQueue is a bounded, single-consumer command channel. The scheduler
// is the only non-blocking (TrySend) writer; a worker is the only reader.
// Blocking Write is used by the registry to enqueue a new device's first
// Connect and by the worker to self-enqueue its own reconnect attempts.
type CommandQueue struct {
	ch   chan Command
	done chan struct{}
}

func newCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{
		ch:   make(chan Command, capacity),
		done: make(chan struct{}),
	}
}

// Write blocks until the command is enqueued, the queue is stopped, or ctx
// is cancelled.
func (q *CommandQueue) Write(ctx context.Context, cmd Command) error {
	select {
	case <-q.done:
		return ErrCancelled
	default:
	}
	select {
	case q.ch <- cmd:
		return nil
	case <-q.done:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues cmd without blocking, reporting ErrWouldBlock if the
// queue is full.
func (q *CommandQueue) TrySend(cmd Command) error {
	select {
	case q.ch <- cmd:
		return nil
	case <-q.done:
		return ErrCancelled
	default:
		return ErrWouldBlock
	}
}

// Read blocks for the next command, returning ErrCancelled once Stop has
// been called and no further commands are pending.
func (q *CommandQueue) Read(ctx context.Context) (Command, error) {
	select {
	case cmd := <-q.ch:
		return cmd, nil
	case <-q.done:
		select {
		case cmd := <-q.ch:
			return cmd, nil
		default:
			return Command{}, ErrCancelled
		}
	case <-ctx.Done():
		return Command{}, ctx.Err()
	}
}

// Clear discards every currently queued command without blocking.
func (q *CommandQueue) Clear() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

// Stop marks the queue cancelled. Safe to call more than once.
func (q *CommandQueue) Stop() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}
