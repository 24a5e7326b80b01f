package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ServersMax is the fixed number of devices the registry can hold at once.
const ServersMax = 16

type deviceKey struct {
	host string
	port int
}

func (k deviceKey) String() string {
	return fmt.Sprintf("%s:%d", k.host, k.port)
}

// deviceSlot is one entry of the registry's fixed-size table. A slot is
// active iff its worker goroutine is running; active transitions from true
// to false only inside that worker's own teardown.
type deviceSlot struct {
	key      deviceKey
	active   atomic.Bool
	session  ModbusSession
	pollList *PollList
	queue    *CommandQueue

	mu             sync.Mutex // guards pollList contents and overflowStreak
	overflowStreak int
}

// DialFunc opens a new Modbus/TCP session to (host, port). Production code
// wires this to internal/modbustransport.NewDialFunc; tests substitute a fake.
type DialFunc func(host string, port int) (ModbusSession, error)

// Registry is the fixed-capacity table of known devices, one worker
// goroutine per active entry. It is the single entry point other components
// use to look up or create a device and to add or remove polls against it.
type Registry struct {
	publisher  Publisher
	dial       DialFunc
	maxBackoff time.Duration
	wakeup     *Wakeup
	logger     *slog.Logger

	mu    sync.Mutex // guards slot allocation only, never slot contents
	slots [ServersMax]*deviceSlot

	wg sync.WaitGroup
}

func NewRegistry(publisher Publisher, dial DialFunc, maxBackoff time.Duration, wakeup *Wakeup, logger *slog.Logger) *Registry {
	return &Registry{publisher: publisher, dial: dial, maxBackoff: maxBackoff, wakeup: wakeup, logger: logger}
}

// validIPv4 rejects anything net.ParseIP can't resolve to a 4-byte address,
// including the all-zeros address. This replaces the original
// ntohl(inet_addr())==INADDR_ANY check with a real parser.
func validIPv4(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	v4 := ip.To4()
	return v4 != nil && !v4.Equal(net.IPv4zero)
}

func (r *Registry) find(key deviceKey) *deviceSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s != nil && s.active.Load() && s.key == key {
			return s
		}
	}
	return nil
}

// FindOrCreate returns the slot for (host, port), creating and starting a
// new worker for it if none exists yet. Returns ErrInvalidAddress for a
// malformed host, ErrNoSpace once ServersMax devices are active, or
// ErrOutOfMemory if the underlying dial fails.
func (r *Registry) FindOrCreate(ctx context.Context, host string, port int) (*deviceSlot, error) {
	if !validIPv4(host) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, host)
	}
	key := deviceKey{host, port}
	if slot := r.find(key); slot != nil {
		return slot, nil
	}

	r.mu.Lock()
	for _, s := range r.slots {
		if s != nil && s.active.Load() && s.key == key {
			r.mu.Unlock()
			return s, nil
		}
	}
	idx := -1
	for i, s := range r.slots {
		if s == nil || !s.active.Load() {
			idx = i
			break
		}
	}
	if idx == -1 {
		r.mu.Unlock()
		return nil, ErrNoSpace
	}
	r.mu.Unlock()

	session, err := r.dial(host, port)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	slot := &deviceSlot{
		key:      key,
		session:  session,
		pollList: NewPollList(),
		queue:    newCommandQueue(QueueCapacity),
	}
	slot.active.Store(true)

	r.mu.Lock()
	if r.slots[idx] != nil && r.slots[idx].active.Load() {
		idx = -1
		for i, s := range r.slots {
			if s == nil || !s.active.Load() {
				idx = i
				break
			}
		}
	}
	if idx == -1 {
		r.mu.Unlock()
		_ = session.Close()
		return nil, ErrNoSpace
	}
	r.slots[idx] = slot
	r.mu.Unlock()

	worker := newWorker(key, session, slot.queue, r.publisher, r.maxBackoff, r.logger)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		worker.run(ctx, slot)
	}()

	// Best-effort: if the queue was already stopped by a racing Shutdown,
	// the worker will observe ErrCancelled on its own next Read and tear
	// itself down; there's nothing more to unwind here.
	_ = slot.queue.Write(ctx, Command{Kind: CmdConnect})
	return slot, nil
}

// AddPoll finds or creates the device at (host, port) and merges p into its
// poll list, waking the scheduler so the new deadline is picked up promptly.
func (r *Registry) AddPoll(ctx context.Context, p Poll, host string, port int) error {
	slot, err := r.FindOrCreate(ctx, host, port)
	if err != nil {
		return err
	}
	slot.mu.Lock()
	err = slot.pollList.Add(p)
	slot.mu.Unlock()
	if err != nil {
		return err
	}
	r.wakeup.Signal()
	return nil
}

// DeletePoll removes a poll from an existing device's list. Returns
// ErrNotFound if the device or the poll itself doesn't exist.
func (r *Registry) DeletePoll(id Identity, host string, port int) error {
	slot := r.find(deviceKey{host, port})
	if slot == nil {
		return ErrNotFound
	}
	slot.mu.Lock()
	err := slot.pollList.Delete(id)
	slot.mu.Unlock()
	if err != nil {
		return err
	}
	r.wakeup.Signal()
	return nil
}

func (r *Registry) activeSlots() []*deviceSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*deviceSlot, 0, ServersMax)
	for _, s := range r.slots {
		if s != nil && s.active.Load() {
			out = append(out, s)
		}
	}
	return out
}

// Shutdown stops every device worker and waits for each to finish closing
// its Modbus session and freeing its poll list.
func (r *Registry) Shutdown() {
	for _, s := range r.activeSlots() {
		s.queue.Stop()
	}
	r.wg.Wait()
}
