package bridge

import "errors"

// Sentinel errors returned across the bridge's component boundaries, checked
// with errors.Is. Each corresponds to one row of the error table in the
// design notes.
var (
	ErrInvalidInput   = errors.New("bridge: invalid input")
	ErrNoSpace        = errors.New("bridge: registry is full")
	ErrOutOfMemory    = errors.New("bridge: allocation failed")
	ErrNotFound       = errors.New("bridge: not found")
	ErrWouldBlock     = errors.New("bridge: queue is full")
	ErrCancelled      = errors.New("bridge: cancelled")
	ErrInvalidAddress = errors.New("bridge: invalid ipv4 address")
)
