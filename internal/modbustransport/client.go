// Package modbustransport adapts github.com/goburrow/modbus's TCP client to
// the bridge.ModbusSession interface consumed by the device worker.
package modbustransport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goburrow/modbus"

	"github.com/fisaks/m2md/internal/bridge"
	"github.com/fisaks/m2md/internal/logging"
)

// Client wraps a single goburrow/modbus TCP handler. It is not safe for
// concurrent use; the bridge only ever drives one from its owning worker
// goroutine.
type Client struct {
	addr    string
	timeout time.Duration
	logger  *slog.Logger

	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// NewDialFunc returns a bridge.DialFunc that builds goburrow/modbus TCP
// clients, for wiring into bridge.NewRegistry.
func NewDialFunc(timeout time.Duration, logger *slog.Logger) bridge.DialFunc {
	return func(host string, port int) (bridge.ModbusSession, error) {
		return &Client{
			addr:    fmt.Sprintf("%s:%d", host, port),
			timeout: timeout,
			logger:  logger,
		}, nil
	}
}

func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := modbus.NewTCPClientHandler(c.addr)
	h.Timeout = c.timeout
	if c.logger != nil {
		h.Logger = logging.WrapStd(c.logger, "addr", c.addr)
	}
	if err := h.Connect(); err != nil {
		return err
	}
	c.handler = h
	c.client = modbus.NewClient(h)
	return nil
}

func (c *Client) Close() error {
	if c.handler == nil {
		return nil
	}
	err := c.handler.Close()
	c.handler = nil
	c.client = nil
	return err
}

func (c *Client) SetUnitID(id uint8) error {
	if c.handler == nil {
		return fmt.Errorf("modbustransport: not connected")
	}
	c.handler.SlaveId = id
	return nil
}

func (c *Client) ReadRegisters(ctx context.Context, fc bridge.FunctionCode, address, quantity uint16) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.client == nil {
		return nil, fmt.Errorf("modbustransport: not connected")
	}

	var raw []byte
	var err error
	switch fc {
	case bridge.FuncReadHolding:
		raw, err = c.client.ReadHoldingRegisters(address, quantity)
	case bridge.FuncReadInput:
		raw, err = c.client.ReadInputRegisters(address, quantity)
	default:
		return nil, fmt.Errorf("modbustransport: unsupported function code %v", fc)
	}
	if err != nil {
		return nil, err
	}
	if len(raw) != int(quantity)*2 {
		return nil, fmt.Errorf("modbustransport: expected %d bytes, got %d", int(quantity)*2, len(raw))
	}

	words := make([]uint16, quantity)
	for i := range words {
		words[i] = uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
	}
	return words, nil
}
