package modbustransport

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/tbrandon/mbserver"

	"github.com/fisaks/m2md/internal/bridge"
)

func startTestServer(t *testing.T) (host string, port int, srv *mbserver.Server) {
	t.Helper()
	srv = mbserver.NewServer()
	srv.HoldingRegisters[0] = 1234
	srv.InputRegisters[0] = 1
	srv.InputRegisters[1] = 0

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	_ = ln.Close()

	if err := srv.ListenTCP(addr.String()); err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	t.Cleanup(srv.Close)
	return addr.IP.String(), addr.Port, srv
}

func dialTestSession(t *testing.T, host string, port int) bridge.ModbusSession {
	t.Helper()
	dial := NewDialFunc(2*time.Second, slog.New(slog.DiscardHandler))
	session, err := dial(host, port)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return session
}

func TestClientReadHoldingRegistersAgainstRealServer(t *testing.T) {
	host, port, _ := startTestServer(t)
	session := dialTestSession(t, host, port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := session.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer session.Close()

	if err := session.SetUnitID(1); err != nil {
		t.Fatalf("SetUnitID: %v", err)
	}

	words, err := session.ReadRegisters(ctx, bridge.FuncReadHolding, 0, 1)
	if err != nil {
		t.Fatalf("ReadRegisters: %v", err)
	}
	if len(words) != 1 || words[0] != 1234 {
		t.Fatalf("ReadRegisters = %v, want [1234]", words)
	}
}

func TestClientReadInputRegistersWidePairAgainstRealServer(t *testing.T) {
	host, port, srv := startTestServer(t)
	srv.InputRegisters[0] = 0x0001
	srv.InputRegisters[1] = 0x0000
	session := dialTestSession(t, host, port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer session.Close()

	words, err := session.ReadRegisters(ctx, bridge.FuncReadInput, 0, 2)
	if err != nil {
		t.Fatalf("ReadRegisters: %v", err)
	}
	if len(words) != 2 || words[0] != 1 || words[1] != 0 {
		t.Fatalf("ReadRegisters = %v, want [1 0]", words)
	}
}

func TestClientReadRejectsUnsupportedFunctionCode(t *testing.T) {
	host, port, _ := startTestServer(t)
	session := dialTestSession(t, host, port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer session.Close()

	if _, err := session.ReadRegisters(ctx, bridge.FunctionCode(6), 0, 1); err == nil {
		t.Fatal("expected an error for an unsupported function code")
	}
}

func TestClientCloseIsIdempotentWhenNeverConnected(t *testing.T) {
	c := &Client{addr: "127.0.0.1:1", timeout: time.Second}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on a never-connected client: %v", err)
	}
}
