package monitor

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestTCPCheck_Success(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	check := NewTCPCheck(TCPSpec{Address: ln.Addr().String()})
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v, want nil", err)
	}
}

func TestTCPCheck_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	def := Definition{
		Name:     "db",
		Interval: time.Minute,
		Check:    TCPSpec{Address: addr, TimeoutAfter: time.Second},
	}
	m, err := (&TCPFactory{}).Create(def)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res := m.Execute(context.Background())
	if !res.Failed() {
		t.Fatalf("outcome = %s, want failure", res.Outcome)
	}
	if res.ErrorMessage == "" {
		t.Error("ErrorMessage is empty")
	}
	if m.Up() != 0 {
		t.Errorf("Up() = %d, want 0", m.Up())
	}
}

func TestTCPCheck_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	check := NewTCPCheck(TCPSpec{Address: "127.0.0.1:9"})
	if err := check.Check(ctx); err == nil {
		t.Error("Check() error = nil, want error for cancelled context")
	}
}
