package monitor

import (
	"context"
	"net"
)

// Compile-time interface guard.
var _ Check = (*TCPCheck)(nil)

// TCPCheck tests TCP connectivity to a host:port target.
type TCPCheck struct {
	address string
}

// NewTCPCheck creates a TCP check for spec.
func NewTCPCheck(spec TCPSpec) *TCPCheck {
	return &TCPCheck{address: spec.Address}
}

// Check succeeds iff a connection is established before ctx expires.
func (c *TCPCheck) Check(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return err
	}
	return conn.Close()
}
