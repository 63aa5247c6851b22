package monitor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Compile-time interface guard.
var _ Check = (*ICMPCheck)(nil)

const (
	defaultPingCount   = 3
	defaultPingTimeout = 5 * time.Second
)

// ICMPCheck pings a host and succeeds if any echo reply arrives.
type ICMPCheck struct {
	host       string
	count      int
	timeout    time.Duration
	privileged bool
}

// NewICMPCheck creates an ICMP check for spec. Raw sockets are used on
// Windows, where unprivileged ICMP is unavailable.
func NewICMPCheck(spec ICMPSpec) *ICMPCheck {
	c := &ICMPCheck{
		host:       spec.Host,
		count:      spec.Count,
		timeout:    spec.TimeoutAfter,
		privileged: runtime.GOOS == "windows",
	}
	if c.count == 0 {
		c.count = defaultPingCount
	}
	if c.timeout == 0 {
		c.timeout = defaultPingTimeout
	}
	return c
}

// Check sends the configured number of echo requests.
func (c *ICMPCheck) Check(ctx context.Context) error {
	pinger, err := probing.NewPinger(c.host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", c.host, err)
	}
	pinger.Count = c.count
	pinger.Timeout = c.timeout
	pinger.SetPrivileged(c.privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", c.host, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return fmt.Errorf("no echo replies from %s (%d sent)", c.host, stats.PacketsSent)
	}
	return nil
}
