// Package monitor implements interval-gated health monitors, the check
// variants they wrap, the factories that build them and the registry that
// holds them.
package monitor

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// MinInterval is the shortest interval a definition may request.
const MinInterval = 100 * time.Millisecond

// DefaultTimeout bounds an attempt whose check sets no timeout. A shorter
// interval bounds it instead.
const DefaultTimeout = 30 * time.Second

// ErrInvalidDefinition is returned when a definition fails validation.
var ErrInvalidDefinition = errors.New("invalid monitor definition")

// CheckType tags a check variant.
type CheckType string

const (
	CheckHTTP CheckType = "http"
	CheckTCP  CheckType = "tcp"
	CheckICMP CheckType = "icmp"
)

// CheckSpec is the closed set of check configurations. Adding a variant
// means adding a type here and a matching Factory.
type CheckSpec interface {
	Type() CheckType
	// Timeout bounds a single attempt. Zero selects the monitor default.
	Timeout() time.Duration
	Validate() error

	isCheckSpec()
}

// HTTPSpec configures an HTTP GET check.
type HTTPSpec struct {
	URL            string        `json:"url"`
	TimeoutAfter   time.Duration `json:"timeout"`
	ExpectedStatus int           `json:"expected_status"`
}

func (HTTPSpec) Type() CheckType          { return CheckHTTP }
func (s HTTPSpec) Timeout() time.Duration { return s.TimeoutAfter }
func (HTTPSpec) isCheckSpec()             {}

// Validate checks the URL and expected status code.
func (s HTTPSpec) Validate() error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("%w: url %q: %v", ErrInvalidDefinition, s.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url %q: scheme must be http or https", ErrInvalidDefinition, s.URL)
	}
	if s.ExpectedStatus < 100 || s.ExpectedStatus > 599 {
		return fmt.Errorf("%w: expected status %d out of range", ErrInvalidDefinition, s.ExpectedStatus)
	}
	if s.TimeoutAfter < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidDefinition)
	}
	return nil
}

// TCPSpec configures a TCP connect check against host:port.
type TCPSpec struct {
	Address      string        `json:"address"`
	TimeoutAfter time.Duration `json:"timeout"`
}

func (TCPSpec) Type() CheckType          { return CheckTCP }
func (s TCPSpec) Timeout() time.Duration { return s.TimeoutAfter }
func (TCPSpec) isCheckSpec()             {}

// Validate requires a host:port address.
func (s TCPSpec) Validate() error {
	if _, _, err := net.SplitHostPort(s.Address); err != nil {
		return fmt.Errorf("%w: address %q: %v", ErrInvalidDefinition, s.Address, err)
	}
	if s.TimeoutAfter < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidDefinition)
	}
	return nil
}

// ICMPSpec configures an ICMP echo check.
type ICMPSpec struct {
	Host         string        `json:"host"`
	TimeoutAfter time.Duration `json:"timeout"`
	Count        int           `json:"count"`
}

func (ICMPSpec) Type() CheckType          { return CheckICMP }
func (s ICMPSpec) Timeout() time.Duration { return s.TimeoutAfter }
func (ICMPSpec) isCheckSpec()             {}

// Validate requires a host and a non-negative packet count.
func (s ICMPSpec) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("%w: icmp host is required", ErrInvalidDefinition)
	}
	if s.Count < 0 {
		return fmt.Errorf("%w: negative packet count", ErrInvalidDefinition)
	}
	if s.TimeoutAfter < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidDefinition)
	}
	return nil
}

// UnknownSpec carries a check tag no variant recognizes. No factory
// handles it, so definitions holding one are never turned into monitors.
type UnknownSpec struct {
	Tag string `json:"tag"`
}

func (s UnknownSpec) Type() CheckType      { return CheckType(s.Tag) }
func (UnknownSpec) Timeout() time.Duration { return 0 }
func (UnknownSpec) isCheckSpec()           {}

// Validate accepts any tag; rejecting it is left to factory dispatch.
func (UnknownSpec) Validate() error { return nil }

// Definition describes one monitor. It is immutable once loaded.
type Definition struct {
	Name      string
	Namespace string
	Interval  time.Duration
	Check     CheckSpec

	// Source is the file the definition was read from, empty when it
	// arrived through the API.
	Source string
	// UpdatedAt orders competing definitions with the same name.
	UpdatedAt time.Time
}

// Key returns the registry key: the source path when known, else the name.
func (d Definition) Key() string {
	if d.Source != "" {
		return d.Source
	}
	return d.Name
}

// CheckType returns the tag of the check variant, or "" if none is set.
func (d Definition) CheckType() CheckType {
	if d.Check == nil {
		return ""
	}
	return d.Check.Type()
}

// Validate checks the common fields and the check variant.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if d.Interval < MinInterval {
		return fmt.Errorf("%w: interval %s below minimum %s", ErrInvalidDefinition, d.Interval, MinInterval)
	}
	if d.Check == nil {
		return fmt.Errorf("%w: no check configured", ErrInvalidDefinition)
	}
	return d.Check.Validate()
}
