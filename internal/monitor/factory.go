package monitor

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnsupportedCheck is returned by Factory.Create when called with a
// definition the factory cannot handle. Callers must check CanHandle first,
// so this error always indicates a programming mistake.
var ErrUnsupportedCheck = errors.New("factory cannot handle check type")

// Factory builds Monitors for one check variant.
type Factory interface {
	// CanHandle reports whether Create would accept def.
	CanHandle(def Definition) bool
	// Create builds a Monitor for def.
	Create(def Definition) (*Monitor, error)
}

// Select returns the first factory whose CanHandle accepts def.
func Select(factories []Factory, def Definition) (Factory, bool) {
	for _, f := range factories {
		if f.CanHandle(def) {
			return f, true
		}
	}
	return nil, false
}

// Compile-time interface guards.
var (
	_ Factory = (*HTTPFactory)(nil)
	_ Factory = (*TCPFactory)(nil)
	_ Factory = (*ICMPFactory)(nil)
)

// HTTPFactory builds monitors for HTTPSpec definitions.
type HTTPFactory struct {
	Client *http.Client
	Clock  Clock
}

// CanHandle reports whether def carries an HTTPSpec.
func (f *HTTPFactory) CanHandle(def Definition) bool {
	_, ok := def.Check.(HTTPSpec)
	return ok
}

// Create builds an HTTP monitor.
func (f *HTTPFactory) Create(def Definition) (*Monitor, error) {
	spec, ok := def.Check.(HTTPSpec)
	if !ok {
		return nil, unsupported("http", def)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("monitor %q: %w", def.Name, err)
	}
	return New(def, NewHTTPCheck(f.Client, spec), f.Clock), nil
}

// TCPFactory builds monitors for TCPSpec definitions.
type TCPFactory struct {
	Clock Clock
}

// CanHandle reports whether def carries a TCPSpec.
func (f *TCPFactory) CanHandle(def Definition) bool {
	_, ok := def.Check.(TCPSpec)
	return ok
}

// Create builds a TCP monitor.
func (f *TCPFactory) Create(def Definition) (*Monitor, error) {
	spec, ok := def.Check.(TCPSpec)
	if !ok {
		return nil, unsupported("tcp", def)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("monitor %q: %w", def.Name, err)
	}
	return New(def, NewTCPCheck(spec), f.Clock), nil
}

// ICMPFactory builds monitors for ICMPSpec definitions.
type ICMPFactory struct {
	Clock Clock
}

// CanHandle reports whether def carries an ICMPSpec.
func (f *ICMPFactory) CanHandle(def Definition) bool {
	_, ok := def.Check.(ICMPSpec)
	return ok
}

// Create builds an ICMP monitor.
func (f *ICMPFactory) Create(def Definition) (*Monitor, error) {
	spec, ok := def.Check.(ICMPSpec)
	if !ok {
		return nil, unsupported("icmp", def)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("monitor %q: %w", def.Name, err)
	}
	return New(def, NewICMPCheck(spec), f.Clock), nil
}

// DefaultFactories returns one factory per built-in check variant.
func DefaultFactories(client *http.Client, clock Clock) []Factory {
	return []Factory{
		&HTTPFactory{Client: client, Clock: clock},
		&TCPFactory{Clock: clock},
		&ICMPFactory{Clock: clock},
	}
}

func unsupported(want string, def Definition) error {
	got := def.CheckType()
	if got == "" {
		got = "none"
	}
	return fmt.Errorf("%w: %s factory given %q definition %q", ErrUnsupportedCheck, want, got, def.Name)
}
