package monitor

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func httpMonitor(t *testing.T, url string, expected int) *Monitor {
	t.Helper()
	def := Definition{
		Name:     "web",
		Interval: time.Minute,
		Check:    HTTPSpec{URL: url, TimeoutAfter: 5 * time.Second, ExpectedStatus: expected},
	}
	m, err := (&HTTPFactory{}).Create(def)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return m
}

// rawStatusServer answers every request with statusLine verbatim, letting
// tests send status lines net/http would never produce.
func rawStatusServer(t *testing.T, statusLine string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if _, err := http.ReadRequest(bufio.NewReader(c)); err != nil {
					return
				}
				_, _ = c.Write([]byte(statusLine + "\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"))
			}(conn)
		}
	}()
	return "http://" + ln.Addr().String()
}

func TestHTTPCheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := httpMonitor(t, server.URL, http.StatusOK)
	res := m.Execute(context.Background())

	if !res.Success() {
		t.Fatalf("outcome = %s (%q), want success", res.Outcome, res.ErrorMessage)
	}
	if m.Up() != 1 {
		t.Errorf("Up() = %d, want 1", m.Up())
	}
}

func TestHTTPCheck_ExpectedNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	res := httpMonitor(t, server.URL, http.StatusNoContent).Execute(context.Background())
	if !res.Success() {
		t.Fatalf("outcome = %s (%q), want success", res.Outcome, res.ErrorMessage)
	}
}

func TestHTTPCheck_StatusMismatchUsesReasonPhrase(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{"server error", http.StatusInternalServerError, "Internal Server Error"},
		{"not found", http.StatusNotFound, "Not Found"},
		{"service unavailable", http.StatusServiceUnavailable, "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			m := httpMonitor(t, server.URL, http.StatusOK)
			res := m.Execute(context.Background())

			if !res.Failed() {
				t.Fatalf("outcome = %s, want failure", res.Outcome)
			}
			if res.ErrorMessage != tt.want {
				t.Errorf("ErrorMessage = %q, want %q", res.ErrorMessage, tt.want)
			}
			if m.Up() != 0 {
				t.Errorf("Up() = %d, want 0", m.Up())
			}
		})
	}
}

func TestHTTPCheck_EmptyReasonPhrase(t *testing.T) {
	for _, line := range []string{"HTTP/1.1 500 ", "HTTP/1.1 500"} {
		t.Run(strings.TrimSpace(line), func(t *testing.T) {
			url := rawStatusServer(t, line)

			m := httpMonitor(t, url, http.StatusOK)
			res := m.Execute(context.Background())

			if !res.Failed() {
				t.Fatalf("outcome = %s, want failure", res.Outcome)
			}
			if res.ErrorMessage != UnknownReason {
				t.Errorf("ErrorMessage = %q, want %q", res.ErrorMessage, UnknownReason)
			}
			if m.Up() != 0 {
				t.Errorf("Up() = %d, want 0", m.Up())
			}
		})
	}
}

func TestHTTPCheck_CustomReasonPhrase(t *testing.T) {
	url := rawStatusServer(t, "HTTP/1.1 503 Down For Maintenance")

	res := httpMonitor(t, url, http.StatusOK).Execute(context.Background())
	if res.ErrorMessage != "Down For Maintenance" {
		t.Errorf("ErrorMessage = %q, want %q", res.ErrorMessage, "Down For Maintenance")
	}
}

func TestHTTPCheck_ConnectionRefused(t *testing.T) {
	// Grab a free port, then close the listener so nothing accepts.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	url := "http://" + addr
	check := NewHTTPCheck(nil, HTTPSpec{URL: url, ExpectedStatus: http.StatusOK})
	wantErr := check.Check(context.Background())
	if wantErr == nil {
		t.Fatal("direct Check() error = nil, want connection error")
	}

	m := httpMonitor(t, url, http.StatusOK)
	res := m.Execute(context.Background())

	if !res.Failed() {
		t.Fatalf("outcome = %s, want failure", res.Outcome)
	}
	if !strings.Contains(res.ErrorMessage, "connection refused") {
		t.Errorf("ErrorMessage = %q, want it to contain %q", res.ErrorMessage, "connection refused")
	}
	if res.ErrorMessage != wantErr.Error() {
		t.Errorf("ErrorMessage = %q, want %q", res.ErrorMessage, wantErr.Error())
	}
	if m.Up() != 0 {
		t.Errorf("Up() = %d, want 0", m.Up())
	}
}

func TestHTTPCheck_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	def := Definition{
		Name:     "slow",
		Interval: time.Minute,
		Check:    HTTPSpec{URL: server.URL, TimeoutAfter: 50 * time.Millisecond, ExpectedStatus: http.StatusOK},
	}
	m, err := (&HTTPFactory{}).Create(def)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res := m.Execute(context.Background())
	if !res.Failed() {
		t.Fatalf("outcome = %s, want failure", res.Outcome)
	}
	if !strings.Contains(res.ErrorMessage, "deadline exceeded") {
		t.Errorf("ErrorMessage = %q, want deadline exceeded", res.ErrorMessage)
	}
}

// silentListener accepts connections and never writes to them.
func silentListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestHTTPCheck_SilentServerWithoutTimeout(t *testing.T) {
	def := Definition{
		Name:     "hang",
		Interval: 200 * time.Millisecond,
		Check:    HTTPSpec{URL: "http://" + silentListener(t) + "/", ExpectedStatus: http.StatusOK},
	}
	m, err := (&HTTPFactory{}).Create(def)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	done := make(chan Result, 1)
	go func() { done <- m.Execute(context.Background()) }()

	select {
	case res := <-done:
		if !res.Failed() {
			t.Fatalf("outcome = %s, want failure", res.Outcome)
		}
		if !strings.Contains(res.ErrorMessage, "deadline exceeded") {
			t.Errorf("ErrorMessage = %q, want deadline exceeded", res.ErrorMessage)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Execute blocked on a server that never answers")
	}
}

func TestStatusError(t *testing.T) {
	err := error(&StatusError{StatusCode: 502, Expected: 200})
	if err.Error() != UnknownReason {
		t.Errorf("Error() = %q, want %q", err.Error(), UnknownReason)
	}

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 502 {
		t.Errorf("errors.As() did not expose status code")
	}
}
