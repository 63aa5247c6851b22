package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/heartbeat/internal/event"
	"github.com/HerbHall/heartbeat/internal/monitor"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

func newTestClient(namespace string) *Client {
	return newClient(nil, "test", namespace, zap.NewNop())
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newTestClient("")

	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel not closed on Unregister")
	}

	// A second Unregister must not close the channel again.
	hub.Unregister(c)
}

func TestHub_BroadcastNamespaceFilter(t *testing.T) {
	hub := NewHub(zap.NewNop())
	all := newTestClient("")
	prod := newTestClient("prod")
	hub.Register(all)
	hub.Register(prod)

	hub.Broadcast(Message{Type: MessageResult, Namespace: "staging"})
	hub.Broadcast(Message{Type: MessageResult, Namespace: "prod"})

	if len(all.send) != 2 {
		t.Errorf("unfiltered client got %d messages, want 2", len(all.send))
	}
	if len(prod.send) != 1 {
		t.Fatalf("prod client got %d messages, want 1", len(prod.send))
	}
	if msg := <-prod.send; msg.Namespace != "prod" {
		t.Errorf("prod client got namespace %q", msg.Namespace)
	}
}

func TestHub_BroadcastDropsWhenFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newTestClient("")
	hub.Register(c)

	for range sendBuffer + 10 {
		hub.Broadcast(Message{Type: MessageResult})
	}
	if len(c.send) != sendBuffer {
		t.Errorf("buffered = %d, want %d", len(c.send), sendBuffer)
	}
}

func TestHub_ConcurrentBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := newTestClient("")
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(Message{Type: MessageResult})
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestMessageFor(t *testing.T) {
	res := monitor.Result{Name: "api", Namespace: "prod", Outcome: monitor.OutcomeFailure, ErrorMessage: "down"}
	change := event.MonitorChange{Key: "api", Name: "api", Namespace: "prod"}

	tests := []struct {
		name   string
		event  event.Event
		want   MessageType
		wantOK bool
	}{
		{"result", event.Event{Topic: event.TopicResult, Payload: res}, MessageResult, true},
		{"registered", event.Event{Topic: event.TopicRegistered, Payload: change}, MessageRegistered, true},
		{"removed", event.Event{Topic: event.TopicRemoved, Payload: change}, MessageRemoved, true},
		{"wrong payload", event.Event{Topic: event.TopicResult, Payload: "x"}, "", false},
		{"mismatched topic", event.Event{Topic: event.TopicRegistered, Payload: res}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := messageFor(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (msg.Type != tt.want || msg.Namespace != "prod") {
				t.Errorf("message = %+v", msg)
			}
		})
	}
}

func TestHandler_StreamsResults(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	h := NewHandler(bus, zap.NewNop())
	defer h.Close()

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/results?namespace=prod"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for h.Hub().ClientCount() == 0 {
		if ctx.Err() != nil {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	bus.Publish(ctx, event.Event{Topic: event.TopicResult, Payload: monitor.Result{Name: "skip", Namespace: "dev", Outcome: monitor.OutcomeSuccess}})
	bus.Publish(ctx, event.Event{Topic: event.TopicResult, Payload: monitor.Result{Name: "api", Namespace: "prod", Outcome: monitor.OutcomeFailure, ErrorMessage: "Bad Gateway"}})

	var got struct {
		Type      MessageType `json:"type"`
		Namespace string      `json:"namespace"`
		Data      struct {
			Name         string `json:"name"`
			Outcome      string `json:"outcome"`
			ErrorMessage string `json:"error_message"`
		} `json:"data"`
	}
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Type != MessageResult || got.Data.Name != "api" {
		t.Errorf("message = %+v, want result for api", got)
	}
	if got.Data.Outcome != "failure" || got.Data.ErrorMessage != "Bad Gateway" {
		t.Errorf("data = %+v", got.Data)
	}
}
