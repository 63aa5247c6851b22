package definition

import (
	"errors"
	"testing"
	"time"

	"github.com/HerbHall/heartbeat/internal/monitor"
)

func TestDecode_HTTP(t *testing.T) {
	data := []byte(`{
		"name": "api",
		"namespace": "prod",
		"interval": 30000,
		"monitor": {"type": "http", "timeOut": 5000, "url": "https://example.com/health", "responseCode": 200}
	}`)

	def, err := Decode(data, FormatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if def.Name != "api" || def.Namespace != "prod" {
		t.Errorf("identity = %q/%q, want prod/api", def.Namespace, def.Name)
	}
	if def.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", def.Interval)
	}
	want := monitor.HTTPSpec{URL: "https://example.com/health", TimeoutAfter: 5 * time.Second, ExpectedStatus: 200}
	if def.Check != want {
		t.Errorf("Check = %#v, want %#v", def.Check, want)
	}
}

func TestDecode_CheckTagForms(t *testing.T) {
	tests := []struct {
		name string
		data string
		want monitor.CheckType
	}{
		{"lower string", `{"name":"a","interval":1000,"monitor":{"type":"tcp","address":"db:5432"}}`, monitor.CheckTCP},
		{"upper string", `{"name":"a","interval":1000,"monitor":{"type":"ICMP","host":"10.0.0.1"}}`, monitor.CheckICMP},
		{"number zero", `{"name":"a","interval":1000,"monitor":{"type":0,"url":"http://x","responseCode":204}}`, monitor.CheckHTTP},
		{"number one", `{"name":"a","interval":1000,"monitor":{"type":1,"address":"db:5432"}}`, monitor.CheckTCP},
		{"pascal keys", `{"Name":"a","Interval":1000,"Monitor":{"Type":"Http","Url":"http://x","ResponseCode":200}}`, monitor.CheckHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Decode([]byte(tt.data), FormatJSON)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if def.CheckType() != tt.want {
				t.Errorf("CheckType() = %q, want %q", def.CheckType(), tt.want)
			}
		})
	}
}

func TestDecode_UnknownTypeKept(t *testing.T) {
	def, err := Decode([]byte(`{"name":"mail","interval":1000,"monitor":{"type":"smtp"}}`), FormatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	spec, ok := def.Check.(monitor.UnknownSpec)
	if !ok {
		t.Fatalf("Check = %T, want UnknownSpec", def.Check)
	}
	if spec.Tag != "smtp" {
		t.Errorf("Tag = %q, want smtp", spec.Tag)
	}

	def, err = Decode([]byte(`{"name":"n","interval":1000,"monitor":{"type":7}}`), FormatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if def.CheckType() != "7" {
		t.Errorf("CheckType() = %q, want 7", def.CheckType())
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", `{{{`, nil},
		{"no monitor section", `{"name":"a","interval":1000}`, ErrNoCheck},
		{"interval below minimum", `{"name":"a","interval":98,"monitor":{"type":"http","url":"http://x","responseCode":200}}`, monitor.ErrInvalidDefinition},
		{"missing name", `{"interval":1000,"monitor":{"type":"http","url":"http://x","responseCode":200}}`, monitor.ErrInvalidDefinition},
		{"bad tcp address", `{"name":"a","interval":1000,"monitor":{"type":"tcp","address":"nohost"}}`, monitor.ErrInvalidDefinition},
		{"type is object", `{"name":"a","interval":1000,"monitor":{"type":{}}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), FormatJSON)
			if err == nil {
				t.Fatal("Decode() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecode_YAML(t *testing.T) {
	data := []byte(`
name: cache
namespace: staging
interval: 15000
monitor:
  type: 1
  timeOut: 250
  address: redis:6379
`)
	def, err := Decode(data, FormatYAML)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := monitor.TCPSpec{Address: "redis:6379", TimeoutAfter: 250 * time.Millisecond}
	if def.Check != want {
		t.Errorf("Check = %#v, want %#v", def.Check, want)
	}
	if def.Interval != 15*time.Second {
		t.Errorf("Interval = %v, want 15s", def.Interval)
	}
}

func TestEncodeDecode_PreservesCheck(t *testing.T) {
	def := monitor.Definition{
		Name:      "gw",
		Namespace: "edge",
		Interval:  2 * time.Second,
		Check:     monitor.ICMPSpec{Host: "10.0.0.1", TimeoutAfter: time.Second, Count: 2},
	}
	doc := Encode(def)
	got, err := doc.Definition()
	if err != nil {
		t.Fatalf("Definition() error = %v", err)
	}
	if got.Name != def.Name || got.Namespace != def.Namespace || got.Interval != def.Interval || got.Check != def.Check {
		t.Errorf("round trip = %#v, want %#v", got, def)
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]Format{
		"a.json":     FormatJSON,
		"a.yaml":     FormatYAML,
		"dir/b.YML":  FormatYAML,
		"no-ext":     FormatJSON,
		"c.json.bak": FormatJSON,
	}
	for path, want := range tests {
		if got := FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %v, want %v", path, got, want)
		}
	}
}
