// Package definition reads monitor definitions from documents on disk and
// from the SQLite store, and merges them into one deduplicated list.
package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/heartbeat/internal/monitor"
	"gopkg.in/yaml.v3"
)

// ErrNoCheck is returned for a document without a monitor section.
var ErrNoCheck = errors.New("definition has no monitor section")

// Format selects the document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatForPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Document is the on-disk and over-the-wire shape of a definition.
// Durations are milliseconds.
type Document struct {
	Name      string         `json:"name" yaml:"name"`
	Namespace string         `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Interval  int64          `json:"interval" yaml:"interval"`
	Monitor   *CheckDocument `json:"monitor,omitempty" yaml:"monitor,omitempty"`
}

// CheckDocument holds the variant-specific fields. Only the fields of the
// variant named by Type are read.
type CheckDocument struct {
	Type         CheckTag `json:"type" yaml:"type"`
	TimeOut      int64    `json:"timeOut,omitempty" yaml:"timeOut,omitempty"`
	URL          string   `json:"url,omitempty" yaml:"url,omitempty"`
	ResponseCode int      `json:"responseCode,omitempty" yaml:"responseCode,omitempty"`
	Address      string   `json:"address,omitempty" yaml:"address,omitempty"`
	Host         string   `json:"host,omitempty" yaml:"host,omitempty"`
	Count        int      `json:"count,omitempty" yaml:"count,omitempty"`
}

// CheckTag is a check type given either as a name or as its number.
type CheckTag string

// numbered maps the numeric tag form to names.
var numbered = []monitor.CheckType{monitor.CheckHTTP, monitor.CheckTCP, monitor.CheckICMP}

// UnmarshalJSON accepts "http", "HTTP" or 0.
func (t *CheckTag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = CheckTag(strings.ToLower(strings.TrimSpace(s)))
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("check type must be a string or number: %s", data)
	}
	*t = tagForNumber(n)
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (t *CheckTag) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: check type must be a scalar", value.Line)
	}
	if value.ShortTag() == "!!int" {
		n, err := strconv.Atoi(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*t = tagForNumber(n)
		return nil
	}
	*t = CheckTag(strings.ToLower(strings.TrimSpace(value.Value)))
	return nil
}

func tagForNumber(n int) CheckTag {
	if n >= 0 && n < len(numbered) {
		return CheckTag(numbered[n])
	}
	return CheckTag(strconv.Itoa(n))
}

// Decode parses one document and converts it to a validated Definition.
func Decode(data []byte, format Format) (monitor.Definition, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return monitor.Definition{}, fmt.Errorf("parse definition: %w", err)
	}
	return doc.Definition()
}

// Definition converts the document to a validated Definition. Unknown
// check types become monitor.UnknownSpec so dispatch can skip them.
func (d Document) Definition() (monitor.Definition, error) {
	if d.Monitor == nil {
		return monitor.Definition{}, fmt.Errorf("%q: %w", d.Name, ErrNoCheck)
	}
	def := monitor.Definition{
		Name:      strings.TrimSpace(d.Name),
		Namespace: d.Namespace,
		Interval:  millis(d.Interval),
		Check:     d.Monitor.spec(),
	}
	if err := def.Validate(); err != nil {
		return monitor.Definition{}, err
	}
	return def, nil
}

func (c *CheckDocument) spec() monitor.CheckSpec {
	timeout := millis(c.TimeOut)
	switch monitor.CheckType(c.Type) {
	case monitor.CheckHTTP:
		return monitor.HTTPSpec{URL: c.URL, TimeoutAfter: timeout, ExpectedStatus: c.ResponseCode}
	case monitor.CheckTCP:
		return monitor.TCPSpec{Address: c.Address, TimeoutAfter: timeout}
	case monitor.CheckICMP:
		return monitor.ICMPSpec{Host: c.Host, TimeoutAfter: timeout, Count: c.Count}
	default:
		return monitor.UnknownSpec{Tag: string(c.Type)}
	}
}

// Encode converts def back to its document form.
func Encode(def monitor.Definition) Document {
	doc := Document{
		Name:      def.Name,
		Namespace: def.Namespace,
		Interval:  def.Interval.Milliseconds(),
	}
	switch s := def.Check.(type) {
	case monitor.HTTPSpec:
		doc.Monitor = &CheckDocument{Type: CheckTag(monitor.CheckHTTP), TimeOut: s.TimeoutAfter.Milliseconds(), URL: s.URL, ResponseCode: s.ExpectedStatus}
	case monitor.TCPSpec:
		doc.Monitor = &CheckDocument{Type: CheckTag(monitor.CheckTCP), TimeOut: s.TimeoutAfter.Milliseconds(), Address: s.Address}
	case monitor.ICMPSpec:
		doc.Monitor = &CheckDocument{Type: CheckTag(monitor.CheckICMP), TimeOut: s.TimeoutAfter.Milliseconds(), Host: s.Host, Count: s.Count}
	case monitor.UnknownSpec:
		doc.Monitor = &CheckDocument{Type: CheckTag(s.Tag)}
	}
	return doc
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
