package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"nethead/internal/domain"
)

// JSONCodec decodes JSON payloads and exports listings as JSON
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the content format served by this codec
func (c *JSONCodec) Format() domain.ContentFormat {
	return domain.FormatJSON
}

// DecodeHello decodes {"iid": "..."}
func (c *JSONCodec) DecodeHello(payload []byte) (*domain.Hello, error) {
	m, err := c.decodeObject(payload)
	if err != nil {
		return nil, err
	}
	return helloFromMap(m)
}

// DecodeTelemetry decodes {"<key>": <dBm>, ...} or {"n": "<key>", "s": <dBm>}
func (c *JSONCodec) DecodeTelemetry(payload []byte) (*domain.TelemetryBatch, error) {
	m, err := c.decodeObject(payload)
	if err != nil {
		return nil, err
	}
	return telemetryFromMap(m, jsonInt)
}

func (c *JSONCodec) decodeObject(payload []byte) (map[string]any, error) {
	var m map[string]any
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&m); err != nil {
		return nil, &domain.ValidationError{Field: "payload", Reason: fmt.Sprintf("failed to parse JSON: %v", err)}
	}
	if m == nil {
		return nil, &domain.ValidationError{Field: "payload", Reason: "expected a JSON object"}
	}
	return m, nil
}

func jsonInt(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok || strings.ContainsAny(n.String(), ".eE") {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int(i), true
}

// Name returns the output format identifier
func (c *JSONCodec) Name() string {
	return "json"
}

// Export writes the listing as indented JSON
func (c *JSONCodec) Export(listing *Listing, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(listing); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
