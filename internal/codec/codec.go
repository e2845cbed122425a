package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"nethead/internal/domain"
)

// PayloadDecoder decodes mote request payloads of one content format
type PayloadDecoder interface {
	DecodeHello(payload []byte) (*domain.Hello, error)
	DecodeTelemetry(payload []byte) (*domain.TelemetryBatch, error)
	Format() domain.ContentFormat
}

// Exporter writes a directory listing in some output format
type Exporter interface {
	Export(listing *Listing, w io.Writer) error
	Name() string
}

// Listing is a snapshot of the directory for display or export
type Listing struct {
	Hosts []HostEntry `json:"hosts" yaml:"hosts"`
}

// HostEntry is one host and the services it owns
type HostEntry struct {
	Host     domain.Host      `json:"host" yaml:"host"`
	Services []domain.Service `json:"services" yaml:"services"`
}

// Legacy firmware sends a single reading as {"n": "<key>", "s": <dBm>}
const (
	legacyKeyField   = "n"
	legacyValueField = "s"
	helloIIDField    = "iid"
)

// ForFormat returns the decoder for an explicit content format. Unspecified
// payloads are sniffed: a leading '{' selects JSON, anything else CBOR.
func ForFormat(format domain.ContentFormat, payload []byte) (PayloadDecoder, error) {
	switch format {
	case domain.FormatJSON:
		return NewJSONCodec(), nil
	case domain.FormatCBOR:
		return NewCBORCodec(), nil
	case domain.FormatUnspecified, domain.FormatTextPlain:
		if looksLikeJSON(payload) {
			return NewJSONCodec(), nil
		}
		return NewCBORCodec(), nil
	}
	return nil, &domain.ValidationError{Field: "content format", Reason: fmt.Sprintf("unsupported content format %d", format)}
}

// DecodeHello decodes a registration payload. An empty payload is a bare
// hello. Plain text (or an unspecified format that is not a JSON object) is
// taken verbatim as the interface identifier.
func DecodeHello(payload []byte, format domain.ContentFormat) (*domain.Hello, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return &domain.Hello{}, nil
	}
	if format == domain.FormatTextPlain || (format == domain.FormatUnspecified && !looksLikeJSON(payload)) {
		return &domain.Hello{InterfaceID: textInterfaceID(payload)}, nil
	}

	dec, err := ForFormat(format, payload)
	if err != nil {
		return nil, err
	}
	return dec.DecodeHello(payload)
}

// DecodeTelemetry decodes and validates an RSS payload
func DecodeTelemetry(payload []byte, format domain.ContentFormat) (*domain.TelemetryBatch, error) {
	if len(payload) == 0 {
		return nil, &domain.ValidationError{Field: "payload", Reason: "telemetry payload is empty"}
	}
	dec, err := ForFormat(format, payload)
	if err != nil {
		return nil, err
	}
	return dec.DecodeTelemetry(payload)
}

func looksLikeJSON(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// textInterfaceID keeps printable identifiers as-is and hex-encodes binary ones
func textInterfaceID(payload []byte) string {
	if utf8.Valid(payload) {
		return strings.TrimSpace(string(payload))
	}
	return hex.EncodeToString(payload)
}

// intConverter turns a decoded scalar into an int, reporting false for
// anything that is not an integer
type intConverter func(v any) (int, bool)

// telemetryFromMap normalizes a decoded object into a batch. Both the
// neighbor map form and the legacy single-reading form are accepted. An
// empty object is an empty batch.
func telemetryFromMap(m map[string]any, toInt intConverter) (*domain.TelemetryBatch, error) {
	if key, ok := m[legacyKeyField]; ok && len(m) == 2 {
		if raw, ok := m[legacyValueField]; ok {
			s, ok := key.(string)
			if !ok {
				return nil, &domain.ValidationError{Field: "neighbor key", Reason: fmt.Sprintf("%v is not a string", key)}
			}
			dbm, ok := toInt(raw)
			if !ok {
				return nil, &domain.ValidationError{Field: "reading", Reason: fmt.Sprintf("%v for %s is not an integer", raw, s)}
			}
			return domain.NewTelemetryBatch(map[string]int{s: dbm})
		}
	}

	values := make(map[string]int, len(m))
	for key, raw := range m {
		dbm, ok := toInt(raw)
		if !ok {
			return nil, &domain.ValidationError{Field: "reading", Reason: fmt.Sprintf("%v for %s is not an integer", raw, key)}
		}
		values[key] = dbm
	}
	return domain.NewTelemetryBatch(values)
}

// helloFromMap reads the interface identifier from a decoded object
func helloFromMap(m map[string]any) (*domain.Hello, error) {
	raw, ok := m[helloIIDField]
	if !ok || raw == nil {
		return &domain.Hello{}, nil
	}
	switch v := raw.(type) {
	case string:
		return &domain.Hello{InterfaceID: strings.TrimSpace(v)}, nil
	case []byte:
		return &domain.Hello{InterfaceID: hex.EncodeToString(v)}, nil
	}
	return nil, &domain.ValidationError{Field: "iid", Reason: fmt.Sprintf("unsupported type %T", raw)}
}
