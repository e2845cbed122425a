package codec

import (
	"fmt"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"nethead/internal/domain"
)

// decMode accepts standard CBOR. Motes only send text map keys, so any-typed
// targets decode to map[string]any rather than map[any]any.
var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels: 4,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBORCodec decodes CBOR payloads (content format 60)
type CBORCodec struct{}

// NewCBORCodec creates a new CBOR codec
func NewCBORCodec() *CBORCodec {
	return &CBORCodec{}
}

// Format returns the content format served by this codec
func (c *CBORCodec) Format() domain.ContentFormat {
	return domain.FormatCBOR
}

// DecodeHello decodes a map with an "iid" text or byte string
func (c *CBORCodec) DecodeHello(payload []byte) (*domain.Hello, error) {
	m, err := c.decodeObject(payload)
	if err != nil {
		return nil, err
	}
	return helloFromMap(m)
}

// DecodeTelemetry decodes a map of neighbor key to dBm, or the legacy
// single-reading map
func (c *CBORCodec) DecodeTelemetry(payload []byte) (*domain.TelemetryBatch, error) {
	m, err := c.decodeObject(payload)
	if err != nil {
		return nil, err
	}
	return telemetryFromMap(m, cborInt)
}

func (c *CBORCodec) decodeObject(payload []byte) (map[string]any, error) {
	var m map[string]any
	if err := decMode.Unmarshal(payload, &m); err != nil {
		return nil, &domain.ValidationError{Field: "payload", Reason: fmt.Sprintf("failed to parse CBOR: %v", err)}
	}
	if m == nil {
		return nil, &domain.ValidationError{Field: "payload", Reason: "expected a CBOR map"}
	}
	return m, nil
}

// cborInt accepts integers that fit in 32 bits, whichever major type the
// encoder picked
func cborInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// Marshal encodes v as CBOR. Used by tools and tests that build mote payloads.
func Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}
