package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/storefront/backend/internal/domain/integration"
)

// ErrMalformedEnvelope is returned when a raw frame cannot be decoded into an envelope
var ErrMalformedEnvelope = errors.New("bridge: malformed envelope")

// wireEnvelope is the JSON shape of an inbound admin event
type wireEnvelope struct {
	Type      *string         `json:"type"`
	Title     *string         `json:"title"`
	Message   *string         `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
	Data      map[string]any  `json:"data"`
}

// PayloadCodec decodes raw admin events into RemoteEnvelopes and flattens
// their payloads into metadata maps.
type PayloadCodec struct{}

// NewPayloadCodec creates a new PayloadCodec
func NewPayloadCodec() *PayloadCodec {
	return &PayloadCodec{}
}

// Decode parses a raw JSON envelope.
// Numbers inside the payload are kept as json.Number so large ids survive
// decoding without loss of precision. A missing or unrecognized type decodes
// to EventTypeUnknown; an unparsable timestamp is dropped.
func (c *PayloadCodec) Decode(raw []byte) (integration.RemoteEnvelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return integration.RemoteEnvelope{}, fmt.Errorf("%w: empty frame", ErrMalformedEnvelope)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var w wireEnvelope
	if err := dec.Decode(&w); err != nil {
		return integration.RemoteEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	env := integration.RemoteEnvelope{
		Type:    integration.EventTypeUnknown,
		Payload: w.Data,
	}
	if env.Payload == nil {
		env.Payload = map[string]any{}
	}
	if w.Type != nil {
		env.RawType = strings.TrimSpace(*w.Type)
		env.Type = integration.ParseEventType(env.RawType)
	}
	if w.Title != nil {
		env.Title = strings.TrimSpace(*w.Title)
	}
	if w.Message != nil {
		env.Message = strings.TrimSpace(*w.Message)
	}
	if len(w.Timestamp) > 0 && !bytes.Equal(w.Timestamp, []byte("null")) {
		var ts any
		tsDec := json.NewDecoder(bytes.NewReader(w.Timestamp))
		tsDec.UseNumber()
		if err := tsDec.Decode(&ts); err == nil {
			if parsed, ok := parseTimestamp(ts); ok {
				env.Timestamp = &parsed
			}
		}
	}

	return env, nil
}

// Metadata flattens a payload into a single-level map. Nested objects are
// expanded with dotted keys ("order.id"); arrays and scalars are copied as-is.
func (c *PayloadCodec) Metadata(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	flattenInto(out, "", payload)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}
